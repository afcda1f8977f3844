package apdu

import (
	"encoding/binary"
	"errors"
)

// SwOK is the response returned by the card on success.
const SwOK = uint16(0x9000)

// ErrBadRawResponse is returned by ParseResponse when the raw response is
// shorter than the 2 mandatory status word bytes.
var ErrBadRawResponse = errors.New("response data must be at least 2 bytes")

// Response represents a struct containing the card R-APDU fields.
type Response struct {
	Data []byte
	Sw1  uint8
	Sw2  uint8
	Sw   uint16
}

// ParseResponse parses a raw response and return a Response.
func ParseResponse(data []byte) (*Response, error) {
	if len(data) < 2 {
		return nil, ErrBadRawResponse
	}

	return &Response{
		Data: data[0 : len(data)-2],
		Sw1:  data[len(data)-2],
		Sw2:  data[len(data)-1],
		Sw:   binary.BigEndian.Uint16(data[len(data)-2:]),
	}, nil
}

// IsOK returns true if the response status word is 0x9000.
func (r *Response) IsOK() bool {
	return r.Sw == SwOK
}
