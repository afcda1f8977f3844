package apdu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedLenth is an error returned on BER-TLV length forms longer
// than two bytes.
var ErrUnsupportedLenth = errors.New("unsupported length")

// ErrValueTooLong is returned by NewTLV for values longer than 65535 bytes.
var ErrValueTooLong = errors.New("value length must not exceed 65535 bytes")

// ErrTagNotFound is an error returned if a tag is not found in a TLV sequence.
type ErrTagNotFound struct {
	tag uint8
}

// Error implements the error interface
func (e *ErrTagNotFound) Error() string {
	return fmt.Sprintf("tag %x not found", e.tag)
}

// NewTLV encodes value under tag using the minimum length form.
func NewTLV(tag uint8, value []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(tag)

	switch {
	case len(value) <= 0x7F:
		buf.WriteByte(uint8(len(value)))
	case len(value) <= 0xFF:
		buf.WriteByte(0x81)
		buf.WriteByte(uint8(len(value)))
	case len(value) <= 0xFFFF:
		buf.WriteByte(0x82)
		buf.WriteByte(uint8(len(value) >> 8))
		buf.WriteByte(uint8(len(value)))
	default:
		return nil, ErrValueTooLong
	}

	buf.Write(value)

	return buf.Bytes(), nil
}

// ParseLength parses a BER-TLV length field from buf. Lengths up to 127 use
// the short form, 0x81 and 0x82 prefix the one and two byte long forms.
func ParseLength(buf *bytes.Buffer) (uint32, error) {
	length, err := buf.ReadByte()
	if err != nil {
		return 0, err
	}

	if length == 0x81 {
		length, err = buf.ReadByte()
		if err != nil {
			return 0, err
		}

		return uint32(length), nil
	}

	if length == 0x82 {
		value, err := buf.ReadByte()
		if err != nil {
			return 0, err
		}

		length, err = buf.ReadByte()
		if err != nil {
			return 0, err
		}

		return uint32(value)<<8 | uint32(length), nil
	}

	if length > 0x82 {
		return 0, ErrUnsupportedLenth
	}

	return uint32(length), nil
}

// FindTag searches for a tag value within a TLV sequence.
func FindTag(raw []byte, tags ...uint8) ([]byte, error) {
	return findTag(raw, 0, tags...)
}

// FindTagN searches for a tag value within a TLV sequence and returns the n occurrence
func FindTagN(raw []byte, n int, tags ...uint8) ([]byte, error) {
	return findTag(raw, n, tags...)
}

func findTag(raw []byte, occurrence int, tags ...uint8) ([]byte, error) {
	if len(tags) == 0 {
		return raw, nil
	}

	target := tags[0]
	buf := bytes.NewBuffer(raw)

	var (
		tag    uint8
		length uint32
		err    error
	)

	for {
		tag, err = buf.ReadByte()
		switch {
		case err == io.EOF:
			return []byte{}, &ErrTagNotFound{target}
		case err != nil:
			return nil, err
		}

		length, err = ParseLength(buf)
		if err == io.EOF || err == ErrUnsupportedLenth {
			return []byte{}, &ErrTagNotFound{target}
		} else if err != nil {
			return nil, err
		}

		if uint32(buf.Len()) < length {
			return []byte{}, &ErrTagNotFound{target}
		}

		data := buf.Next(int(length))

		if tag == target {
			// if it's the last tag in the search path, we start counting the occurrences
			if len(tags) == 1 && occurrence > 0 {
				occurrence--
				continue
			}

			if len(tags) == 1 {
				return data, nil
			}

			return findTag(data, occurrence, tags[1:]...)
		}
	}
}
