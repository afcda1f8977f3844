// Package transport provides the reader seam between a Keycard session and
// the physical card: a PC/SC backed implementation for real readers and a
// scripted one for tests.
package transport

import "errors"

var (
	// ErrNotConnected is returned by Transmit when Connect has not been
	// called or the connection was closed.
	ErrNotConnected = errors.New("not connected to a card")

	// ErrResponseTooShort is returned when the card replies with fewer than
	// the 2 mandatory status word bytes.
	ErrResponseTooShort = errors.New("response must be at least 2 bytes")
)

// Transport moves raw APDUs to and from a smart card reader.
type Transport interface {
	ListReaders() ([]string, error)
	Connect(reader string) error
	Transmit(data []byte) ([]byte, error)
	Close() error
}
