package keycard

import (
	"errors"
	"fmt"

	"github.com/status-im/keycard-host/types"
)

var (
	// ErrNotSelected is returned by commands issued before a successful
	// SELECT.
	ErrNotSelected = errors.New("applet not selected")

	// ErrNoPairingInfo is returned when opening the secure channel without
	// pairing information.
	ErrNoPairingInfo = errors.New("pairing info not set")

	// ErrSecureChannelNotOpen is returned by secure exchanges on a closed
	// channel.
	ErrSecureChannelNotOpen = errors.New("secure channel not open")

	// ErrInvalidResponseMAC closes the secure channel, a new OPEN SECURE
	// CHANNEL is required.
	ErrInvalidResponseMAC = errors.New("invalid response MAC")

	// ErrInvalidResponseLength is returned on secure responses too short or
	// not block aligned.
	ErrInvalidResponseLength = errors.New("invalid response length")

	ErrAlreadyInitialized      = errors.New("card already initialized")
	ErrNoAvailablePairingSlots = errors.New("no available pairing slots")
	ErrCryptogramFailed        = errors.New("card rejected the client cryptogram")
	ErrSecureChannelOpen       = errors.New("secure channel already open")

	ErrInvalidPin      = errors.New("pin must be 6 digits")
	ErrInvalidPuk      = errors.New("puk must be 12 digits")
	ErrBadChecksumSize = errors.New("bad checksum size")
	ErrInvalidSeedSize = errors.New("seed must be 64 bytes")

	ErrPinBlocked = errors.New("pin blocked, unblock it with the puk")
	ErrPukBlocked = errors.New("puk blocked, the card must be factory reset")
)

// ErrCapabilityNotSupported is returned before transmitting a command the
// applet does not support.
type ErrCapabilityNotSupported struct {
	Capability types.Capability
}

func (e *ErrCapabilityNotSupported) Error() string {
	return fmt.Sprintf("capability %#.2x not supported by the applet", uint8(e.Capability))
}

// WrongPINError is returned on wrong PIN with the attempts left before the
// PIN blocks.
type WrongPINError struct {
	RemainingAttempts int
}

func (e *WrongPINError) Error() string {
	return fmt.Sprintf("wrong pin. remaining attempts: %d", e.RemainingAttempts)
}

// WrongPUKError is returned on wrong PUK with the attempts left before the
// card is lost.
type WrongPUKError struct {
	RemainingAttempts int
}

func (e *WrongPUKError) Error() string {
	return fmt.Sprintf("wrong puk. remaining attempts: %d", e.RemainingAttempts)
}
