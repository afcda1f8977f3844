package identifiers

import "errors"

var (
	// PackageAID identifies the keycard cap package.
	PackageAID = []byte{0xA0, 0x00, 0x00, 0x08, 0x04, 0x00, 0x01}

	// KeycardAID identifies the keycard applet.
	KeycardAID = []byte{0xA0, 0x00, 0x00, 0x08, 0x04, 0x00, 0x01, 0x01}

	// NdefAID identifies the NDEF applet shipped in the keycard package.
	NdefAID = []byte{0xA0, 0x00, 0x00, 0x08, 0x04, 0x00, 0x01, 0x02}

	// NdefInstanceAID is the instance AID of the NDEF applet.
	NdefInstanceAID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

	// CardManagerAID identifies the card issuer security domain.
	CardManagerAID = []byte{0xA0, 0x00, 0x00, 0x01, 0x51, 0x00, 0x00, 0x00}

	// CardTestKey is the default GlobalPlatform test key.
	CardTestKey = []byte{0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F}
)

// KeycardDefaultInstanceIndex is the instance index of the keycard applet
// installed by the installer.
const KeycardDefaultInstanceIndex = 1

// ErrInvalidInstanceIndex is returned by KeycardInstanceAID on an index out
// of the 1-255 range.
var ErrInvalidInstanceIndex = errors.New("instance index must be between 1 and 255")

// KeycardInstanceAID returns the instance AID of the keycard applet for the
// given instance index.
func KeycardInstanceAID(index int) ([]byte, error) {
	if index < 1 || index > 0xFF {
		return nil, ErrInvalidInstanceIndex
	}

	aid := make([]byte, len(KeycardAID))
	copy(aid, KeycardAID)

	return append(aid, byte(index)), nil
}
