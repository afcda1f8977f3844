package types

import (
	"bytes"
	"encoding/binary"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/derivationpath"
)

type ApplicationStatus struct {
	PinRetryCount  int
	PUKRetryCount  int
	KeyInitialized bool
	Path           string
}

// ParseApplicationStatus parses a GET STATUS response. With P1 set to the
// application template the card replies with the 0xA3 template, with P1 set
// to the key path it replies with raw 32-bit big-endian path components.
func ParseApplicationStatus(data []byte) (*ApplicationStatus, error) {
	tpl, err := apdu.FindTag(data, TagApplicationStatusTemplate)
	if err != nil {
		return parseKeyPathStatus(data)
	}

	appStatus := &ApplicationStatus{}

	if pinRetryCount, err := apdu.FindTag(tpl, uint8(0x02)); err == nil && len(pinRetryCount) == 1 {
		appStatus.PinRetryCount = int(pinRetryCount[0])
	}

	if pukRetryCount, err := apdu.FindTagN(tpl, 1, uint8(0x02)); err == nil && len(pukRetryCount) == 1 {
		appStatus.PUKRetryCount = int(pukRetryCount[0])
	}

	if keyInitialized, err := apdu.FindTag(tpl, uint8(0x01)); err == nil {
		if bytes.Equal(keyInitialized, []byte{0xFF}) {
			appStatus.KeyInitialized = true
		}
	}

	return appStatus, nil
}

func parseKeyPathStatus(data []byte) (*ApplicationStatus, error) {
	buf := bytes.NewBuffer(data)
	rawPath := make([]uint32, buf.Len()/4)
	if err := binary.Read(buf, binary.BigEndian, &rawPath); err != nil {
		return nil, err
	}

	return &ApplicationStatus{
		Path: derivationpath.Encode(derivationpath.StartingPointMaster, rawPath),
	}, nil
}
