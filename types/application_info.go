package types

import (
	"errors"
	"fmt"

	"github.com/status-im/keycard-host/apdu"
)

var ErrWrongApplicationInfoTemplate = errors.New("wrong application info template")

const (
	TagSelectResponsePreInitialized = uint8(0x80)
	TagApplicationStatusTemplate    = uint8(0xA3)
	TagApplicationInfoTemplate      = uint8(0xA4)
	TagApplicationInfoCapabilities  = uint8(0x8D)
)

// Capability is the bitmask of applet capabilities reported by SELECT.
type Capability uint8

const (
	CapabilitySecureChannel Capability = 1 << iota
	CapabilityKeyManagement
	CapabilityCredentialsManagement
	CapabilityNDEF
)

const CapabilityAll = CapabilitySecureChannel | CapabilityKeyManagement | CapabilityCredentialsManagement | CapabilityNDEF

const instanceUIDLength = 16

// PreInitAvailableSlots is the sentinel slot count reported for a card that
// has not been initialized yet.
const PreInitAvailableSlots = uint8(0xFF)

type ApplicationInfo struct {
	Installed              bool
	Initialized            bool
	InstanceUID            []byte
	SecureChannelPublicKey []byte
	Version                []byte
	AvailableSlots         []byte
	// KeyUID is the sha256 of the master public key on the card.
	// It's empty if the card doesn't contain any key.
	KeyUID       []byte
	Capabilities Capability
}

// ParseApplicationInfo parses the response of a SELECT command. Cards that
// have not been initialized yet reply with the 0x80 public key tag instead
// of the application info template.
func ParseApplicationInfo(data []byte) (*ApplicationInfo, error) {
	if len(data) == 0 {
		return nil, ErrWrongApplicationInfoTemplate
	}

	info := &ApplicationInfo{Installed: true}

	if data[0] == TagSelectResponsePreInitialized {
		pubKey, err := apdu.FindTag(data, TagSelectResponsePreInitialized)
		if err != nil {
			return nil, err
		}

		info.SecureChannelPublicKey = pubKey
		info.AvailableSlots = []byte{PreInitAvailableSlots}
		info.Capabilities = CapabilitySecureChannel | CapabilityCredentialsManagement

		return info, nil
	}

	if data[0] != TagApplicationInfoTemplate {
		return nil, ErrWrongApplicationInfoTemplate
	}

	instanceUID, err := apdu.FindTag(data, TagApplicationInfoTemplate, uint8(0x8F))
	if err != nil {
		return nil, err
	}

	pubKey, err := apdu.FindTag(data, TagApplicationInfoTemplate, uint8(0x80))
	if err != nil {
		return nil, err
	}

	appVersion, err := apdu.FindTag(data, TagApplicationInfoTemplate, uint8(0x02))
	if err != nil {
		return nil, err
	}

	availableSlots, err := apdu.FindTagN(data, 1, TagApplicationInfoTemplate, uint8(0x02))
	if err != nil {
		return nil, err
	}

	keyUID, err := apdu.FindTagN(data, 0, TagApplicationInfoTemplate, uint8(0x8E))
	if err != nil {
		return nil, err
	}

	info.Initialized = len(instanceUID) == instanceUIDLength
	info.InstanceUID = instanceUID
	info.SecureChannelPublicKey = pubKey
	info.Version = appVersion
	info.AvailableSlots = availableSlots
	info.KeyUID = keyUID

	if capabilities, err := apdu.FindTag(data, TagApplicationInfoTemplate, TagApplicationInfoCapabilities); err == nil && len(capabilities) == 1 {
		info.Capabilities = Capability(capabilities[0])
	} else {
		// applets preceding the capabilities tag support everything
		info.Capabilities = CapabilityAll
	}

	return info, nil
}

func (info *ApplicationInfo) HasCapability(c Capability) bool {
	return info.Capabilities&c == c
}

func (info *ApplicationInfo) HasSecureChannelCapability() bool {
	return info.HasCapability(CapabilitySecureChannel)
}

func (info *ApplicationInfo) HasKeyManagementCapability() bool {
	return info.HasCapability(CapabilityKeyManagement)
}

func (info *ApplicationInfo) HasCredentialsManagementCapability() bool {
	return info.HasCapability(CapabilityCredentialsManagement)
}

func (info *ApplicationInfo) HasNDEFCapability() bool {
	return info.HasCapability(CapabilityNDEF)
}

// HasMasterKey returns true when a key is loaded on the card.
func (info *ApplicationInfo) HasMasterKey() bool {
	return len(info.KeyUID) > 0
}

// AppVersion renders the applet version as major.minor.
func (info *ApplicationInfo) AppVersion() string {
	if len(info.Version) < 2 {
		return "unknown"
	}

	return fmt.Sprintf("%d.%d", info.Version[0], info.Version[1])
}
