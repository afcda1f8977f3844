package globalplatform

import (
	"github.com/status-im/keycard-host/apdu"
)

const (
	ClaISO7816 = uint8(0x00)
	ClaGp      = uint8(0x80)
	ClaMac     = uint8(0x84)

	InsSelect               = uint8(0xA4)
	InsInitializeUpdate     = uint8(0x50)
	InsExternalAuthenticate = uint8(0x82)
	InsGetResponse          = uint8(0xC0)
	InsDelete               = uint8(0xE4)
	InsLoad                 = uint8(0xE8)
	InsInstall              = uint8(0xE6)

	P1ExternalAuthenticateCMAC = uint8(0x01)
	P1InstallForLoad           = uint8(0x02)
	P1InstallForInstall        = uint8(0x0C)
	P1LoadMoreBlocks           = uint8(0x00)
	P1LoadLastBlock            = uint8(0x80)

	SwOK                            = apdu.SwOK
	SwSecurityConditionNotSatisfied = uint16(0x6982)
	SwAuthenticationMethodBlocked   = uint16(0x6983)
	SwFileNotFound                  = uint16(0x6A82)
	SwReferencedDataNotFound        = uint16(0x6A88)

	tagDeleteAID         = uint8(0x4F)
	tagInstallParameters = uint8(0xC9)
)

// NewCommandSelect selects the applet identified by aid. A nil aid selects
// the issuer security domain.
func NewCommandSelect(aid []byte) *apdu.Command {
	return apdu.NewCommand(
		ClaISO7816,
		InsSelect,
		uint8(0x04),
		uint8(0x00),
		aid,
	)
}

// NewCommandInitializeUpdate starts an SCP02 session with an 8 byte host
// challenge.
func NewCommandInitializeUpdate(challenge []byte) *apdu.Command {
	cmd := apdu.NewCommand(
		ClaGp,
		InsInitializeUpdate,
		0,
		0,
		challenge,
	)
	cmd.SetLe(0)

	return cmd
}

// NewCommandExternalAuthenticate completes the SCP02 mutual authentication
// with the host cryptogram computed over the card and host challenges.
func NewCommandExternalAuthenticate(encKey, cardChallenge, hostChallenge []byte) (*apdu.Command, error) {
	data := make([]byte, 0, len(cardChallenge)+len(hostChallenge))
	data = append(data, cardChallenge...)
	data = append(data, hostChallenge...)

	hostCryptogram, err := Mac3DES(encKey, data, NullBytes8)
	if err != nil {
		return nil, err
	}

	return apdu.NewCommand(
		ClaMac,
		InsExternalAuthenticate,
		P1ExternalAuthenticateCMAC,
		0,
		hostCryptogram,
	), nil
}

// NewCommandDelete deletes the object identified by aid together with its
// related objects.
func NewCommandDelete(aid []byte) (*apdu.Command, error) {
	data, err := apdu.NewTLV(tagDeleteAID, aid)
	if err != nil {
		return nil, err
	}

	return apdu.NewCommand(
		ClaGp,
		InsDelete,
		0,
		0x80,
		data,
	), nil
}

// NewCommandInstallForLoad announces the load of the package identified by
// aid to the security domain sdaid.
func NewCommandInstallForLoad(aid, sdaid []byte) *apdu.Command {
	data := []byte{byte(len(aid))}
	data = append(data, aid...)
	data = append(data, byte(len(sdaid)))
	data = append(data, sdaid...)
	// no load file block hash, no load parameters, no load token
	data = append(data, 0x00, 0x00, 0x00)

	return apdu.NewCommand(
		ClaGp,
		InsInstall,
		P1InstallForLoad,
		0,
		data,
	)
}

// NewCommandInstallForInstall installs and makes selectable an applet
// instance from a loaded package.
func NewCommandInstallForInstall(pkgAID, appletAID, instanceAID, params []byte) (*apdu.Command, error) {
	data := []byte{byte(len(pkgAID))}
	data = append(data, pkgAID...)
	data = append(data, byte(len(appletAID)))
	data = append(data, appletAID...)
	data = append(data, byte(len(instanceAID)))
	data = append(data, instanceAID...)

	// privileges
	data = append(data, 0x01, 0x00)

	paramsTLV, err := apdu.NewTLV(tagInstallParameters, params)
	if err != nil {
		return nil, err
	}

	data = append(data, byte(len(paramsTLV)))
	data = append(data, paramsTLV...)

	// no install token
	data = append(data, 0x00)

	return apdu.NewCommand(
		ClaGp,
		InsInstall,
		P1InstallForInstall,
		0,
		data,
	), nil
}
