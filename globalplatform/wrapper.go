package globalplatform

import (
	"bytes"

	"github.com/status-im/keycard-host/apdu"
)

// APDUWrapper adds the SCP02 retail MAC to commands sent inside a
// GlobalPlatform secure channel. The MAC chains, each one becomes the ICV
// of the next command.
type APDUWrapper struct {
	macKey []byte
	icv    []byte
}

func NewAPDUWrapper(macKey []byte) *APDUWrapper {
	return &APDUWrapper{
		macKey: macKey,
		icv:    NullBytes8,
	}
}

// Wrap appends the MAC to the command data and flags the class byte as
// secured.
func (w *APDUWrapper) Wrap(cmd *apdu.Command) (*apdu.Command, error) {
	cla := cmd.Cla | 0x04

	macData := new(bytes.Buffer)
	macData.WriteByte(cla)
	macData.WriteByte(cmd.Ins)
	macData.WriteByte(cmd.P1)
	macData.WriteByte(cmd.P2)
	macData.WriteByte(uint8(len(cmd.Data) + 8))
	macData.Write(cmd.Data)

	var (
		icv []byte
		err error
	)

	if bytes.Equal(w.icv, NullBytes8) {
		icv = w.icv
	} else {
		icv, err = EncryptICV(w.macKey, w.icv)
		if err != nil {
			return nil, err
		}
	}

	mac, err := MacFull3DES(w.macKey, macData.Bytes(), icv)
	if err != nil {
		return nil, err
	}

	w.icv = mac

	newData := make([]byte, 0, len(cmd.Data)+len(mac))
	newData = append(newData, cmd.Data...)
	newData = append(newData, mac...)

	newCmd := apdu.NewCommand(cla, cmd.Ins, cmd.P1, cmd.P2, newData)
	if ok, le := cmd.Le(); ok {
		newCmd.SetLe(le)
	}

	return newCmd, nil
}
