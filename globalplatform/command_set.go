package globalplatform

import (
	"crypto/rand"
	"errors"
	"os"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/identifiers"
)

// LoadingCallback is called for each loaded block with the block index and
// the total number of blocks.
type LoadingCallback = func(loadingBlock, totalBlocks int)

var ErrNoSession = errors.New("session must be initialized with OpenSecureChannel")

// CommandSet implements the GlobalPlatform commands used to manage the
// keycard applet on a card.
type CommandSet struct {
	c       Channel
	session *Session
}

func NewCommandSet(c Channel) *CommandSet {
	return &CommandSet{
		c: c,
	}
}

// Select selects the issuer security domain and returns its AID.
func (cs *CommandSet) Select() ([]byte, error) {
	cmd := NewCommandSelect(nil)
	cmd.SetLe(0)

	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	isd, _ := apdu.FindTag(resp.Data, 0x6F, 0x84)

	return isd, nil
}

// OpenSecureChannel authenticates against the security domain with the
// default test keys and wraps the channel with the SCP02 MAC.
func (cs *CommandSet) OpenSecureChannel() error {
	hostChallenge := make([]byte, 8)
	if _, err := rand.Read(hostChallenge); err != nil {
		return err
	}

	if err := cs.initializeUpdate(hostChallenge); err != nil {
		return err
	}

	return cs.externalAuthenticate()
}

// DeleteKeycardInstancesAndPackage removes the keycard applet instances and
// the package. Missing objects are not an error.
func (cs *CommandSet) DeleteKeycardInstancesAndPackage() error {
	instanceAID, err := identifiers.KeycardInstanceAID(identifiers.KeycardDefaultInstanceIndex)
	if err != nil {
		return err
	}

	ids := [][]byte{
		identifiers.NdefInstanceAID,
		instanceAID,
		identifiers.PackageAID,
	}

	for _, id := range ids {
		cmd, err := NewCommandDelete(id)
		if err != nil {
			return err
		}

		resp, err := cs.c.Send(cmd)
		if err = cs.checkOK(resp, err, SwOK, SwReferencedDataNotFound); err != nil {
			return err
		}
	}

	return nil
}

// LoadKeycardPackage streams the cap file to the card, invoking callback
// for each block.
func (cs *CommandSet) LoadKeycardPackage(capFile *os.File, callback LoadingCallback) error {
	preLoad := NewCommandInstallForLoad(identifiers.PackageAID, identifiers.CardManagerAID)
	resp, err := cs.c.Send(preLoad)
	if err = cs.checkOK(resp, err); err != nil {
		return err
	}

	load, err := NewLoadCommandStream(capFile)
	if err != nil {
		return err
	}

	for load.Next() {
		callback(int(load.Index()), load.BlocksCount())
		resp, err = cs.c.Send(load.GetCommand())
		if err = cs.checkOK(resp, err); err != nil {
			return err
		}
	}

	return nil
}

// InstallKeycardApplet installs the keycard applet instance.
func (cs *CommandSet) InstallKeycardApplet() error {
	instanceAID, err := identifiers.KeycardInstanceAID(identifiers.KeycardDefaultInstanceIndex)
	if err != nil {
		return err
	}

	return cs.installForInstall(identifiers.PackageAID, identifiers.KeycardAID, instanceAID, []byte{})
}

// InstallNDEFApplet installs the NDEF applet instance with the given
// record as install parameter.
func (cs *CommandSet) InstallNDEFApplet(ndefRecord []byte) error {
	return cs.installForInstall(identifiers.PackageAID, identifiers.NdefAID, identifiers.NdefInstanceAID, ndefRecord)
}

func (cs *CommandSet) installForInstall(packageAID, appletAID, instanceAID, params []byte) error {
	cmd, err := NewCommandInstallForInstall(packageAID, appletAID, instanceAID, params)
	if err != nil {
		return err
	}

	resp, err := cs.c.Send(cmd)

	return cs.checkOK(resp, err)
}

func (cs *CommandSet) initializeUpdate(hostChallenge []byte) error {
	cmd := NewCommandInitializeUpdate(hostChallenge)
	resp, err := cs.c.Send(cmd)
	if err != nil {
		return err
	}

	keys := NewSCP02Keys(identifiers.CardTestKey, identifiers.CardTestKey)
	session, err := NewSession(keys, resp, hostChallenge)
	if err != nil {
		return err
	}

	cs.c = NewSecureChannel(session, cs.c)
	cs.session = session

	return nil
}

func (cs *CommandSet) externalAuthenticate() error {
	if cs.session == nil {
		return ErrNoSession
	}

	cmd, err := NewCommandExternalAuthenticate(cs.session.Keys().Enc(), cs.session.CardChallenge(), cs.session.HostChallenge())
	if err != nil {
		return err
	}

	resp, err := cs.c.Send(cmd)

	return cs.checkOK(resp, err)
}

func (cs *CommandSet) checkOK(resp *apdu.Response, err error, allowedResponses ...uint16) error {
	if err != nil {
		return err
	}

	if len(allowedResponses) == 0 {
		allowedResponses = []uint16{SwOK}
	}

	for _, code := range allowedResponses {
		if code == resp.Sw {
			return nil
		}
	}

	return apdu.NewErrBadResponse(resp.Sw, "unexpected response")
}
