package keycard

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/crypto"
	"github.com/status-im/keycard-host/globalplatform"
	"github.com/status-im/keycard-host/identifiers"
	"github.com/status-im/keycard-host/types"
)

// CommandSet implements the keycard applet command layer over a Channel.
// Commands validate their input and check the applet capabilities locally
// before transmitting anything, and map status words to typed errors.
type CommandSet struct {
	c               types.Channel
	sc              *SecureChannel
	ApplicationInfo *types.ApplicationInfo
	PairingInfo     *types.PairingInfo
}

func NewCommandSet(c types.Channel) *CommandSet {
	return &CommandSet{
		c:  c,
		sc: NewSecureChannel(c),
	}
}

// SetPairingInfo arms the command set with a pairing persisted by the
// embedder.
func (cs *CommandSet) SetPairingInfo(key []byte, index int) {
	cs.PairingInfo = &types.PairingInfo{
		Key:   key,
		Index: index,
	}
}

// SecureChannelOpen returns true while the secure channel is usable.
func (cs *CommandSet) SecureChannelOpen() bool {
	return cs.sc.Open()
}

// Select selects the keycard applet and refreshes ApplicationInfo. Any
// previously open secure channel is closed.
func (cs *CommandSet) Select() error {
	cmd := globalplatform.NewCommandSelect(identifiers.KeycardAID)
	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return err
	}

	appInfo, err := types.ParseApplicationInfo(resp.Data)
	if err != nil {
		return err
	}

	cs.ApplicationInfo = appInfo
	cs.sc.Reset()

	return nil
}

// Init initializes a selected card with the given secrets. The PIN and PUK
// must be strings of 6 and 12 decimal digits.
func (cs *CommandSet) Init(secrets *Secrets) error {
	if err := cs.requireSelect(); err != nil {
		return err
	}

	if !validDigitString(secrets.Pin(), PinLength) {
		return ErrInvalidPin
	}

	if !validDigitString(secrets.Puk(), PukLength) {
		return ErrInvalidPuk
	}

	if err := cs.sc.GenerateSecret(cs.ApplicationInfo.SecureChannelPublicKey); err != nil {
		return err
	}

	data, err := cs.sc.OneShotEncrypt(secrets)
	if err != nil {
		return err
	}

	resp, err := cs.c.Send(NewCommandInit(data))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil && resp.Sw == SwInsNotSupported {
			return ErrAlreadyInitialized
		}

		return err
	}

	return nil
}

// Identify sends a challenge the card signs with its identification key and
// returns the identification public key in compressed form. A nil
// challenge is replaced by a random one.
func (cs *CommandSet) Identify(challenge []byte) ([]byte, error) {
	if err := cs.requireSelect(); err != nil {
		return nil, err
	}

	if challenge == nil {
		challenge = make([]byte, identChallengeLength)
		if _, err := rand.Read(challenge); err != nil {
			return nil, err
		}
	}

	resp, err := cs.c.Send(NewCommandIdentify(challenge))
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return types.VerifyIdentity(challenge, resp.Data)
}

// FactoryReset wipes the card. Only SELECT is required, no PIN and no
// secure channel.
func (cs *CommandSet) FactoryReset() error {
	if err := cs.requireSelect(); err != nil {
		return err
	}

	resp, err := cs.c.Send(NewCommandFactoryReset())
	if err = cs.checkOK(resp, err); err != nil {
		return err
	}

	cs.sc.Reset()
	cs.ApplicationInfo = nil
	cs.PairingInfo = nil

	return nil
}

// Pair runs the two step pairing protocol and stores the resulting
// PairingInfo on the command set. The caller persists it.
func (cs *CommandSet) Pair(pairingPass string) error {
	if err := cs.requireCapability(types.CapabilitySecureChannel); err != nil {
		return err
	}

	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return err
	}

	resp, err := cs.c.Send(NewCommandPairFirstStep(challenge))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil {
			switch resp.Sw {
			case SwNoAvailablePairingSlots:
				return ErrNoAvailablePairingSlots
			case SwConditionsNotSatisfied:
				return ErrSecureChannelOpen
			}
		}

		return err
	}

	if len(resp.Data) != 64 {
		return apdu.NewErrBadResponse(resp.Sw, "pair step 1 response must be 64 bytes")
	}

	cardCryptogram := resp.Data[:32]
	cardChallenge := resp.Data[32:]

	secretHash, err := crypto.VerifyCryptogram(challenge, pairingPass, cardCryptogram)
	if err != nil {
		return err
	}

	h := sha256.New()
	h.Write(secretHash)
	h.Write(cardChallenge)
	resp, err = cs.c.Send(NewCommandPairFinalStep(h.Sum(nil)))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil && resp.Sw == SwSecurityConditionNotSatisfied {
			return ErrCryptogramFailed
		}

		return err
	}

	if len(resp.Data) != 33 {
		return apdu.NewErrBadResponse(resp.Sw, "pair step 2 response must be 33 bytes")
	}

	salt := resp.Data[1:]

	h.Reset()
	h.Write(secretHash)
	h.Write(salt)

	cs.PairingInfo = &types.PairingInfo{
		Key:   h.Sum(nil),
		Salt:  salt,
		Index: int(resp.Data[0]),
	}

	return nil
}

// Unpair releases the pairing slot at index through a secure exchange.
func (cs *CommandSet) Unpair(index uint8) error {
	resp, err := cs.sc.Send(NewCommandUnpair(index))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil {
			switch resp.Sw {
			case SwConditionsNotSatisfied:
				return ErrSecureChannelNotOpen
			case SwIncorrectP1P2:
				return apdu.NewErrBadResponse(resp.Sw, "invalid pairing index")
			}
		}

		return err
	}

	if cs.PairingInfo != nil && int(index) == cs.PairingInfo.Index {
		cs.PairingInfo = nil
		cs.sc.Reset()
	}

	return nil
}

// OpenSecureChannel opens the secure channel with the current PairingInfo
// and mutually authenticates both sides. On any failure the channel stays
// closed.
func (cs *CommandSet) OpenSecureChannel() error {
	if err := cs.requireCapability(types.CapabilitySecureChannel); err != nil {
		return err
	}

	if cs.PairingInfo == nil || len(cs.PairingInfo.Key) != 32 {
		return ErrNoPairingInfo
	}

	if err := cs.sc.GenerateSecret(cs.ApplicationInfo.SecureChannelPublicKey); err != nil {
		return err
	}

	cmd := NewCommandOpenSecureChannel(uint8(cs.PairingInfo.Index), cs.sc.RawPublicKey())
	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return err
	}

	if len(resp.Data) != openResponseLength {
		return apdu.NewErrBadResponse(resp.Sw, "open secure channel response must be 48 bytes")
	}

	encKey, macKey, iv := crypto.DeriveSessionKeys(cs.sc.Secret(), cs.PairingInfo.Key, resp.Data)
	cs.sc.Init(iv, encKey, macKey)

	if err := cs.mutualAuthenticate(); err != nil {
		cs.sc.Reset()
		return err
	}

	return nil
}

// GetStatus returns the application status or, with P1GetStatusKeyPath, the
// current derivation path.
func (cs *CommandSet) GetStatus(info uint8) (*types.ApplicationStatus, error) {
	resp, err := cs.sc.Send(NewCommandGetStatus(info))
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return types.ParseApplicationStatus(resp.Data)
}

func (cs *CommandSet) GetStatusApplication() (*types.ApplicationStatus, error) {
	return cs.GetStatus(P1GetStatusApplication)
}

func (cs *CommandSet) GetStatusKeyPath() (*types.ApplicationStatus, error) {
	return cs.GetStatus(P1GetStatusKeyPath)
}

// VerifyPIN authenticates the user. On a wrong PIN the returned
// WrongPINError carries the remaining attempts, ErrPinBlocked means there
// are none left.
func (cs *CommandSet) VerifyPIN(pin string) error {
	resp, err := cs.sc.Send(NewCommandVerifyPIN(pin))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil && (resp.Sw&SwWrongPINMask) == SwWrongPINMask {
			remainingAttempts := int(resp.Sw & 0x000F)
			if remainingAttempts == 0 {
				return ErrPinBlocked
			}

			return &WrongPINError{RemainingAttempts: remainingAttempts}
		}

		return err
	}

	return nil
}

// ChangePIN sets a new user PIN. Requires an authenticated session.
func (cs *CommandSet) ChangePIN(pin string) error {
	if err := cs.requireCapability(types.CapabilityCredentialsManagement); err != nil {
		return err
	}

	if !validDigitString(pin, PinLength) {
		return ErrInvalidPin
	}

	resp, err := cs.sc.Send(NewCommandChangePIN(pin))
	return cs.checkOK(resp, err)
}

// ChangePUK sets a new PUK. Requires an authenticated session.
func (cs *CommandSet) ChangePUK(puk string) error {
	if err := cs.requireCapability(types.CapabilityCredentialsManagement); err != nil {
		return err
	}

	if !validDigitString(puk, PukLength) {
		return ErrInvalidPuk
	}

	resp, err := cs.sc.Send(NewCommandChangePUK(puk))
	return cs.checkOK(resp, err)
}

// ChangePairingSecret replaces the pairing password. Existing pairings
// remain valid, new pairings use the new password.
func (cs *CommandSet) ChangePairingSecret(password string) error {
	if err := cs.requireCapability(types.CapabilityCredentialsManagement); err != nil {
		return err
	}

	resp, err := cs.sc.Send(NewCommandChangePairingSecret(crypto.GeneratePairingToken(password)))
	return cs.checkOK(resp, err)
}

// UnblockPIN resets a blocked PIN with the PUK. ErrPukBlocked means the
// card is lost.
func (cs *CommandSet) UnblockPIN(puk string, newPIN string) error {
	if err := cs.requireCapability(types.CapabilityCredentialsManagement); err != nil {
		return err
	}

	if !validDigitString(puk, PukLength) {
		return ErrInvalidPuk
	}

	if !validDigitString(newPIN, PinLength) {
		return ErrInvalidPin
	}

	resp, err := cs.sc.Send(NewCommandUnblockPIN(puk, newPIN))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil && (resp.Sw&SwWrongPINMask) == SwWrongPINMask {
			remainingAttempts := int(resp.Sw & 0x000F)
			if remainingAttempts == 0 {
				return ErrPukBlocked
			}

			return &WrongPUKError{RemainingAttempts: remainingAttempts}
		}

		return err
	}

	return nil
}

// GenerateKey creates a new master key on the card and returns its key UID.
func (cs *CommandSet) GenerateKey() ([]byte, error) {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return nil, err
	}

	resp, err := cs.sc.Send(NewCommandGenerateKey())
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// GenerateMnemonic returns BIP39 word indexes for a mnemonic with the given
// checksum size. The caller resolves the indexes against a wordlist.
func (cs *CommandSet) GenerateMnemonic(checksumSize int) ([]int, error) {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return nil, err
	}

	if checksumSize < 4 || checksumSize > 8 {
		return nil, ErrBadChecksumSize
	}

	resp, err := cs.sc.Send(NewCommandGenerateMnemonic(byte(checksumSize)))
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(resp.Data)
	indexes := make([]int, 0)
	for {
		var index uint16
		if err := binary.Read(buf, binary.BigEndian, &index); err != nil {
			break
		}

		indexes = append(indexes, int(index))
	}

	return indexes, nil
}

// RemoveKey removes the master key from the card.
func (cs *CommandSet) RemoveKey() error {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return err
	}

	resp, err := cs.sc.Send(NewCommandRemoveKey())
	return cs.checkOK(resp, err)
}

// LoadSeed loads a 64 byte BIP39 seed as the card master key and returns
// the key UID.
func (cs *CommandSet) LoadSeed(seed []byte) ([]byte, error) {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return nil, err
	}

	if len(seed) != loadSeedLength {
		return nil, ErrInvalidSeedSize
	}

	resp, err := cs.sc.Send(NewCommandLoadSeed(seed))
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// LoadKeyPair loads an ECC keypair, extended when chainCode is not empty,
// and returns the key UID. Loading a key clears the pinless path.
func (cs *CommandSet) LoadKeyPair(pubKey, privKey, chainCode []byte) ([]byte, error) {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return nil, err
	}

	cmd, err := NewCommandLoadKeyPair(pubKey, privKey, chainCode)
	if err != nil {
		return nil, err
	}

	resp, err := cs.sc.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// DeriveKey makes the key at path the current signing key.
func (cs *CommandSet) DeriveKey(path string) error {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return err
	}

	cmd, err := NewCommandDeriveKey(path)
	if err != nil {
		return err
	}

	resp, err := cs.sc.Send(cmd)
	return cs.checkOK(resp, err)
}

// ExportKey exports the key at path. Whether the private key can leave the
// card depends on p2 and on the path, the applet only exports whitelisted
// subtrees in the clear.
func (cs *CommandSet) ExportKey(p1 uint8, p2 uint8, path string) (*types.ExportedKey, error) {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return nil, err
	}

	cmd, err := NewCommandExportKey(p1, p2, path)
	if err != nil {
		return nil, err
	}

	resp, err := cs.sc.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil {
			switch resp.Sw {
			case SwConditionsNotSatisfied:
				return nil, apdu.NewErrBadResponse(resp.Sw, "private key not exportable")
			case SwWrongData:
				return nil, apdu.NewErrBadResponse(resp.Sw, "invalid export path")
			}
		}

		return nil, err
	}

	return types.ParseExportedKey(resp.Data)
}

// ExportCurrentKey exports the public part of the current signing key.
func (cs *CommandSet) ExportCurrentKey() (*types.ExportedKey, error) {
	return cs.ExportKey(P1ExportKeyCurrent, P2ExportKeyPublicOnly, "")
}

// SetPinlessPath whitelists a BIP32 subtree for signing without PIN and
// without the secure channel. An empty path disables it.
func (cs *CommandSet) SetPinlessPath(path string) error {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return err
	}

	cmd, err := NewCommandSetPinlessPath(path)
	if err != nil {
		return err
	}

	resp, err := cs.sc.Send(cmd)
	return cs.checkOK(resp, err)
}

// Sign signs a 32 byte hash with the current key.
func (cs *CommandSet) Sign(data []byte) (*types.Signature, error) {
	return cs.sign(data, P1SignCurrentKey, "")
}

// SignWithPath signs a 32 byte hash with the key at path, leaving the
// current key untouched.
func (cs *CommandSet) SignWithPath(data []byte, path string) (*types.Signature, error) {
	return cs.sign(data, P1SignDerive, path)
}

// SignWithPathAndMakeCurrent signs a 32 byte hash with the key at path and
// makes it the current key.
func (cs *CommandSet) SignWithPathAndMakeCurrent(data []byte, path string) (*types.Signature, error) {
	return cs.sign(data, P1SignDeriveAndMakeCurrent, path)
}

func (cs *CommandSet) sign(data []byte, p1 uint8, path string) (*types.Signature, error) {
	if err := cs.requireCapability(types.CapabilityKeyManagement); err != nil {
		return nil, err
	}

	cmd, err := NewCommandSign(data, p1, path)
	if err != nil {
		return nil, err
	}

	resp, err := cs.sc.Send(cmd)
	if err = cs.checkSignResponse(resp, err); err != nil {
		return nil, err
	}

	return types.ParseSignature(data, resp.Data)
}

// SignPinless signs a 32 byte hash through the pinless path, outside the
// secure channel.
func (cs *CommandSet) SignPinless(data []byte) (*types.Signature, error) {
	if err := cs.requireSelect(); err != nil {
		return nil, err
	}

	cmd, err := NewCommandSign(data, P1SignPinless, "")
	if err != nil {
		return nil, err
	}

	resp, err := cs.c.Send(cmd)
	if err = cs.checkSignResponse(resp, err); err != nil {
		return nil, err
	}

	return types.ParseSignature(data, resp.Data)
}

func (cs *CommandSet) checkSignResponse(resp *apdu.Response, err error) error {
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil {
			switch resp.Sw {
			case SwAlgorithmNotSupported:
				return apdu.NewErrBadResponse(resp.Sw, "algorithm not supported")
			case SwReferencedDataNotFound:
				return apdu.NewErrBadResponse(resp.Sw, "no pinless path set")
			}
		}

		return err
	}

	return nil
}

// GetData reads a public data region. No secure channel is required, the
// regions are publicly readable.
func (cs *CommandSet) GetData(typ uint8) ([]byte, error) {
	if err := cs.requireSelect(); err != nil {
		return nil, err
	}

	if typ == P1StoreDataNDEF {
		if err := cs.requireCapability(types.CapabilityNDEF); err != nil {
			return nil, err
		}
	}

	resp, err := cs.c.Send(NewCommandGetData(typ))
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// StoreData writes a data region through the secure channel.
func (cs *CommandSet) StoreData(typ uint8, data []byte) error {
	if typ == P1StoreDataNDEF {
		if err := cs.requireCapability(types.CapabilityNDEF); err != nil {
			return err
		}
	}

	resp, err := cs.sc.Send(NewCommandStoreData(typ, data))
	return cs.checkOK(resp, err)
}

func (cs *CommandSet) mutualAuthenticate() error {
	data := make([]byte, 32)
	if _, err := rand.Read(data); err != nil {
		return err
	}

	resp, err := cs.sc.Send(NewCommandMutuallyAuthenticate(data))
	if err = cs.checkOK(resp, err); err != nil {
		if resp != nil && resp.Sw == SwConditionsNotSatisfied {
			return apdu.NewErrBadResponse(resp.Sw, "mutually authenticate only allowed once after open")
		}

		return err
	}

	return nil
}

func (cs *CommandSet) requireSelect() error {
	if cs.ApplicationInfo == nil {
		return ErrNotSelected
	}

	return nil
}

func (cs *CommandSet) requireCapability(capability types.Capability) error {
	if err := cs.requireSelect(); err != nil {
		return err
	}

	if !cs.ApplicationInfo.HasCapability(capability) {
		return &ErrCapabilityNotSupported{Capability: capability}
	}

	return nil
}

func (cs *CommandSet) checkOK(resp *apdu.Response, err error, allowedResponses ...uint16) error {
	if err != nil {
		return err
	}

	if len(allowedResponses) == 0 {
		allowedResponses = []uint16{apdu.SwOK}
	}

	for _, code := range allowedResponses {
		if code == resp.Sw {
			return nil
		}
	}

	return apdu.NewErrBadResponse(resp.Sw, "unexpected response")
}
