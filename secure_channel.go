package keycard

import (
	"bytes"
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/crypto"
	"github.com/status-im/keycard-host/types"
)

const (
	macLength          = 16
	openResponseLength = 48
)

// SecureChannel is the encrypted and MAC chained session every post-pairing
// command is tunneled through. The IV evolves with each exchange: the MAC of
// the last message sent in either direction is the IV of the next one. Any
// failure during a secure exchange closes the channel for good, the session
// must be reopened with OPEN SECURE CHANNEL.
type SecureChannel struct {
	c         types.Channel
	open      bool
	secret    []byte
	publicKey *ecdsa.PublicKey
	encKey    []byte
	macKey    []byte
	iv        []byte
}

func NewSecureChannel(c types.Channel) *SecureChannel {
	return &SecureChannel{
		c: c,
	}
}

// GenerateSecret generates an ephemeral keypair and computes the ECDH
// secret against the card public key received with SELECT.
func (sc *SecureChannel) GenerateSecret(cardPubKeyData []byte) error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}

	cardPubKey, err := ethcrypto.UnmarshalPubkey(cardPubKeyData)
	if err != nil {
		return err
	}

	sc.publicKey = &key.PublicKey
	sc.secret = crypto.GenerateECDHSharedSecret(key, cardPubKey)

	return nil
}

// Reset closes the channel and wipes the session key material.
func (sc *SecureChannel) Reset() {
	sc.open = false
	wipe(sc.encKey)
	wipe(sc.macKey)
	wipe(sc.iv)
	sc.encKey = nil
	sc.macKey = nil
	sc.iv = nil
}

// Init arms the channel with the derived session keys and the card IV.
func (sc *SecureChannel) Init(iv, encKey, macKey []byte) {
	sc.iv = iv
	sc.encKey = encKey
	sc.macKey = macKey
	sc.open = true
}

// Open returns true while the channel is usable.
func (sc *SecureChannel) Open() bool {
	return sc.open
}

func (sc *SecureChannel) Secret() []byte {
	return sc.secret
}

func (sc *SecureChannel) PublicKey() *ecdsa.PublicKey {
	return sc.publicKey
}

// RawPublicKey returns the ephemeral public key as an uncompressed point.
// The OPEN SECURE CHANNEL payload is the full point, not a hash of it.
func (sc *SecureChannel) RawPublicKey() []byte {
	return ethcrypto.FromECDSAPub(sc.publicKey)
}

// Send performs a secure exchange: the command data is encrypted, the MAC
// computed over the APDU header and ciphertext is prepended, and the
// response MAC is verified before decryption. The returned response carries
// the inner status word. A raw status word other than 0x9000 closes the
// channel and is returned with empty data so callers can map it.
func (sc *SecureChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	if !sc.open {
		return nil, ErrSecureChannelNotOpen
	}

	encData, err := crypto.EncryptData(cmd.Data, sc.encKey, sc.iv)
	if err != nil {
		return nil, err
	}

	meta := []byte{cmd.Cla, cmd.Ins, cmd.P1, cmd.P2, byte(len(encData) + macLength), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	mac, err := crypto.CalculateMac(meta, encData, sc.macKey)
	if err != nil {
		return nil, err
	}

	sc.iv = mac

	secureData := make([]byte, 0, len(mac)+len(encData))
	secureData = append(secureData, mac...)
	secureData = append(secureData, encData...)

	resp, err := sc.c.Send(apdu.NewCommand(cmd.Cla, cmd.Ins, cmd.P1, cmd.P2, secureData))
	if err != nil {
		sc.Reset()
		return nil, err
	}

	if resp.Sw != apdu.SwOK {
		// secure channel aborted by the card, surface the raw SW for mapping
		sc.Reset()
		return &apdu.Response{Data: []byte{}, Sw1: resp.Sw1, Sw2: resp.Sw2, Sw: resp.Sw}, nil
	}

	if len(resp.Data) < macLength*2 || len(resp.Data)%macLength != 0 {
		sc.Reset()
		return nil, ErrInvalidResponseLength
	}

	rmac := resp.Data[:macLength]
	rdata := resp.Data[macLength:]

	rmeta := []byte{byte(len(resp.Data)), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	expectedMac, err := crypto.CalculateMac(rmeta, rdata, sc.macKey)
	if err != nil {
		sc.Reset()
		return nil, err
	}

	if !bytes.Equal(expectedMac, rmac) {
		sc.Reset()
		return nil, ErrInvalidResponseMAC
	}

	// the response is encrypted under the MAC of the command that was just
	// sent, the received MAC becomes the IV of the next exchange
	plainData, err := crypto.DecryptData(rdata, sc.encKey, sc.iv)
	if err != nil {
		sc.Reset()
		return nil, err
	}

	sc.iv = rmac

	inner, err := apdu.ParseResponse(plainData)
	if err != nil {
		sc.Reset()
		return nil, ErrInvalidResponseLength
	}

	return inner, nil
}

// OneShotEncrypt encrypts the INIT payload with a one-shot session keyed by
// the ECDH secret.
func (sc *SecureChannel) OneShotEncrypt(secrets *Secrets) ([]byte, error) {
	data := make([]byte, 0, len(secrets.Pin())+len(secrets.Puk())+len(secrets.PairingToken()))
	data = append(data, []byte(secrets.Pin())...)
	data = append(data, []byte(secrets.Puk())...)
	data = append(data, secrets.PairingToken()...)

	return crypto.OneShotEncrypt(sc.RawPublicKey(), sc.secret, data)
}

func wipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
