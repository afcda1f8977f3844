package keycard

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/crypto"
	"github.com/status-im/keycard-host/globalplatform"
)

// simCard is a card simulator implementing types.Channel. It runs the real
// protocol crypto on the card side so tests can observe full round trips:
// pairing, secure channel opening, MAC chaining and inner status words.
type simCard struct {
	key           *ecdsa.PrivateKey
	pairingPass   string
	pairingKey    []byte
	cardChallenge []byte

	encKey []byte
	macKey []byte
	iv     []byte

	// scripted inner response for secure commands the simulator does not
	// implement itself
	innerData []byte
	innerSw   uint16

	// fault injection
	tamperResponseMac bool
	rawSw             uint16

	receivedPlain [][]byte
	lastCmd       *apdu.Command
}

func newSimCard() *simCard {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		panic(err)
	}

	return &simCard{
		key:         key,
		pairingPass: "KeycardTest",
		innerSw:     apdu.SwOK,
	}
}

func (c *simCard) pubKeyData() []byte {
	return ethcrypto.FromECDSAPub(&c.key.PublicKey)
}

// selectResponse is the pre-initialized SELECT response.
func (c *simCard) selectResponse() []byte {
	tlv, err := apdu.NewTLV(0x80, c.pubKeyData())
	if err != nil {
		panic(err)
	}

	return append(tlv, 0x90, 0x00)
}

func (c *simCard) Send(cmd *apdu.Command) (*apdu.Response, error) {
	c.lastCmd = cmd

	if c.rawSw != 0 {
		code := c.rawSw
		c.rawSw = 0
		return sw(code), nil
	}

	switch cmd.Ins {
	case globalplatform.InsSelect:
		return apdu.ParseResponse(c.selectResponse())
	case InsInit:
		return c.handleInit(cmd)
	case InsPair:
		return c.handlePair(cmd)
	case InsOpenSecureChannel:
		return c.handleOpenSecureChannel(cmd)
	default:
		return c.handleSecure(cmd)
	}
}

func (c *simCard) handleInit(cmd *apdu.Command) (*apdu.Response, error) {
	pubLen := int(cmd.Data[0])
	clientPub, err := ethcrypto.UnmarshalPubkey(cmd.Data[1 : 1+pubLen])
	if err != nil {
		return sw(SwWrongData), nil
	}

	iv := cmd.Data[1+pubLen : 1+pubLen+16]
	cipherData := cmd.Data[1+pubLen+16:]

	secret := crypto.GenerateECDHSharedSecret(c.key, clientPub)
	plain, err := crypto.DecryptData(cipherData, secret, iv)
	if err != nil {
		return sw(SwWrongData), nil
	}

	c.receivedPlain = append(c.receivedPlain, plain)

	return ok(nil), nil
}

func (c *simCard) handlePair(cmd *apdu.Command) (*apdu.Response, error) {
	token := crypto.GeneratePairingToken(c.pairingPass)

	if cmd.P1 == P1PairingFirstStep {
		clientChallenge := cmd.Data

		h := sha256.New()
		h.Write(token)
		h.Write(clientChallenge)
		cryptogram := h.Sum(nil)

		c.cardChallenge = make([]byte, 32)
		if _, err := rand.Read(c.cardChallenge); err != nil {
			return nil, err
		}

		return ok(append(cryptogram, c.cardChallenge...)), nil
	}

	h := sha256.New()
	h.Write(token)
	h.Write(c.cardChallenge)
	if !bytes.Equal(h.Sum(nil), cmd.Data) {
		return sw(SwSecurityConditionNotSatisfied), nil
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	h.Reset()
	h.Write(token)
	h.Write(salt)
	c.pairingKey = h.Sum(nil)

	return ok(append([]byte{0x00}, salt...)), nil
}

func (c *simCard) handleOpenSecureChannel(cmd *apdu.Command) (*apdu.Response, error) {
	clientPub, err := ethcrypto.UnmarshalPubkey(cmd.Data)
	if err != nil {
		return sw(SwWrongData), nil
	}

	secret := crypto.GenerateECDHSharedSecret(c.key, clientPub)

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	cardData := append(salt, iv...)
	c.encKey, c.macKey, c.iv = crypto.DeriveSessionKeys(secret, c.pairingKey, cardData)

	return ok(cardData), nil
}

func (c *simCard) handleSecure(cmd *apdu.Command) (*apdu.Response, error) {
	cmdMac := cmd.Data[:16]
	cipherData := cmd.Data[16:]

	meta := []byte{cmd.Cla, cmd.Ins, cmd.P1, cmd.P2, byte(len(cmd.Data)), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	expectedMac, err := crypto.CalculateMac(meta, cipherData, c.macKey)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(expectedMac, cmdMac) {
		return sw(SwSecurityConditionNotSatisfied), nil
	}

	plain, err := crypto.DecryptData(cipherData, c.encKey, c.iv)
	if err != nil {
		return sw(SwSecurityConditionNotSatisfied), nil
	}

	c.receivedPlain = append(c.receivedPlain, plain)

	innerData := c.innerData
	innerSw := c.innerSw
	if cmd.Ins == InsMutuallyAuthenticate {
		innerData = make([]byte, 32)
		if _, err := rand.Read(innerData); err != nil {
			return nil, err
		}
		innerSw = apdu.SwOK
	}

	rplain := append(innerData, byte(innerSw>>8), byte(innerSw))
	rcipher, err := crypto.EncryptData(rplain, c.encKey, cmdMac)
	if err != nil {
		return nil, err
	}

	rmeta := []byte{byte(len(rcipher) + 16), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	rmac, err := crypto.CalculateMac(rmeta, rcipher, c.macKey)
	if err != nil {
		return nil, err
	}

	// the next command is encrypted under the MAC the card just sent
	c.iv = rmac

	if c.tamperResponseMac {
		c.tamperResponseMac = false
		rmac = make([]byte, 16)
	}

	return ok(append(rmac, rcipher...)), nil
}

func ok(data []byte) *apdu.Response {
	return &apdu.Response{Data: data, Sw1: 0x90, Sw2: 0x00, Sw: apdu.SwOK}
}

func sw(code uint16) *apdu.Response {
	return &apdu.Response{Data: []byte{}, Sw1: uint8(code >> 8), Sw2: uint8(code), Sw: code}
}
