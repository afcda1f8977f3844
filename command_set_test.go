package keycard

import (
	"bytes"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/transport"
	"github.com/status-im/keycard-host/types"
)

func newMockCommandSet(t *testing.T) (*transport.Mock, *CommandSet) {
	m := transport.NewMock()
	require.NoError(t, m.Connect(transport.MockReaderName))

	return m, NewCommandSet(transport.NewChannel(m))
}

func newSimSession(t *testing.T) (*simCard, *CommandSet) {
	sim := newSimCard()
	cs := NewCommandSet(sim)

	require.NoError(t, cs.Select())
	require.NoError(t, cs.Pair(sim.pairingPass))
	require.NoError(t, cs.OpenSecureChannel())

	return sim, cs
}

func TestSelectPreInitialized(t *testing.T) {
	m, cs := newMockCommandSet(t)

	resp := append([]byte{0x80, 0x41}, bytes.Repeat([]byte{0xFF}, 65)...)
	m.AddResponse(append(resp, 0x90, 0x00))

	require.NoError(t, cs.Select())

	expected := []byte{0x00, 0xA4, 0x04, 0x00, 0x08, 0xA0, 0x00, 0x00, 0x08, 0x04, 0x00, 0x01, 0x01}
	assert.Equal(t, expected, m.LastTransmit())

	assert.False(t, cs.ApplicationInfo.Initialized)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 65), cs.ApplicationInfo.SecureChannelPublicKey)
	assert.Equal(t, []byte{types.PreInitAvailableSlots}, cs.ApplicationInfo.AvailableSlots)
}

func TestSelectInitialized(t *testing.T) {
	m, cs := newMockCommandSet(t)

	var inner []byte
	inner = append(inner, 0x8F, 0x10)
	inner = append(inner, bytes.Repeat([]byte{0x01}, 16)...)
	inner = append(inner, 0x80, 0x41)
	inner = append(inner, bytes.Repeat([]byte{0x02}, 65)...)
	inner = append(inner, 0x02, 0x02, 0x02, 0x01)
	inner = append(inner, 0x02, 0x01, 0x05)
	inner = append(inner, 0x8E, 0x20)
	inner = append(inner, bytes.Repeat([]byte{0x03}, 32)...)
	inner = append(inner, 0x8D, 0x01, 0x0F)

	resp := append([]byte{0xA4, 0x81, byte(len(inner))}, inner...)
	m.AddResponse(append(resp, 0x90, 0x00))

	require.NoError(t, cs.Select())

	assert.True(t, cs.ApplicationInfo.Initialized)
	assert.Equal(t, []byte{0x02, 0x01}, cs.ApplicationInfo.Version)
	assert.Equal(t, []byte{0x05}, cs.ApplicationInfo.AvailableSlots)
	assert.Equal(t, types.CapabilityAll, cs.ApplicationInfo.Capabilities)
	assert.Equal(t, 32, len(cs.ApplicationInfo.KeyUID))
}

func TestFactoryReset(t *testing.T) {
	m, cs := newMockCommandSet(t)

	resp := append([]byte{0x80, 0x41}, bytes.Repeat([]byte{0xFF}, 65)...)
	m.AddResponse(append(resp, 0x90, 0x00))
	require.NoError(t, cs.Select())

	m.AddResponse([]byte{0x90, 0x00})
	require.NoError(t, cs.FactoryReset())

	assert.Equal(t, []byte{0x80, 0xFD, 0xAA, 0x55}, m.LastTransmit())
	assert.Nil(t, cs.ApplicationInfo)
}

func TestFactoryResetRequiresSelect(t *testing.T) {
	_, cs := newMockCommandSet(t)
	assert.Equal(t, ErrNotSelected, cs.FactoryReset())
}

func TestInitValidation(t *testing.T) {
	m, cs := newMockCommandSet(t)

	resp := append([]byte{0x80, 0x41}, bytes.Repeat([]byte{0xFF}, 65)...)
	m.AddResponse(append(resp, 0x90, 0x00))
	require.NoError(t, cs.Select())

	transmitted := len(m.TransmitLog())

	err := cs.Init(NewSecrets("12345", "123456789012", "pass"))
	assert.Equal(t, ErrInvalidPin, err)

	err = cs.Init(NewSecrets("123456", "12345678", "pass"))
	assert.Equal(t, ErrInvalidPuk, err)

	// nothing was sent to the card
	assert.Equal(t, transmitted, len(m.TransmitLog()))
}

func TestInit(t *testing.T) {
	sim := newSimCard()
	cs := NewCommandSet(sim)
	require.NoError(t, cs.Select())

	secrets := NewSecrets("123456", "123456789012", "KeycardTest")
	require.NoError(t, cs.Init(secrets))

	var expected []byte
	expected = append(expected, []byte(secrets.Pin())...)
	expected = append(expected, []byte(secrets.Puk())...)
	expected = append(expected, secrets.PairingToken()...)

	require.Equal(t, 1, len(sim.receivedPlain))
	assert.Equal(t, expected, sim.receivedPlain[0])
}

func TestPair(t *testing.T) {
	sim := newSimCard()
	cs := NewCommandSet(sim)
	require.NoError(t, cs.Select())

	require.NoError(t, cs.Pair(sim.pairingPass))

	require.NotNil(t, cs.PairingInfo)
	assert.Equal(t, sim.pairingKey, cs.PairingInfo.Key)
	assert.Equal(t, 32, len(cs.PairingInfo.Salt))
	assert.Equal(t, 0, cs.PairingInfo.Index)
}

func TestPairWrongPassword(t *testing.T) {
	sim := newSimCard()
	cs := NewCommandSet(sim)
	require.NoError(t, cs.Select())

	err := cs.Pair("WrongPassword")
	assert.Error(t, err)
	assert.Nil(t, cs.PairingInfo)
}

func TestPairSlotsFull(t *testing.T) {
	sim := newSimCard()
	cs := NewCommandSet(sim)
	require.NoError(t, cs.Select())

	sim.rawSw = SwNoAvailablePairingSlots
	assert.Equal(t, ErrNoAvailablePairingSlots, cs.Pair(sim.pairingPass))
}

func TestOpenSecureChannelWithoutPairing(t *testing.T) {
	sim := newSimCard()
	cs := NewCommandSet(sim)
	require.NoError(t, cs.Select())

	assert.Equal(t, ErrNoPairingInfo, cs.OpenSecureChannel())
}

func TestVerifyPIN(t *testing.T) {
	sim, cs := newSimSession(t)

	require.NoError(t, cs.VerifyPIN("123456"))
	assert.Equal(t, []byte("123456"), sim.receivedPlain[len(sim.receivedPlain)-1])
}

func TestVerifyPINWrong(t *testing.T) {
	sim, cs := newSimSession(t)

	sim.innerSw = 0x63C2
	err := cs.VerifyPIN("654321")

	wrongPIN, ok := err.(*WrongPINError)
	require.True(t, ok)
	assert.Equal(t, 2, wrongPIN.RemainingAttempts)

	sim.innerSw = 0x63C0
	assert.Equal(t, ErrPinBlocked, cs.VerifyPIN("654321"))
}

func TestUnblockPIN(t *testing.T) {
	sim, cs := newSimSession(t)
	cs.ApplicationInfo.Capabilities = types.CapabilityAll

	require.NoError(t, cs.UnblockPIN("123456789012", "654321"))
	assert.Equal(t, []byte("123456789012654321"), sim.receivedPlain[len(sim.receivedPlain)-1])

	sim.innerSw = 0x63C0
	assert.Equal(t, ErrPukBlocked, cs.UnblockPIN("123456789012", "654321"))
}

func TestSignValidation(t *testing.T) {
	sim, cs := newSimSession(t)
	cs.ApplicationInfo.Capabilities = types.CapabilityAll

	before := sim.lastCmd

	_, err := cs.Sign(make([]byte, 16))
	assert.Equal(t, ErrInvalidDataTooShort, err)

	// nothing was sent to the card
	assert.Equal(t, before, sim.lastCmd)
	assert.True(t, cs.SecureChannelOpen())
}

func TestSignCapabilityGate(t *testing.T) {
	_, cs := newSimSession(t)

	_, err := cs.Sign(make([]byte, 32))
	capErr, ok := err.(*ErrCapabilityNotSupported)
	require.True(t, ok)
	assert.Equal(t, types.CapabilityKeyManagement, capErr.Capability)
}

func TestSignPinless(t *testing.T) {
	m, cs := newMockCommandSet(t)

	resp := append([]byte{0x80, 0x41}, bytes.Repeat([]byte{0xFF}, 65)...)
	m.AddResponse(append(resp, 0x90, 0x00))
	require.NoError(t, cs.Select())

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	message := ethcrypto.Keccak256([]byte("pinless"))
	sig, err := ethcrypto.Sign(message, key)
	require.NoError(t, err)

	sigTLV, err := apdu.NewTLV(types.TagRawSignature, sig)
	require.NoError(t, err)
	m.AddResponse(append(sigTLV, 0x90, 0x00))

	parsed, err := cs.SignPinless(message)
	require.NoError(t, err)

	expected := append([]byte{0x80, 0xC0, 0x03, 0x00, 0x20}, message...)
	assert.Equal(t, expected, m.LastTransmit())
	assert.Equal(t, sig[:32], parsed.R())
	assert.Equal(t, sig[32:64], parsed.S())
}

func TestGenerateMnemonic(t *testing.T) {
	sim, cs := newSimSession(t)
	cs.ApplicationInfo.Capabilities = types.CapabilityAll

	sim.innerData = []byte{0x00, 0x01, 0x07, 0xFF, 0x00, 0x00}
	indexes, err := cs.GenerateMnemonic(4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2047, 0}, indexes)

	before := sim.lastCmd
	_, err = cs.GenerateMnemonic(3)
	assert.Equal(t, ErrBadChecksumSize, err)
	_, err = cs.GenerateMnemonic(9)
	assert.Equal(t, ErrBadChecksumSize, err)
	assert.Equal(t, before, sim.lastCmd)
}

func TestLoadSeedValidation(t *testing.T) {
	_, cs := newSimSession(t)
	cs.ApplicationInfo.Capabilities = types.CapabilityAll

	_, err := cs.LoadSeed(make([]byte, 32))
	assert.Equal(t, ErrInvalidSeedSize, err)
}

func TestGetDataPlainChannel(t *testing.T) {
	m, cs := newMockCommandSet(t)

	resp := append([]byte{0x80, 0x41}, bytes.Repeat([]byte{0xFF}, 65)...)
	m.AddResponse(append(resp, 0x90, 0x00))
	require.NoError(t, cs.Select())

	m.AddResponse([]byte{0xAA, 0xBB, 0x90, 0x00})

	data, err := cs.GetData(P1StoreDataPublic)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, data)

	// public readout is not tunneled through the secure channel
	assert.Equal(t, []byte{0x80, 0xCA, 0x00, 0x00}, m.LastTransmit())
}

func TestGetDataNDEFCapabilityGate(t *testing.T) {
	m, cs := newMockCommandSet(t)

	resp := append([]byte{0x80, 0x41}, bytes.Repeat([]byte{0xFF}, 65)...)
	m.AddResponse(append(resp, 0x90, 0x00))
	require.NoError(t, cs.Select())

	_, err := cs.GetData(P1StoreDataNDEF)
	capErr, ok := err.(*ErrCapabilityNotSupported)
	require.True(t, ok)
	assert.Equal(t, types.CapabilityNDEF, capErr.Capability)
}

func TestUnpair(t *testing.T) {
	sim, cs := newSimSession(t)

	require.NoError(t, cs.Unpair(0))
	assert.Nil(t, cs.PairingInfo)
	assert.False(t, cs.SecureChannelOpen())
	_ = sim
}
