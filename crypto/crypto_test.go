package crypto

import (
	"bytes"
	"crypto/sha256"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECDH(t *testing.T) {
	pk1, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	pk2, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	sharedSecret1 := GenerateECDHSharedSecret(pk1, &pk2.PublicKey)
	sharedSecret2 := GenerateECDHSharedSecret(pk2, &pk1.PublicKey)

	assert.Equal(t, sharedSecret1, sharedSecret2)
	assert.Equal(t, 32, len(sharedSecret1))
	assert.NotEqual(t, make([]byte, 32), sharedSecret1)
}

func TestEncryptDecryptData(t *testing.T) {
	encKey := bytes.Repeat([]byte{0x01}, 32)
	iv := bytes.Repeat([]byte{0x02}, 16)

	for _, length := range []int{0, 1, 15, 16, 17, 31, 32, 255} {
		data := bytes.Repeat([]byte{0xAB}, length)

		encrypted, err := EncryptData(data, encKey, iv)
		require.NoError(t, err)
		assert.Equal(t, 0, len(encrypted)%16)
		assert.True(t, len(encrypted) > length)

		decrypted, err := DecryptData(encrypted, encKey, iv)
		require.NoError(t, err)
		assert.Equal(t, data, decrypted)
	}
}

func TestEncryptDataInvalidKeySize(t *testing.T) {
	_, err := EncryptData([]byte{0x01}, make([]byte, 16), make([]byte, 16))
	assert.Equal(t, ErrInvalidKeySize, err)

	_, err = EncryptData([]byte{0x01}, make([]byte, 32), make([]byte, 8))
	assert.Equal(t, ErrInvalidKeySize, err)

	_, err = DecryptData(make([]byte, 16), make([]byte, 31), make([]byte, 16))
	assert.Equal(t, ErrInvalidKeySize, err)
}

func TestRemovePadding(t *testing.T) {
	data, err := removePadding(hexToBytes("AA BB 80 00 00 00 00 00 00 00 00 00 00 00 00 00"))
	require.NoError(t, err)
	assert.Equal(t, hexToBytes("AA BB"), data)

	// a full block of padding
	data, err = removePadding(hexToBytes("80 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00"))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, data)

	// no terminator in the last block
	_, err = removePadding(bytes.Repeat([]byte{0x01}, 16))
	assert.Equal(t, ErrInvalidPadding, err)

	// garbage after the terminator candidate
	_, err = removePadding(hexToBytes("80 00 00 00 00 00 00 00 00 00 00 00 00 00 00 01"))
	assert.Equal(t, ErrInvalidPadding, err)
}

func TestCalculateMac(t *testing.T) {
	macKey := bytes.Repeat([]byte{0x03}, 32)
	meta := make([]byte, 16)
	data := bytes.Repeat([]byte{0x04}, 32)

	mac1, err := CalculateMac(meta, data, macKey)
	require.NoError(t, err)
	mac2, err := CalculateMac(meta, data, macKey)
	require.NoError(t, err)

	assert.Equal(t, 16, len(mac1))
	assert.Equal(t, mac1, mac2)

	data[0] ^= 0xFF
	mac3, err := CalculateMac(meta, data, macKey)
	require.NoError(t, err)
	assert.NotEqual(t, mac1, mac3)
}

func TestDeriveSessionKeys(t *testing.T) {
	secret := bytes.Repeat([]byte{0x05}, 32)
	pairingKey := bytes.Repeat([]byte{0x06}, 32)
	cardData := append(bytes.Repeat([]byte{0x07}, 32), bytes.Repeat([]byte{0x08}, 16)...)

	encKey, macKey, iv := DeriveSessionKeys(secret, pairingKey, cardData)

	assert.Equal(t, 32, len(encKey))
	assert.Equal(t, 32, len(macKey))
	assert.Equal(t, bytes.Repeat([]byte{0x08}, 16), iv)
	assert.NotEqual(t, encKey, macKey)
}

func TestVerifyCryptogram(t *testing.T) {
	challenge := bytes.Repeat([]byte{0x09}, 32)
	pairingPass := "KeycardTest"

	token := GeneratePairingToken(pairingPass)
	assert.Equal(t, 32, len(token))

	h := sha256.New()
	h.Write(token)
	h.Write(challenge)
	cardCryptogram := h.Sum(nil)

	verified, err := VerifyCryptogram(challenge, pairingPass, cardCryptogram)
	require.NoError(t, err)
	assert.Equal(t, token, verified)

	_, err = VerifyCryptogram(challenge, "WrongPassword", cardCryptogram)
	assert.Equal(t, ErrInvalidCardCryptogram, err)
}

func TestOneShotEncrypt(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	pubKeyData := ethcrypto.FromECDSAPub(&key.PublicKey)
	secret := bytes.Repeat([]byte{0x0A}, 32)
	data := []byte("123456123456789012")

	encrypted, err := OneShotEncrypt(pubKeyData, secret, data)
	require.NoError(t, err)

	assert.Equal(t, byte(len(pubKeyData)), encrypted[0])
	assert.Equal(t, pubKeyData, encrypted[1:1+len(pubKeyData)])

	iv := encrypted[1+len(pubKeyData) : 1+len(pubKeyData)+16]
	ciphertext := encrypted[1+len(pubKeyData)+16:]

	decrypted, err := DecryptData(ciphertext, secret, iv)
	require.NoError(t, err)
	assert.Equal(t, data, decrypted)
}
