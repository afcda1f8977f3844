package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"

	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// PairingTokenSalt is the salt used to derive the pairing token from the
	// pairing password.
	PairingTokenSalt = "Keycard Pairing Password Salt"

	pairingTokenIterations = 50000
	blockSize              = 16
	keySize                = 32
)

var (
	// ErrInvalidKeySize is returned when the encryption key is not 32 bytes
	// long or the IV is not 16 bytes long.
	ErrInvalidKeySize = errors.New("key must be 32 bytes and iv 16 bytes")

	// ErrInvalidPadding is returned when decrypted data is not terminated by
	// ISO/IEC 9797-1 Method 2 padding.
	ErrInvalidPadding = errors.New("invalid ISO 9797-1 padding")

	// ErrInvalidCardCryptogram is returned when the card cryptogram doesn't
	// match the client cryptogram during pairing.
	ErrInvalidCardCryptogram = errors.New("invalid card cryptogram")
)

// GenerateECDHSharedSecret generates a shared secret given a private key and
// a peer public key. The secret is the raw X coordinate of the shared point,
// left padded to 32 bytes. It is intentionally not hashed, the card uses the
// plain coordinate.
func GenerateECDHSharedSecret(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) []byte {
	x, _ := ethcrypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	return math.PaddedBigBytes(x, keySize)
}

// DeriveSessionKeys derives the secure channel session keys from the ECDH
// secret, the pairing key and the response to the OPEN SECURE CHANNEL
// command, which contains the card salt followed by the initial IV.
func DeriveSessionKeys(secret, pairingKey, cardData []byte) ([]byte, []byte, []byte) {
	salt := cardData[:keySize]
	iv := cardData[keySize:]

	h := sha512.New()
	h.Write(secret)
	h.Write(pairingKey)
	h.Write(salt)
	data := h.Sum(nil)

	encKey := data[:keySize]
	macKey := data[keySize:]

	return encKey, macKey, iv
}

// EncryptData encrypts data with AES-256-CBC after applying ISO/IEC 9797-1
// Method 2 padding.
func EncryptData(data []byte, encKey []byte, iv []byte) ([]byte, error) {
	if len(encKey) != keySize || len(iv) != blockSize {
		return nil, ErrInvalidKeySize
	}

	data = appendPadding(blockSize, data)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, data)

	return ciphertext, nil
}

// DecryptData decrypts AES-256-CBC data and strips the ISO/IEC 9797-1
// Method 2 padding.
func DecryptData(data []byte, encKey []byte, iv []byte) ([]byte, error) {
	if len(encKey) != keySize || len(iv) != blockSize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, len(data))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, data)

	return removePadding(plain)
}

// CalculateMac calculates an AES-CBC-MAC over meta and data with a zero IV.
// The MAC is the last block of the ciphertext. Inputs must already be padded
// to the block size, the secure channel pads them by construction.
func CalculateMac(meta []byte, data []byte, macKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(macKey)
	if err != nil {
		return nil, err
	}

	input := make([]byte, 0, len(meta)+len(data))
	input = append(input, meta...)
	input = append(input, data...)

	ciphertext := make([]byte, len(input))
	mode := cipher.NewCBCEncrypter(block, make([]byte, blockSize))
	mode.CryptBlocks(ciphertext, input)

	return ciphertext[len(ciphertext)-blockSize:], nil
}

// GeneratePairingToken runs the pairing password through
// PBKDF2-HMAC-SHA256 and returns the 32 byte shared secret used during
// pairing. Both password and salt are NFKD normalized.
func GeneratePairingToken(pass string) []byte {
	return pbkdf2.Key(norm.NFKD.Bytes([]byte(pass)), norm.NFKD.Bytes([]byte(PairingTokenSalt)), pairingTokenIterations, keySize, sha256.New)
}

// VerifyCryptogram checks the cryptogram returned by the card during the
// first pairing step against SHA-256(token, challenge). It returns the
// pairing token for the following steps.
func VerifyCryptogram(challenge []byte, pairingPass string, cardCryptogram []byte) ([]byte, error) {
	token := GeneratePairingToken(pairingPass)

	h := sha256.New()
	h.Write(token)
	h.Write(challenge)
	expected := h.Sum(nil)

	if !bytes.Equal(expected, cardCryptogram) {
		return nil, ErrInvalidCardCryptogram
	}

	return token, nil
}

// OneShotEncrypt encrypts data with an ephemeral session derived from
// secret, the way the INIT command expects it. The result is
// len(pubKeyData), pubKeyData, a random IV and the ciphertext.
func OneShotEncrypt(pubKeyData, secret, data []byte) ([]byte, error) {
	data = appendPadding(blockSize, data)

	iv := make([]byte, blockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, data)

	encrypted := append([]byte{byte(len(pubKeyData))}, pubKeyData...)
	encrypted = append(encrypted, iv...)
	encrypted = append(encrypted, ciphertext...)

	return encrypted, nil
}

func appendPadding(blockSize int, data []byte) []byte {
	paddingSize := blockSize - (len(data)+1)%blockSize
	if paddingSize == blockSize {
		paddingSize = 0
	}

	zeroes := bytes.Repeat([]byte{0x00}, paddingSize)
	padding := append([]byte{0x80}, zeroes...)

	return append(data, padding...)
}

func removePadding(data []byte) ([]byte, error) {
	for i := len(data) - 1; i >= len(data)-blockSize && i >= 0; i-- {
		switch data[i] {
		case 0x00:
			continue
		case 0x80:
			return data[:i], nil
		default:
			return nil, ErrInvalidPadding
		}
	}

	return nil, ErrInvalidPadding
}
