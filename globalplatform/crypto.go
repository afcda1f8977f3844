package globalplatform

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
)

var (
	// DerivationPurposeEnc is the SCP02 derivation constant of the session
	// encryption key.
	DerivationPurposeEnc = []byte{0x01, 0x82}

	// DerivationPurposeMac is the SCP02 derivation constant of the session
	// MAC key.
	DerivationPurposeMac = []byte{0x01, 0x01}

	// NullBytes8 is the zero ICV.
	NullBytes8 = make([]byte, 8)
)

// DeriveKey derives an SCP02 session key from the static cardKey for the
// given purpose, bound to the 2 byte sequence counter.
func DeriveKey(cardKey []byte, seq []byte, purpose []byte) ([]byte, error) {
	key24 := resizeKey24(cardKey)

	derivation := make([]byte, 16)
	copy(derivation, purpose)
	copy(derivation[2:], seq)

	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, err
	}

	key := make([]byte, 16)
	mode := cipher.NewCBCEncrypter(block, NullBytes8)
	mode.CryptBlocks(key, derivation)

	return key, nil
}

// VerifyCryptogram checks the card cryptogram of an INITIALIZE UPDATE
// response.
func VerifyCryptogram(encKey, hostChallenge, cardChallenge, cardCryptogram []byte) (bool, error) {
	data := make([]byte, 0, len(hostChallenge)+len(cardChallenge))
	data = append(data, hostChallenge...)
	data = append(data, cardChallenge...)

	calculated, err := Mac3DES(encKey, data, NullBytes8)
	if err != nil {
		return false, err
	}

	return bytes.Equal(calculated, cardCryptogram), nil
}

// Mac3DES computes a full triple DES MAC over the padded data. The MAC is
// the last ciphertext block.
func Mac3DES(key, data, iv []byte) ([]byte, error) {
	data = AppendDESPadding(data)

	block, err := des.NewTripleDESCipher(resizeKey24(key))
	if err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, data)

	return ciphertext[len(ciphertext)-8:], nil
}

// MacFull3DES computes the SCP02 retail MAC: single DES over all blocks but
// the last, triple DES over the last.
func MacFull3DES(key, data, iv []byte) ([]byte, error) {
	data = AppendDESPadding(data)

	desBlock, err := des.NewCipher(key[:8])
	if err != nil {
		return nil, err
	}

	tripleDesBlock, err := des.NewTripleDESCipher(resizeKey24(key))
	if err != nil {
		return nil, err
	}

	chain := make([]byte, 8)
	copy(chain, iv)

	if len(data) > 8 {
		ciphertext := make([]byte, len(data)-8)
		mode := cipher.NewCBCEncrypter(desBlock, chain)
		mode.CryptBlocks(ciphertext, data[:len(data)-8])
		copy(chain, ciphertext[len(ciphertext)-8:])
	}

	mac := make([]byte, 8)
	mode := cipher.NewCBCEncrypter(tripleDesBlock, chain)
	mode.CryptBlocks(mac, data[len(data)-8:])

	return mac, nil
}

// EncryptICV encrypts the current ICV with single DES, the chaining SCP02
// applies to every wrapped command after the first.
func EncryptICV(macKey, icv []byte) ([]byte, error) {
	block, err := des.NewCipher(macKey[:8])
	if err != nil {
		return nil, err
	}

	encrypted := make([]byte, 8)
	block.Encrypt(encrypted, icv)

	return encrypted, nil
}

// AppendDESPadding appends 0x80 and zero pads to the 8 byte DES block size.
func AppendDESPadding(data []byte) []byte {
	paddingSize := 8 - len(data)%8

	out := make([]byte, len(data)+paddingSize)
	copy(out, data)
	out[len(data)] = 0x80

	return out
}

func resizeKey24(key []byte) []byte {
	out := make([]byte, 24)
	copy(out, key[:16])
	copy(out[16:], key[:8])

	return out
}
