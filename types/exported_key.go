package types

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/status-im/keycard-host/apdu"
)

const (
	TagExportKeyTemplate  = uint8(0xA1)
	TagExportKeyPublic    = uint8(0x80)
	TagExportKeyPrivate   = uint8(0x81)
	TagExportKeyChainCode = uint8(0x82)
)

// ExportedKey is the parsed response of an EXPORT KEY command. Fields the
// card did not export are empty.
type ExportedKey struct {
	pubKey    []byte
	privKey   []byte
	chainCode []byte
}

// ParseExportedKey parses the 0xA1 template of the EXPORT KEY response.
// When the card exports the private key only, the public key is computed
// from it.
func ParseExportedKey(data []byte) (*ExportedKey, error) {
	tpl, err := apdu.FindTag(data, TagExportKeyTemplate)
	if err != nil {
		return nil, err
	}

	key := &ExportedKey{}

	if pubKey, err := apdu.FindTag(tpl, TagExportKeyPublic); err == nil && len(pubKey) > 0 {
		key.pubKey = pubKey
	}

	if privKey, err := apdu.FindTag(tpl, TagExportKeyPrivate); err == nil && len(privKey) > 0 {
		key.privKey = privKey
	}

	if chainCode, err := apdu.FindTag(tpl, TagExportKeyChainCode); err == nil && len(chainCode) > 0 {
		key.chainCode = chainCode
	}

	if key.pubKey == nil && key.privKey != nil {
		ecdsaKey, err := ethcrypto.ToECDSA(key.privKey)
		if err != nil {
			return nil, err
		}

		key.pubKey = ethcrypto.FromECDSAPub(&ecdsaKey.PublicKey)
	}

	return key, nil
}

func (k *ExportedKey) PubKey() []byte {
	return k.pubKey
}

func (k *ExportedKey) PrivKey() []byte {
	return k.privKey
}

func (k *ExportedKey) ChainCode() []byte {
	return k.chainCode
}
