package types

import (
	"bytes"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/status-im/keycard-host/apdu"
)

const (
	TagSignatureTemplate = uint8(0xA0)
	TagRawSignature      = uint8(0x80)
	TagDERSignature      = uint8(0x30)
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signature is a secp256k1 signature returned by the SIGN command,
// normalized to 32 byte r and s plus the recovery id.
type Signature struct {
	pubKey []byte
	r      []byte
	s      []byte
	v      byte
}

// ParseSignature parses a SIGN response. Newer applets reply with the 0xA0
// template wrapping the public key and a DER signature, older ones with a
// raw 65 byte recoverable signature under tag 0x80.
func ParseSignature(message, resp []byte) (*Signature, error) {
	// check for the template first because TagRawSignature matches the pubkey tag
	template, err := apdu.FindTag(resp, TagSignatureTemplate)
	if err == nil {
		return parseTemplateSignature(message, template)
	}

	sig, err := apdu.FindTag(resp, TagRawSignature)
	if err != nil {
		return nil, err
	}

	return ParseRecoverableSignature(message, sig)
}

// ParseRecoverableSignature parses a raw 65 byte r,s,recovery-id signature,
// recovering the signing public key from message.
func ParseRecoverableSignature(message, sig []byte) (*Signature, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignature
	}

	pubKey, err := ethcrypto.Ecrecover(message, sig)
	if err != nil {
		return nil, err
	}

	return &Signature{
		pubKey: pubKey,
		r:      sig[0:32],
		s:      sig[32:64],
		v:      sig[64],
	}, nil
}

// DERSignatureToRS extracts r and s from a DER encoded signature, each
// normalized to exactly 32 bytes.
func DERSignatureToRS(tlv []byte) ([]byte, []byte, error) {
	r, err := apdu.FindTagN(tlv, 0, TagDERSignature, uint8(0x02))
	if err != nil {
		return nil, nil, err
	}

	s, err := apdu.FindTagN(tlv, 1, TagDERSignature, uint8(0x02))
	if err != nil {
		return nil, nil, err
	}

	return normalizeComponent(r), normalizeComponent(s), nil
}

// normalizeComponent strips the DER sign byte and left pads to 32 bytes.
func normalizeComponent(c []byte) []byte {
	for len(c) > 1 && c[0] == 0x00 {
		c = c[1:]
	}

	if len(c) >= 32 {
		return c[len(c)-32:]
	}

	out := make([]byte, 32)
	copy(out[32-len(c):], c)

	return out
}

func (s *Signature) PubKey() []byte {
	return s.pubKey
}

func (s *Signature) R() []byte {
	return s.r
}

func (s *Signature) S() []byte {
	return s.s
}

func (s *Signature) V() byte {
	return s.v
}

func parseTemplateSignature(message, template []byte) (*Signature, error) {
	pubKey, err := apdu.FindTag(template, uint8(0x80))
	if err != nil {
		return nil, err
	}

	r, sc, err := DERSignatureToRS(template)
	if err != nil {
		return nil, err
	}

	v, err := calculateV(message, pubKey, r, sc)
	if err != nil {
		return nil, err
	}

	return &Signature{
		pubKey: pubKey,
		r:      r,
		s:      sc,
		v:      v,
	}, nil
}

// calculateV brute forces the recovery id the template form omits.
func calculateV(message, pubKey, r, s []byte) (byte, error) {
	rs := append(r, s...)
	for i := 0; i < 4; i++ {
		v := byte(i)
		sig := append(rs, v)
		rec, err := ethcrypto.Ecrecover(message, sig)
		if err != nil {
			continue
		}

		if len(pubKey) == 33 {
			rec = CompressPublicKey(rec)
		}

		if bytes.Equal(pubKey, rec) {
			return v, nil
		}
	}

	return 0, ErrInvalidSignature
}

// CompressPublicKey converts a 65 byte uncompressed public key to the 33
// byte compressed form.
func CompressPublicKey(pubKey []byte) []byte {
	if len(pubKey) == 33 {
		return pubKey
	}

	out := make([]byte, 33)
	copy(out[1:], pubKey[1:33])
	if (pubKey[64] & 1) == 1 {
		out[0] = 3
	} else {
		out[0] = 2
	}

	return out
}
