package types

import (
	"crypto/sha256"
	"errors"

	"github.com/status-im/keycard-host/apdu"
)

const TagCertificate = uint8(0x8A)

var ErrInvalidCertificate = errors.New("certificate must be 98 byte long")

// Certificate is the card identity certificate returned by the IDENT
// command: a compressed identification public key followed by a recoverable
// signature over its hash.
type Certificate struct {
	identPub  []byte
	signature *Signature
}

func ParseCertificate(data []byte) (*Certificate, error) {
	if len(data) != 98 {
		return nil, ErrInvalidCertificate
	}

	identPub := data[0:33]
	sigData := data[33:98]
	msg := sha256.Sum256(identPub)

	sig, err := ParseRecoverableSignature(msg[:], sigData)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		identPub:  identPub,
		signature: sig,
	}, nil
}

func (c *Certificate) IdentPub() []byte {
	return c.identPub
}

// VerifyIdentity checks an IDENT response against the challenge that was
// sent and returns the card identification public key in compressed form.
func VerifyIdentity(challenge []byte, tlvData []byte) ([]byte, error) {
	template, err := apdu.FindTag(tlvData, TagSignatureTemplate)
	if err != nil {
		return nil, err
	}

	certData, err := apdu.FindTag(template, TagCertificate)
	if err != nil {
		return nil, err
	}

	cert, err := ParseCertificate(certData)
	if err != nil {
		return nil, err
	}

	r, s, err := DERSignatureToRS(template)
	if err != nil {
		return nil, err
	}

	// TODO: investigate why verify signature fails but recovery works
	if _, err = calculateV(challenge, cert.identPub, r, s); err != nil {
		return nil, ErrInvalidSignature
	}

	return CompressPublicKey(cert.signature.pubKey), nil
}
