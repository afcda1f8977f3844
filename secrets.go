package keycard

import (
	"crypto/rand"
	"math/big"

	"github.com/status-im/keycard-host/crypto"
)

const (
	// PinLength is the number of decimal digits of the user PIN.
	PinLength = 6

	// PukLength is the number of decimal digits of the PUK.
	PukLength = 12

	generatedPairingPassLength = 12
	pairingPassAlphabet        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Secrets holds the PIN, PUK and pairing password used to initialize a
// card, together with the pairing token derived from the password.
type Secrets struct {
	pin          string
	puk          string
	pairingPass  string
	pairingToken []byte
}

// NewSecrets creates Secrets from caller provided values.
func NewSecrets(pin, puk, pairingPass string) *Secrets {
	return &Secrets{
		pin:          pin,
		puk:          puk,
		pairingPass:  pairingPass,
		pairingToken: crypto.GeneratePairingToken(pairingPass),
	}
}

// GenerateSecrets creates Secrets with random PIN, PUK and pairing
// password.
func GenerateSecrets() (*Secrets, error) {
	pin, err := randomDigitString(PinLength)
	if err != nil {
		return nil, err
	}

	puk, err := randomDigitString(PukLength)
	if err != nil {
		return nil, err
	}

	pairingPass, err := randomString(pairingPassAlphabet, generatedPairingPassLength)
	if err != nil {
		return nil, err
	}

	return NewSecrets(pin, puk, pairingPass), nil
}

func (s *Secrets) Pin() string {
	return s.pin
}

func (s *Secrets) Puk() string {
	return s.puk
}

func (s *Secrets) PairingPass() string {
	return s.pairingPass
}

func (s *Secrets) PairingToken() []byte {
	return s.pairingToken
}

func randomDigitString(length int) (string, error) {
	return randomString("0123456789", length)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}

		out[i] = alphabet[n.Int64()]
	}

	return string(out), nil
}

func validDigitString(s string, length int) bool {
	if len(s) != length {
		return false
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
