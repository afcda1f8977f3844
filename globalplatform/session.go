package globalplatform

import (
	"errors"

	"github.com/status-im/keycard-host/apdu"
)

var (
	ErrInvalidCardCryptogram       = errors.New("invalid card cryptogram")
	ErrBadInitializeUpdateResponse = errors.New("initialize update response must be 28 bytes")
)

// Session is an authenticated SCP02 session created from an INITIALIZE
// UPDATE response.
type Session struct {
	keys          *SCP02Keys
	cardChallenge []byte
	hostChallenge []byte
}

// NewSession derives the session keys from the INITIALIZE UPDATE response
// and verifies the card cryptogram.
func NewSession(cardKeys *SCP02Keys, resp *apdu.Response, hostChallenge []byte) (*Session, error) {
	if resp.Sw == SwSecurityConditionNotSatisfied || resp.Sw == SwAuthenticationMethodBlocked {
		return nil, apdu.NewErrBadResponse(resp.Sw, "initialize update failed")
	}

	if resp.Sw != SwOK || len(resp.Data) != 28 {
		return nil, ErrBadInitializeUpdateResponse
	}

	seq := resp.Data[12:14]
	cardChallenge := resp.Data[12:20]
	cardCryptogram := resp.Data[20:28]

	sessionEncKey, err := DeriveKey(cardKeys.Enc(), seq, DerivationPurposeEnc)
	if err != nil {
		return nil, err
	}

	sessionMacKey, err := DeriveKey(cardKeys.Mac(), seq, DerivationPurposeMac)
	if err != nil {
		return nil, err
	}

	verified, err := VerifyCryptogram(sessionEncKey, hostChallenge, cardChallenge, cardCryptogram)
	if err != nil {
		return nil, err
	}

	if !verified {
		return nil, ErrInvalidCardCryptogram
	}

	return &Session{
		keys:          NewSCP02Keys(sessionEncKey, sessionMacKey),
		cardChallenge: cardChallenge,
		hostChallenge: hostChallenge,
	}, nil
}

func (s *Session) Keys() *SCP02Keys {
	return s.keys
}

func (s *Session) CardChallenge() []byte {
	return s.cardChallenge
}

func (s *Session) HostChallenge() []byte {
	return s.hostChallenge
}
