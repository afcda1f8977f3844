package transport

import (
	"github.com/ebfe/scard"
	log "github.com/sirupsen/logrus"
)

// PCSC is a Transport backed by the platform PC/SC stack.
type PCSC struct {
	ctx  *scard.Context
	card *scard.Card
}

// NewPCSC establishes a PC/SC context and returns a Transport over it.
func NewPCSC() (*PCSC, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, err
	}

	return &PCSC{ctx: ctx}, nil
}

// ListReaders returns the names of the connected readers.
func (t *PCSC) ListReaders() ([]string, error) {
	return t.ctx.ListReaders()
}

// Connect connects to the card in the named reader.
func (t *PCSC) Connect(reader string) error {
	card, err := t.ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return err
	}

	t.card = card

	return nil
}

// Transmit sends a raw APDU and returns the raw response.
func (t *PCSC) Transmit(data []byte) ([]byte, error) {
	if t.card == nil {
		return nil, ErrNotConnected
	}

	log.Debugf("apdu send: % X", data)
	resp, err := t.card.Transmit(data)
	if err != nil {
		return nil, err
	}
	log.Debugf("apdu recv: % X", resp)

	if len(resp) < 2 {
		return nil, ErrResponseTooShort
	}

	return resp, nil
}

// Close disconnects the card and releases the context. It can be called
// more than once.
func (t *PCSC) Close() error {
	if t.card != nil {
		if err := t.card.Disconnect(scard.ResetCard); err != nil {
			return err
		}

		t.card = nil
	}

	if t.ctx != nil {
		if err := t.ctx.Release(); err != nil {
			return err
		}

		t.ctx = nil
	}

	return nil
}
