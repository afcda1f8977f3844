package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/status-im/keycard-host/apdu"
)

func TestMockTransmit(t *testing.T) {
	m := NewMock()

	_, err := m.Transmit([]byte{0x00, 0xA4, 0x04, 0x00})
	assert.Equal(t, ErrNotConnected, err)

	require.NoError(t, m.Connect(MockReaderName))

	m.AddResponse([]byte{0xAA, 0x90, 0x00})
	resp, err := m.Transmit([]byte{0x00, 0xA4, 0x04, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x90, 0x00}, resp)
	assert.Equal(t, [][]byte{{0x00, 0xA4, 0x04, 0x00}}, m.TransmitLog())

	_, err = m.Transmit([]byte{0x00, 0xA4, 0x04, 0x00})
	assert.Equal(t, ErrNoScriptedResponse, err)
}

func TestChannelSend(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Connect(MockReaderName))
	c := NewChannel(m)

	m.AddResponse([]byte{0x01, 0x02, 0x6A, 0x84})

	resp, err := c.Send(apdu.NewCommand(0x80, 0xF2, 0x00, 0x00, []byte{0xAB}))
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01, 0x02}, resp.Data)
	assert.Equal(t, uint16(0x6A84), resp.Sw)
	assert.Equal(t, []byte{0x80, 0xF2, 0x00, 0x00, 0x01, 0xAB}, m.LastTransmit())
}

func TestMockShortResponse(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.Connect(MockReaderName))

	m.AddResponse([]byte{0x90})
	_, err := m.Transmit([]byte{0x00})
	assert.Equal(t, ErrResponseTooShort, err)
}
