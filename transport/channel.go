package transport

import (
	"github.com/status-im/keycard-host/apdu"
)

// Channel adapts a Transport to the command layer, serializing commands and
// splitting responses into data and status word.
type Channel struct {
	t Transport
}

func NewChannel(t Transport) *Channel {
	return &Channel{t: t}
}

// Send implements types.Channel.
func (c *Channel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	raw, err := cmd.Serialize()
	if err != nil {
		return nil, err
	}

	resp, err := c.t.Transmit(raw)
	if err != nil {
		return nil, err
	}

	return apdu.ParseResponse(resp)
}
