package globalplatform

import (
	"github.com/status-im/keycard-host/apdu"
)

// SecureChannel wraps a Channel so that every command carries the SCP02
// MAC.
type SecureChannel struct {
	session *Session
	c       Channel
	w       *APDUWrapper
}

func NewSecureChannel(session *Session, c Channel) *SecureChannel {
	return &SecureChannel{
		session: session,
		c:       c,
		w:       NewAPDUWrapper(session.Keys().Mac()),
	}
}

// Send implements Channel.
func (c *SecureChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	wrapped, err := c.w.Wrap(cmd)
	if err != nil {
		return nil, err
	}

	return c.c.Send(wrapped)
}
