package apdu

import (
	"bytes"
	"errors"
)

// ErrDataTooLong is returned when serializing a command whose data field
// does not fit the short APDU form.
var ErrDataTooLong = errors.New("command data length must not exceed 255 bytes")

// Command struct represent the data sent as an APDU command
// CLA, INS, P1, P2, Lc, Data, Le.
type Command struct {
	Cla  uint8
	Ins  uint8
	P1   uint8
	P2   uint8
	Data []byte

	requiresLe bool
	le         uint8
}

// NewCommand returns a new apdu Command.
func NewCommand(cla, ins, p1, p2 uint8, data []byte) *Command {
	return &Command{
		Cla:        cla,
		Ins:        ins,
		P1:         p1,
		P2:         p2,
		Data:       data,
		requiresLe: false,
	}
}

// SetLe sets the expected response length to le.
func (c *Command) SetLe(le uint8) {
	c.requiresLe = true
	c.le = le
}

// Le returns the expected response length and whether it was set.
func (c *Command) Le() (bool, uint8) {
	return c.requiresLe, c.le
}

// Serialize serializes the command to a short form C-APDU.
func (c *Command) Serialize() ([]byte, error) {
	if len(c.Data) > 0xFF {
		return nil, ErrDataTooLong
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.Cla)
	buf.WriteByte(c.Ins)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	if len(c.Data) > 0 {
		buf.WriteByte(uint8(len(c.Data)))
		buf.Write(c.Data)
	}

	if c.requiresLe {
		buf.WriteByte(c.le)
	}

	return buf.Bytes(), nil
}
