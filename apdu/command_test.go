package apdu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommand(t *testing.T) {
	var cla uint8 = 0x80
	var ins uint8 = 0x50
	var p1 uint8 = 1
	var p2 uint8 = 2
	data := []byte{0xAA, 0xBB}

	cmd := NewCommand(cla, ins, p1, p2, data)

	raw, err := cmd.Serialize()
	assert.NoError(t, err)

	expected := []byte{0x80, 0x50, 0x01, 0x02, 0x02, 0xAA, 0xBB}
	assert.Equal(t, expected, raw)

	cmd.SetLe(uint8(3))
	raw, err = cmd.Serialize()
	assert.NoError(t, err)

	expected = []byte{0x80, 0x50, 0x01, 0x02, 0x02, 0xAA, 0xBB, 0x03}
	assert.Equal(t, expected, raw)
}

func TestNewCommandWithoutData(t *testing.T) {
	cmd := NewCommand(0x80, 0xFD, 0xAA, 0x55, []byte{})

	raw, err := cmd.Serialize()
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0xFD, 0xAA, 0x55}, raw)
}

func TestSerializeDataTooLong(t *testing.T) {
	cmd := NewCommand(0x80, 0x10, 0, 0, bytes.Repeat([]byte{0x01}, 256))

	_, err := cmd.Serialize()
	assert.Equal(t, ErrDataTooLong, err)
}
