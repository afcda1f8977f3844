package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseApplicationStatus(t *testing.T) {
	data := hexToBytes("A3 09 02 01 03 02 01 05 01 01 FF")

	status, err := ParseApplicationStatus(data)
	require.NoError(t, err)

	assert.Equal(t, 3, status.PinRetryCount)
	assert.Equal(t, 5, status.PUKRetryCount)
	assert.True(t, status.KeyInitialized)
}

func TestParseKeyPathStatus(t *testing.T) {
	data := hexToBytes("8000002C 80000000 80000000 00000000 00000000")

	status, err := ParseApplicationStatus(data)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/0'/0'/0/0", status.Path)
}

func TestParseKeyPathStatusMaster(t *testing.T) {
	status, err := ParseApplicationStatus([]byte{})
	require.NoError(t, err)
	assert.Equal(t, "m", status.Path)
}
