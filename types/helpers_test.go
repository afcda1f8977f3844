package types

import (
	"encoding/hex"
	"strings"
)

func hexToBytes(s string) []byte {
	data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}

	return data
}
