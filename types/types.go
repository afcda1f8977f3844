package types

import "github.com/status-im/keycard-host/apdu"

// Channel is an interface with a Send method to send apdu commands and receive apdu responses.
type Channel interface {
	Send(*apdu.Command) (*apdu.Response, error)
}

// PairingInfo is the result of the PAIR command. The core does not persist
// it, the embedder stores it and sets it back on future sessions.
type PairingInfo struct {
	Key   []byte `json:"key"`
	Salt  []byte `json:"salt"`
	Index int    `json:"index"`
}
