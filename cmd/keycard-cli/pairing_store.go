package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/status-im/keycard-host/types"
)

// pairingStore persists pairing records as JSON, keyed by the hex instance
// UID of the card. The library core never touches the disk, pairing
// persistence belongs to the embedder.
type pairingStore struct {
	path   string
	values map[string]*types.PairingInfo
}

func newPairingStore(path string) (*pairingStore, error) {
	p := &pairingStore{
		path:   path,
		values: map[string]*types.PairingInfo{},
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return nil, err
			}

			return p, nil
		}

		return nil, err
	}

	if err := json.Unmarshal(b, &p.values); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *pairingStore) save() error {
	b, err := json.Marshal(p.values)
	if err != nil {
		return err
	}

	return os.WriteFile(p.path, b, 0640)
}

func (p *pairingStore) store(instanceUID string, pairing *types.PairingInfo) error {
	p.values[instanceUID] = pairing
	return p.save()
}

func (p *pairingStore) get(instanceUID string) *types.PairingInfo {
	return p.values[instanceUID]
}

func (p *pairingStore) delete(instanceUID string) error {
	delete(p.values, instanceUID)
	return p.save()
}
