package signin

import (
	"encoding/json"
	"errors"
	"io/fs"

	"minihost/go-backend/internal/securestore"
	"minihost/go-backend/pkg/models"
)

type persistedDelegationState struct {
	Version int                       `json:"version"`
	Records []models.DelegationRecord `json:"records"`
}

// StateStore persists delegation records in an encrypted envelope on disk.
// With an empty path or passphrase it degrades to a no-op, leaving the
// in-memory stores process-scoped.
type StateStore struct {
	path       string
	passphrase string
}

func NewStateStore(path, passphrase string) *StateStore {
	return &StateStore{path: path, passphrase: passphrase}
}

// Bootstrap loads persisted records into the store. A missing file is fine:
// the store starts empty and a fresh snapshot is written.
func (s *StateStore) Bootstrap(records RecordStore) error {
	if !securestore.IsStorageConfigured(s.path, s.passphrase) {
		return nil
	}
	plaintext, err := securestore.ReadDecryptedFile(s.path, s.passphrase)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.Persist(records)
		}
		return err
	}
	var state persistedDelegationState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return err
	}
	if state.Version != 1 {
		return errors.New("delegation persistence payload is invalid")
	}
	records.Restore(state.Records)
	return nil
}

func (s *StateStore) Persist(records RecordStore) error {
	if !securestore.IsStorageConfigured(s.path, s.passphrase) {
		return nil
	}
	state := persistedDelegationState{
		Version: 1,
		Records: records.Snapshot(),
	}
	return securestore.WriteEncryptedJSON(s.path, s.passphrase, state)
}
