package registry

import (
	"fmt"
	"strings"
	"sync"
)

// Vault holds the private material of delegated keys. Entries are keyed by
// owner and address; nothing outside this package reads mnemonics.
type Vault interface {
	Put(ownerID int64, address, mnemonic string)
	Get(ownerID int64, address string) (string, bool)
	Delete(ownerID int64, address string)
}

type MemoryVault struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{entries: make(map[string]string)}
}

func vaultKey(ownerID int64, address string) string {
	return fmt.Sprintf("%d:%s", ownerID, strings.ToLower(strings.TrimSpace(address)))
}

func (v *MemoryVault) Put(ownerID int64, address, mnemonic string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[vaultKey(ownerID, address)] = mnemonic
}

func (v *MemoryVault) Get(ownerID int64, address string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	mnemonic, ok := v.entries[vaultKey(ownerID, address)]
	return mnemonic, ok
}

func (v *MemoryVault) Delete(ownerID int64, address string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.entries, vaultKey(ownerID, address))
}
