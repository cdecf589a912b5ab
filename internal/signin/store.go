package signin

import (
	"sync"

	"minihost/go-backend/pkg/models"
)

// RecordStore keys delegation records by owner id. One active delegation per
// owner; writes are last-writer-wins, the orchestrator is the only mutator.
type RecordStore interface {
	Get(ownerID int64) (models.DelegationRecord, bool)
	Put(rec models.DelegationRecord)
	Delete(ownerID int64)
	Snapshot() []models.DelegationRecord
	Restore(recs []models.DelegationRecord)
}

// PendingStore keys pending-approval markers by owner id.
type PendingStore interface {
	Get(ownerID int64) (models.PendingApproval, bool)
	Put(p models.PendingApproval)
	Delete(ownerID int64)
}

type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[int64]models.DelegationRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[int64]models.DelegationRecord)}
}

func (s *MemoryRecordStore) Get(ownerID int64) (models.DelegationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ownerID]
	return rec, ok
}

func (s *MemoryRecordStore) Put(rec models.DelegationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.OwnerID] = rec
}

func (s *MemoryRecordStore) Delete(ownerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ownerID)
}

func (s *MemoryRecordStore) Snapshot() []models.DelegationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DelegationRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

func (s *MemoryRecordStore) Restore(recs []models.DelegationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]models.DelegationRecord, len(recs))
	for _, rec := range recs {
		s.records[rec.OwnerID] = rec
	}
}

type MemoryPendingStore struct {
	mu      sync.RWMutex
	pending map[int64]models.PendingApproval
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[int64]models.PendingApproval)}
}

func (s *MemoryPendingStore) Get(ownerID int64) (models.PendingApproval, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[ownerID]
	return p, ok
}

func (s *MemoryPendingStore) Put(p models.PendingApproval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.OwnerID] = p
}

func (s *MemoryPendingStore) Delete(ownerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, ownerID)
}
