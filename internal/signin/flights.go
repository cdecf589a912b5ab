package signin

import "sync"

// ownerFlights serializes sign-in flows per owner: a second call for the
// same owner queues behind the first instead of racing record writes.
// Entries are refcounted and dropped once the last holder unlocks, so the
// map does not accumulate one mutex per fid ever seen.
type ownerFlights struct {
	mu    sync.Mutex
	locks map[int64]*flightLock
}

type flightLock struct {
	sync.Mutex
	refs int
}

func (f *ownerFlights) lock(ownerID int64) (unlock func()) {
	f.mu.Lock()
	if f.locks == nil {
		f.locks = make(map[int64]*flightLock)
	}
	l, ok := f.locks[ownerID]
	if !ok {
		l = &flightLock{}
		f.locks[ownerID] = l
	}
	l.refs++
	f.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		f.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, ownerID)
		}
		f.mu.Unlock()
	}
}
