package signin

import (
	"runtime"
	"sync"
	"testing"
)

func TestFlightsSerializePerOwner(t *testing.T) {
	var f ownerFlights
	var wg sync.WaitGroup

	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := f.lock(7)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 8 {
		t.Fatalf("expected 8 serialized increments, got %d", counter)
	}
}

func TestFlightsEvictIdleEntries(t *testing.T) {
	var f ownerFlights

	unlockA := f.lock(1)
	unlockB := f.lock(2)

	f.mu.Lock()
	held := len(f.locks)
	f.mu.Unlock()
	if held != 2 {
		t.Fatalf("expected 2 live entries, got %d", held)
	}

	unlockA()
	unlockB()

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.locks) != 0 {
		t.Fatalf("idle entries should be evicted, %d remain", len(f.locks))
	}
}

func TestFlightsKeepEntryWhileWaiterQueued(t *testing.T) {
	var f ownerFlights

	unlock := f.lock(3)
	released := make(chan struct{})
	go func() {
		u := f.lock(3)
		u()
		close(released)
	}()

	// Wait for the second caller to queue on the shared entry.
	for {
		f.mu.Lock()
		queued := f.locks[3] != nil && f.locks[3].refs == 2
		f.mu.Unlock()
		if queued {
			break
		}
		runtime.Gosched()
	}

	unlock()
	<-released

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.locks) != 0 {
		t.Fatalf("entry should be gone after the last waiter, %d remain", len(f.locks))
	}
}
