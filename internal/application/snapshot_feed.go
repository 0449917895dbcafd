package application

import (
	"sync"

	"github.com/bnema/evm-wallet-cli/internal/domain"
)

// SnapshotFeed fans committed snapshots out to any number of readers. Pass
// Publish to WithObserver. Slow readers miss intermediate snapshots but
// always receive the latest one.
type SnapshotFeed struct {
	mu     sync.Mutex
	subs   map[uint64]chan domain.Snapshot
	nextID uint64
	closed bool
}

func NewSnapshotFeed() *SnapshotFeed {
	return &SnapshotFeed{subs: map[uint64]chan domain.Snapshot{}}
}

func (f *SnapshotFeed) Publish(snapshot domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- snapshot:
		default:
			// Replace the queued snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// Subscribe returns a channel of snapshots and a cancel func that closes it.
func (f *SnapshotFeed) Subscribe() (<-chan domain.Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan domain.Snapshot, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription.
func (f *SnapshotFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
