package services

import (
	"sync"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
)

// StatusBroadcaster fans SyncStatus snapshots out to subscribers. Each
// subscriber channel holds only the most recent snapshot, so a slow reader
// never blocks a sync pass.
type StatusBroadcaster struct {
	mu      sync.Mutex
	current models.SyncStatus
	subs    map[int]chan models.SyncStatus
	nextID  int
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{subs: map[int]chan models.SyncStatus{}}
}

// Subscribe registers a listener. The current snapshot is delivered first.
func (b *StatusBroadcaster) Subscribe() (int, <-chan models.SyncStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan models.SyncStatus, 1)
	ch <- b.current
	b.subs[b.nextID] = ch
	return b.nextID, ch
}

// Unsubscribe closes the listener's channel. Unknown ids are ignored.
func (b *StatusBroadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *StatusBroadcaster) Current() models.SyncStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Publish replaces the current snapshot and notifies every subscriber.
func (b *StatusBroadcaster) Publish(s models.SyncStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = s
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
