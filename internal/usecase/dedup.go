package usecase

import (
	"container/list"
	"sync"
)

// defaultAlbumCapacity bounds the dedup window. Old entries are
// evicted FIFO; a very late straggler from an evicted album would be
// republished, which is the accepted tradeoff for bounded memory.
const defaultAlbumCapacity = 500

// AlbumDedup is a bounded FIFO set of album group IDs used to publish
// each grouped-media album exactly once.
type AlbumDedup struct {
	mu       sync.Mutex
	order    *list.List
	seen     map[int64]*list.Element
	capacity int
}

// NewAlbumDedup creates a dedup set with the given capacity; zero or
// negative means the default.
func NewAlbumDedup(capacity int) *AlbumDedup {
	if capacity <= 0 {
		capacity = defaultAlbumCapacity
	}
	return &AlbumDedup{
		order:    list.New(),
		seen:     make(map[int64]*list.Element),
		capacity: capacity,
	}
}

// MarkIfNew records the group ID and reports whether it was new. The
// record happens before the caller processes the album, so a second
// sibling observed concurrently can never trigger a second publish.
func (d *AlbumDedup) MarkIfNew(groupID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[groupID]; ok {
		return false
	}

	d.seen[groupID] = d.order.PushBack(groupID)
	if d.order.Len() > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(int64))
	}
	return true
}

// Len returns the current number of tracked albums.
func (d *AlbumDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
