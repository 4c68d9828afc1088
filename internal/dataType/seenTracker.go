package dataType

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type seenBucket struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

// SeenTracker remembers message ids a node has already accepted.
// Ids are spread over buckets by xxhash so unrelated ids do not contend.
type SeenTracker struct {
	buckets     []*seenBucket
	bucketCount uint64
}

func NewSeenTracker(bucketCount int) *SeenTracker {
	if bucketCount <= 0 {
		bucketCount = 1
	}
	st := &SeenTracker{
		buckets:     make([]*seenBucket, bucketCount),
		bucketCount: uint64(bucketCount),
	}
	for i := 0; i < bucketCount; i++ {
		st.buckets[i] = &seenBucket{ids: make(map[string]time.Time)}
	}
	return st
}

func (st *SeenTracker) getBucket(id string) *seenBucket {
	return st.buckets[xxhash.Sum64String(id)%st.bucketCount]
}

// IsDuplicate reports whether id was seen before and records it if not.
// The check and the insert happen under one lock, so among concurrent
// callers with the same id exactly one gets false.
func (st *SeenTracker) IsDuplicate(id string) bool {
	b := st.getBucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ids[id]; ok {
		return true
	}
	b.ids[id] = time.Now()
	return false
}

// Seen reports membership without recording.
func (st *SeenTracker) Seen(id string) bool {
	b := st.getBucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ids[id]
	return ok
}

func (st *SeenTracker) Len() int {
	n := 0
	for _, b := range st.buckets {
		b.mu.Lock()
		n += len(b.ids)
		b.mu.Unlock()
	}
	return n
}

// GC forgets ids recorded more than maxAge ago and returns how many it removed.
func (st *SeenTracker) GC(maxAge time.Duration) int {
	threshold := time.Now().Add(-maxAge)
	removed := 0
	for _, b := range st.buckets {
		b.mu.Lock()
		for id, at := range b.ids {
			if at.Before(threshold) {
				delete(b.ids, id)
				removed++
			}
		}
		b.mu.Unlock()
	}
	return removed
}

// StartSeenTrackerGC evicts ids older than maxAge every interval until stopCh
// closes. The window must exceed the worst-case transit time of the mesh or
// late retransmissions will be forwarded again.
func StartSeenTrackerGC(st *SeenTracker, maxAge, interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			st.GC(maxAge)
		case <-stopCh:
			return
		}
	}
}
