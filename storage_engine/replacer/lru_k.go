package replacer

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"KernelDB/types"
)

/*
LRU-K replacement policy for the buffer pool.

The replacer picks victims by backward k-distance: the logical time since a
frame's k-th most recent access, +inf for frames with fewer than k recorded
accesses. The classic simplification splits frames across two lists:

	history list — frames with < k accesses. All have +inf distance, so they
	collapse to a FIFO: push-front on first access, evict from the tail
	(oldest insertion first).

	cache list — frames with >= k accesses, kept in MRU order (move-to-front
	on every access). Scanning from the tail finds the frame whose most
	recent access is oldest, which for fixed k is the largest finite
	backward k-distance.

History-list victims always win over cache-list victims (+inf beats any
finite distance). This is what gives the policy scan resistance: a page
touched once by a sequential scan sits in the history FIFO and is the first
thing evicted, while the warmed-up working set lives in the cache list.
*/

var (
	// ErrInvalidFrame is returned for frame ids outside [0, size).
	ErrInvalidFrame = errors.New("frame id out of range for replacer")

	// ErrNotEvictable is returned by Remove on a frame that is pinned.
	ErrNotEvictable = errors.New("frame is not evictable")
)

// LRUKReplacer tracks access history per frame and selects eviction victims.
// Safe for concurrent use; every method takes the internal mutex.
type LRUKReplacer struct {
	size int // frame id upper bound, exclusive
	k    int

	accessCount map[types.FrameID]int
	evictable   map[types.FrameID]bool

	historyList  *list.List // < k accesses, insertion order, newest at front
	historyIndex map[types.FrameID]*list.Element

	cacheList  *list.List // >= k accesses, most recent access at front
	cacheIndex map[types.FrameID]*list.Element

	currSize int // evictable frames across both lists

	mu sync.Mutex
}

// NewLRUKReplacer creates a replacer for frame ids in [0, size) with history
// depth k.
func NewLRUKReplacer(size, k int) *LRUKReplacer {
	return &LRUKReplacer{
		size:         size,
		k:            k,
		accessCount:  make(map[types.FrameID]int),
		evictable:    make(map[types.FrameID]bool),
		historyList:  list.New(),
		historyIndex: make(map[types.FrameID]*list.Element),
		cacheList:    list.New(),
		cacheIndex:   make(map[types.FrameID]*list.Element),
	}
}

// RecordAccess notes an access to frameID at the current logical timestamp.
func (r *LRUKReplacer) RecordAccess(frameID types.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameID >= r.size || frameID < 0 {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidFrame, frameID, r.size)
	}

	r.accessCount[frameID]++
	count := r.accessCount[frameID]

	switch {
	case count < r.k:
		// Still warming up. Enter the history FIFO once; later accesses
		// below k do not reorder it.
		if _, ok := r.historyIndex[frameID]; !ok {
			r.historyIndex[frameID] = r.historyList.PushFront(frameID)
		}
	case count == r.k:
		// Graduate from history to cache.
		if el, ok := r.historyIndex[frameID]; ok {
			r.historyList.Remove(el)
			delete(r.historyIndex, frameID)
		}
		r.cacheIndex[frameID] = r.cacheList.PushFront(frameID)
	default:
		// Already in the cache list: refresh to front.
		if el, ok := r.cacheIndex[frameID]; ok {
			r.cacheList.Remove(el)
		}
		r.cacheIndex[frameID] = r.cacheList.PushFront(frameID)
	}
	return nil
}

// SetEvictable toggles whether frameID may be chosen as a victim. Frames
// with no recorded access history are ignored; the pool records an access
// before it ever unpins a frame.
func (r *LRUKReplacer) SetEvictable(frameID types.FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameID >= r.size || frameID < 0 {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidFrame, frameID, r.size)
	}
	if r.accessCount[frameID] == 0 {
		return nil
	}
	if r.evictable[frameID] == evictable {
		return nil
	}
	r.evictable[frameID] = evictable
	if evictable {
		r.currSize++
	} else {
		r.currSize--
	}
	return nil
}

// Evict selects and removes the evictable frame with the largest backward
// k-distance. The second return is false when no frame is evictable.
func (r *LRUKReplacer) Evict() (types.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currSize == 0 {
		return 0, false
	}

	// History list first: every entry has +inf distance, tail is the oldest
	// insertion.
	for el := r.historyList.Back(); el != nil; el = el.Prev() {
		frameID := el.Value.(types.FrameID)
		if r.evictable[frameID] {
			r.historyList.Remove(el)
			delete(r.historyIndex, frameID)
			r.dropFrame(frameID)
			return frameID, true
		}
	}

	// Cache list tail holds the oldest most-recent access.
	for el := r.cacheList.Back(); el != nil; el = el.Prev() {
		frameID := el.Value.(types.FrameID)
		if r.evictable[frameID] {
			r.cacheList.Remove(el)
			delete(r.cacheIndex, frameID)
			r.dropFrame(frameID)
			return frameID, true
		}
	}

	return 0, false
}

// Remove drops frameID and its access history regardless of its k-distance.
// Unknown frames are a no-op; removing a non-evictable frame is an error.
func (r *LRUKReplacer) Remove(frameID types.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if frameID >= r.size || frameID < 0 {
		return fmt.Errorf("%w: %d (size %d)", ErrInvalidFrame, frameID, r.size)
	}
	if r.accessCount[frameID] == 0 {
		return nil
	}
	if !r.evictable[frameID] {
		return fmt.Errorf("%w: %d", ErrNotEvictable, frameID)
	}

	if el, ok := r.historyIndex[frameID]; ok {
		r.historyList.Remove(el)
		delete(r.historyIndex, frameID)
	} else if el, ok := r.cacheIndex[frameID]; ok {
		r.cacheList.Remove(el)
		delete(r.cacheIndex, frameID)
	}
	r.dropFrame(frameID)
	return nil
}

// Size returns the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}

// dropFrame clears the bookkeeping of a frame that left either list.
// Caller holds the mutex and has already unlinked the list element.
func (r *LRUKReplacer) dropFrame(frameID types.FrameID) {
	delete(r.accessCount, frameID)
	delete(r.evictable, frameID)
	r.currSize--
}
