package page

import (
	"KernelDB/types"
	"sync"
)

const (
	PageSize = types.PageSize
)

/*
Central page struct shared by every consumer of the buffer pool.

A Page is the in-memory image of one on-disk page. The buffer pool owns a
fixed array of these (one per frame) and recycles them: the same Page struct
holds different on-disk pages over its lifetime. PinCount and IsDirty are
mutated only under the buffer pool's mutex; the embedded RWMutex is an
advisory content latch for callers that share a pinned page across
goroutines.

The actual byte layout inside Data is the business of the access layer:
heap pages are laid out by storage_engine/access/heapfile_manager, B+ tree
pages by storage_engine/access/indexfile_manager/bplustree.
*/

type Page struct {
	ID       types.PageID
	Data     []byte
	IsDirty  bool
	PinCount int
	PageType types.PageType
	mu       sync.RWMutex
}

// New returns a blank page image holding no on-disk page.
func New() *Page {
	return &Page{
		ID:   types.InvalidPageID,
		Data: make([]byte, PageSize),
	}
}

// ResetMemory zeroes the page bytes. Called when a frame is recycled so the
// next occupant never observes the previous page's content.
func (p *Page) ResetMemory() {
	for i := range p.Data {
		p.Data[i] = 0
	}
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
