package bufferpool

import (
	"fmt"

	diskmanager "KernelDB/storage_engine/disk_manager"
	"KernelDB/storage_engine/hashtable"
	"KernelDB/storage_engine/page"
	"KernelDB/storage_engine/replacer"
	"KernelDB/types"

	"go.uber.org/zap"
)

/*
This file is the main file of the buffer pool.

The pool caches on-disk pages in a fixed array of frames. Frames are found
through an extendible-hash page table (PageID -> FrameID); victims come from
the free list first, then from the LRU-K replacer. Pages handed out by
NewPage/FetchPage are pinned and stay in their frame until the caller unpins
them; unpinning to zero makes the frame evictable again.

Invariants the operations below maintain together:

	A frame is in the free list iff the page table has no entry mapping to it.
	A frame with pin count > 0 is marked non-evictable in the replacer.
	No two frames ever hold the same page id.
	A dirty frame is written to disk before its frame is reused.

Everything runs under one mutex, disk I/O included. Callers therefore block
on each other's misses; fine for this engine's scale.
*/

// NewBufferPool creates a pool of poolSize frames over diskManager, with
// LRU-K history depth replacerK. A nil logger disables logging.
func NewBufferPool(poolSize, replacerK int, diskManager *diskmanager.DiskManager, logger *zap.Logger) *BufferPoolManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferPoolManager{
		poolSize:    poolSize,
		frames:      make([]*page.Page, poolSize),
		freeList:    make([]types.FrameID, 0, poolSize),
		pageTable:   hashtable.NewExtendibleHashTable[types.PageID, types.FrameID](pageTableBucketSize, pageIDHasher),
		replacer:    replacer.NewLRUKReplacer(poolSize, replacerK),
		diskManager: diskManager,
		logger:      logger,
	}

	// Initially every frame is free.
	for i := 0; i < poolSize; i++ {
		bp.frames[i] = page.New()
		bp.freeList = append(bp.freeList, i)
	}

	return bp
}

// pageIDHasher indexes the page table by the page id's own low bits.
func pageIDHasher(id types.PageID) uint64 {
	return uint64(id)
}

// NewPage allocates a fresh page id, places it in a frame, and returns the
// frame pinned. Returns ErrNoFreeFrames when every frame is pinned.
func (bp *BufferPoolManager) NewPage() (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.allPinned() {
		return nil, ErrNoFreeFrames
	}

	frameID, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}

	pageID := bp.allocatePage()
	pg := bp.frames[frameID]
	pg.ID = pageID
	pg.PinCount = 1
	pg.IsDirty = false
	pg.PageType = types.PageTypeUnknown
	pg.ResetMemory()

	_ = bp.replacer.RecordAccess(frameID)
	_ = bp.replacer.SetEvictable(frameID, false)
	bp.pageTable.Insert(pageID, frameID)

	bp.logger.Debug("new page",
		zap.Int64("pageID", int64(pageID)),
		zap.Int("frameID", frameID))

	return pg, nil
}

// FetchPage returns the page with the given id, pinned. On a miss it brings
// the page in from disk, evicting if necessary. Returns ErrNoFreeFrames when
// the page is not resident and every frame is pinned.
func (bp *BufferPoolManager) FetchPage(pageID types.PageID) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, ok := bp.pageTable.Find(pageID); ok {
		bp.numHits++
		pg := bp.frames[frameID]
		pg.PinCount++
		_ = bp.replacer.RecordAccess(frameID)
		_ = bp.replacer.SetEvictable(frameID, false)
		return pg, nil
	}

	if bp.allPinned() {
		return nil, ErrNoFreeFrames
	}

	frameID, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}

	pg := bp.frames[frameID]
	if err := bp.diskManager.ReadPage(pageID, pg.Data); err != nil {
		// Hand the frame back so the failed fetch leaks nothing.
		bp.freeList = append(bp.freeList, frameID)
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}

	bp.numMisses++
	pg.ID = pageID
	pg.PinCount = 1
	pg.IsDirty = false
	pg.PageType = types.PageTypeUnknown

	_ = bp.replacer.RecordAccess(frameID)
	_ = bp.replacer.SetEvictable(frameID, false)
	bp.pageTable.Insert(pageID, frameID)

	bp.logger.Debug("fetch miss",
		zap.Int64("pageID", int64(pageID)),
		zap.Int("frameID", frameID))

	return pg, nil
}

// UnpinPage drops one pin on the page. isDirty ors into the dirty flag —
// unpinning clean never clears a dirty mark left by another holder. When the
// pin count reaches zero the frame becomes evictable.
func (bp *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable.Find(pageID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}
	pg := bp.frames[frameID]
	if pg.PinCount <= 0 {
		return fmt.Errorf("%w: %d", ErrPageNotPinned, pageID)
	}

	if isDirty {
		pg.IsDirty = true
	}
	pg.PinCount--
	if pg.PinCount == 0 {
		_ = bp.replacer.SetEvictable(frameID, true)
	}
	return nil
}

// FlushPage writes the page to disk regardless of its dirty flag, then
// clears the flag.
func (bp *BufferPoolManager) FlushPage(pageID types.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pageID)
}

// FlushAllPages flushes every resident page. Frames holding no page are
// skipped.
func (bp *BufferPoolManager) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, pg := range bp.frames {
		if pg.ID == types.InvalidPageID {
			continue
		}
		if err := bp.flushPageLocked(pg.ID); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage evicts the page from the pool and releases its id. A page that
// is not resident is already gone: nil. A pinned page cannot be deleted:
// ErrPagePinned.
func (bp *BufferPoolManager) DeletePage(pageID types.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable.Find(pageID)
	if !ok {
		return nil
	}
	pg := bp.frames[frameID]
	if pg.PinCount > 0 {
		return fmt.Errorf("%w: %d", ErrPagePinned, pageID)
	}

	bp.pageTable.Remove(pageID)
	if err := bp.replacer.Remove(frameID); err != nil {
		return fmt.Errorf("failed to drop frame %d from replacer: %w", frameID, err)
	}
	bp.freeList = append(bp.freeList, frameID)

	pg.ID = types.InvalidPageID
	pg.PinCount = 0
	pg.IsDirty = false
	pg.PageType = types.PageTypeUnknown
	pg.ResetMemory()

	bp.deallocatePage(pageID)
	return nil
}

// flushPageLocked is FlushPage without the lock dance. Caller holds bp.mu.
func (bp *BufferPoolManager) flushPageLocked(pageID types.PageID) error {
	if pageID == types.InvalidPageID {
		return ErrInvalidPageID
	}
	frameID, ok := bp.pageTable.Find(pageID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPageNotFound, pageID)
	}

	pg := bp.frames[frameID]
	if err := bp.diskManager.WritePage(pageID, pg.Data); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", pageID, err)
	}
	pg.IsDirty = false
	return nil
}

// acquireFrame yields a frame to put a page in: free list first, then a
// victim from the replacer. An evicted occupant is flushed if dirty and
// unhooked from the page table. Caller holds bp.mu.
func (bp *BufferPoolManager) acquireFrame() (types.FrameID, error) {
	if len(bp.freeList) > 0 {
		frameID := bp.freeList[0]
		bp.freeList = bp.freeList[1:]
		return frameID, nil
	}

	frameID, ok := bp.replacer.Evict()
	if !ok {
		return 0, ErrNoFreeFrames
	}

	victim := bp.frames[frameID]
	if victim.IsDirty {
		if err := bp.diskManager.WritePage(victim.ID, victim.Data); err != nil {
			return 0, fmt.Errorf("failed to write back evicted page %d: %w", victim.ID, err)
		}
		victim.IsDirty = false
	}
	bp.pageTable.Remove(victim.ID)

	bp.logger.Debug("evict",
		zap.Int64("pageID", int64(victim.ID)),
		zap.Int("frameID", frameID))

	victim.ID = types.InvalidPageID
	return frameID, nil
}

// allPinned reports whether no frame can possibly be handed out. Caller
// holds bp.mu.
func (bp *BufferPoolManager) allPinned() bool {
	for _, pg := range bp.frames {
		if pg.PinCount <= 0 {
			return false
		}
	}
	return true
}

// allocatePage hands out the next page id. Caller holds bp.mu.
func (bp *BufferPoolManager) allocatePage() types.PageID {
	id := bp.nextPageID
	bp.nextPageID++
	return id
}

// deallocatePage is the bookkeeping hook for a released page id. The data
// file is never truncated; the id is simply retired. Caller holds bp.mu.
func (bp *BufferPoolManager) deallocatePage(pageID types.PageID) {
	bp.numDeallocated++
	bp.logger.Debug("deallocate page", zap.Int64("pageID", int64(pageID)))
}
