package bufferpool

import (
	"errors"
	"sync"

	diskmanager "KernelDB/storage_engine/disk_manager"
	"KernelDB/storage_engine/hashtable"
	"KernelDB/storage_engine/page"
	"KernelDB/storage_engine/replacer"
	"KernelDB/types"

	"go.uber.org/zap"
)

// ############################################# BUFFER POOL #############################################

var (
	// ErrNoFreeFrames is returned by NewPage/FetchPage when every frame is
	// pinned and nothing can be evicted. Non-fatal: callers may retry after
	// unpinning.
	ErrNoFreeFrames = errors.New("all frames are pinned")

	// ErrPageNotFound is returned for operations on a page id with no
	// resident frame.
	ErrPageNotFound = errors.New("page not in buffer pool")

	// ErrPageNotPinned is returned by UnpinPage when the pin count is
	// already zero.
	ErrPageNotPinned = errors.New("page pin count is already zero")

	// ErrPagePinned is returned by DeletePage on a page someone still holds.
	ErrPagePinned = errors.New("page is pinned")

	// ErrInvalidPageID is returned by FlushPage for the invalid sentinel.
	ErrInvalidPageID = errors.New("invalid page id")
)

// bucket size for the page-table hash directory
const pageTableBucketSize = 4

// BufferPoolManager mediates between the fixed frame array and the paged
// database file. It owns every piece of shared state — frames, free list,
// page table, replacer, next page id — behind one mutex.
type BufferPoolManager struct {
	poolSize int

	frames    []*page.Page // frame array; index is the FrameID
	freeList  []types.FrameID
	pageTable *hashtable.ExtendibleHashTable[types.PageID, types.FrameID]
	replacer  *replacer.LRUKReplacer

	diskManager *diskmanager.DiskManager
	nextPageID  types.PageID

	numHits        uint64
	numMisses      uint64
	numDeallocated uint64

	logger *zap.Logger
	mu     sync.Mutex
}

// BufferPoolStats is a point-in-time snapshot of pool state.
type BufferPoolStats struct {
	ResidentPages int
	PinnedPages   int
	DirtyPages    int
	FreeFrames    int
	PoolSize      int
	NumHits       uint64
	NumMisses     uint64
	HitRate       float64
}
