package heapfile

import (
	"sync"

	"KernelDB/storage_engine/bufferpool"
	"KernelDB/types"
)

// HeapFile is a chain of slotted pages holding one table's records. Pages
// are linked through the NextPageID header field; the chain only grows.
// Every page touch goes through the buffer pool: pin, operate, unpin.
type HeapFile struct {
	bufferPool  *bufferpool.BufferPoolManager
	firstPageID types.PageID
	lastPageID  types.PageID
	mu          sync.Mutex
}
