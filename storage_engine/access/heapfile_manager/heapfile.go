package heapfile

import (
	"fmt"

	"KernelDB/storage_engine/bufferpool"
	"KernelDB/types"
)

/*
HeapFile operations: insert, fetch, delete, scan.

The heap file never caches page contents itself — every operation pins the
pages it touches through the buffer pool and unpins them before returning,
dirty when it mutated. RowPointers (page id + slot index) stay stable for
the lifetime of a record; deletes leave tombstone slots behind.
*/

// CreateHeapFile allocates the first page of a fresh heap file.
func CreateHeapFile(pool *bufferpool.BufferPoolManager) (*HeapFile, error) {
	pg, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate first heap page: %w", err)
	}
	InitHeapPage(pg)
	pageID := pg.ID
	if err := pool.UnpinPage(pageID, true); err != nil {
		return nil, err
	}

	return &HeapFile{
		bufferPool:  pool,
		firstPageID: pageID,
		lastPageID:  pageID,
	}, nil
}

// OpenHeapFile attaches to an existing chain starting at firstPageID,
// walking it to find the tail.
func OpenHeapFile(pool *bufferpool.BufferPoolManager, firstPageID types.PageID) (*HeapFile, error) {
	last := firstPageID
	for {
		pg, err := pool.FetchPage(last)
		if err != nil {
			return nil, fmt.Errorf("failed to walk heap chain at page %d: %w", last, err)
		}
		next := GetNextPageID(pg)
		if err := pool.UnpinPage(last, false); err != nil {
			return nil, err
		}
		if next == types.InvalidPageID {
			break
		}
		last = next
	}

	return &HeapFile{
		bufferPool:  pool,
		firstPageID: firstPageID,
		lastPageID:  last,
	}, nil
}

// FirstPageID returns the head of the page chain.
func (hf *HeapFile) FirstPageID() types.PageID {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.firstPageID
}

// LastPageID returns the current tail of the page chain.
func (hf *HeapFile) LastPageID() types.PageID {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.lastPageID
}

// InsertRow places data on the first chain page with room, appending a new
// page to the chain when none fits.
func (hf *HeapFile) InsertRow(data []byte) (types.RowPointer, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	if len(data) == 0 {
		return types.RowPointer{}, fmt.Errorf("cannot insert empty row")
	}
	if len(data) > types.PageSize-HeapHeaderSize-SlotSize {
		return types.RowPointer{}, fmt.Errorf("row of %d bytes exceeds page capacity", len(data))
	}

	pageID := hf.firstPageID
	for {
		pg, err := hf.bufferPool.FetchPage(pageID)
		if err != nil {
			return types.RowPointer{}, fmt.Errorf("failed to fetch heap page %d: %w", pageID, err)
		}

		if RecordFits(pg, len(data)) {
			slotIdx, err := InsertRecord(pg, data)
			if err != nil {
				_ = hf.bufferPool.UnpinPage(pageID, false)
				return types.RowPointer{}, err
			}
			if err := hf.bufferPool.UnpinPage(pageID, true); err != nil {
				return types.RowPointer{}, err
			}
			return types.RowPointer{PageID: pageID, SlotIndex: slotIdx}, nil
		}

		next := GetNextPageID(pg)
		if next != types.InvalidPageID {
			if err := hf.bufferPool.UnpinPage(pageID, false); err != nil {
				return types.RowPointer{}, err
			}
			pageID = next
			continue
		}

		// Tail reached with no room: grow the chain while still holding the
		// tail pin so the link update is not lost to eviction.
		fresh, err := hf.bufferPool.NewPage()
		if err != nil {
			_ = hf.bufferPool.UnpinPage(pageID, false)
			return types.RowPointer{}, fmt.Errorf("failed to grow heap file: %w", err)
		}
		InitHeapPage(fresh)
		SetNextPageID(pg, fresh.ID)
		hf.lastPageID = fresh.ID

		if err := hf.bufferPool.UnpinPage(pageID, true); err != nil {
			return types.RowPointer{}, err
		}

		slotIdx, err := InsertRecord(fresh, data)
		freshID := fresh.ID
		if err != nil {
			_ = hf.bufferPool.UnpinPage(freshID, true)
			return types.RowPointer{}, err
		}
		if err := hf.bufferPool.UnpinPage(freshID, true); err != nil {
			return types.RowPointer{}, err
		}
		return types.RowPointer{PageID: freshID, SlotIndex: slotIdx}, nil
	}
}

// GetRow returns a copy of the record behind ptr.
func (hf *HeapFile) GetRow(ptr types.RowPointer) ([]byte, error) {
	pg, err := hf.bufferPool.FetchPage(ptr.PageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch heap page %d: %w", ptr.PageID, err)
	}
	data, err := GetRecord(pg, ptr.SlotIndex)
	if unpinErr := hf.bufferPool.UnpinPage(ptr.PageID, false); unpinErr != nil && err == nil {
		err = unpinErr
	}
	return data, err
}

// DeleteRow tombstones the record behind ptr.
func (hf *HeapFile) DeleteRow(ptr types.RowPointer) error {
	pg, err := hf.bufferPool.FetchPage(ptr.PageID)
	if err != nil {
		return fmt.Errorf("failed to fetch heap page %d: %w", ptr.PageID, err)
	}
	if err := DeleteRecord(pg, ptr.SlotIndex); err != nil {
		_ = hf.bufferPool.UnpinPage(ptr.PageID, false)
		return err
	}
	return hf.bufferPool.UnpinPage(ptr.PageID, true)
}

// ─────────────────────────────────────────────────────────────────────────────
// Forward scan
// ─────────────────────────────────────────────────────────────────────────────

// Iterator walks every live record of the heap file in chain order. Not
// safe for concurrent use with writers that grow the chain mid-scan.
type Iterator struct {
	hf       *HeapFile
	pageID   types.PageID
	nextSlot uint16
}

// NewIterator positions a scan at the head of the chain.
func (hf *HeapFile) NewIterator() *Iterator {
	return &Iterator{hf: hf, pageID: hf.FirstPageID(), nextSlot: 0}
}

// Next returns the next live record and its pointer. ok is false at the end
// of the heap file.
func (it *Iterator) Next() (data []byte, ptr types.RowPointer, ok bool, err error) {
	for it.pageID != types.InvalidPageID {
		pg, err := it.hf.bufferPool.FetchPage(it.pageID)
		if err != nil {
			return nil, types.RowPointer{}, false, fmt.Errorf("failed to fetch heap page %d: %w", it.pageID, err)
		}

		slotCount := GetSlotCount(pg)
		for it.nextSlot < slotCount {
			slotIdx := it.nextSlot
			it.nextSlot++
			if _, length := readSlot(pg, slotIdx); length == 0 {
				continue // tombstone
			}
			record, err := GetRecord(pg, slotIdx)
			if err != nil {
				_ = it.hf.bufferPool.UnpinPage(pg.ID, false)
				return nil, types.RowPointer{}, false, err
			}
			ptr := types.RowPointer{PageID: it.pageID, SlotIndex: slotIdx}
			if err := it.hf.bufferPool.UnpinPage(ptr.PageID, false); err != nil {
				return nil, types.RowPointer{}, false, err
			}
			return record, ptr, true, nil
		}

		next := GetNextPageID(pg)
		if err := it.hf.bufferPool.UnpinPage(it.pageID, false); err != nil {
			return nil, types.RowPointer{}, false, err
		}
		it.pageID = next
		it.nextSlot = 0
	}
	return nil, types.RowPointer{}, false, nil
}
