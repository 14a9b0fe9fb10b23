package diskmanager

import (
	"fmt"
	"os"

	"KernelDB/internal/sys"
	"KernelDB/types"

	"go.uber.org/zap"
)

/*
This is the main file for the disk manager.
It owns:
The file descriptor (os.File) of the single database file
Reading/writing raw page-sized byte slices at fixed offsets (ReadAt, WriteAt)
The durable-sync point (fdatasync via internal/sys)

Page ID to offset mapping:
offset = pageID * PageSize
This makes offsets deterministic — no translation table needed, same result
on every restart.

The buffer pool is the only caller. On a cache miss it asks the disk manager
to fill a frame; on eviction of a dirty frame it asks it to write the frame
back. Page allocation bookkeeping (nextPageID) lives in the buffer pool, per
its ownership of all pool state.
*/

// NewDiskManager opens or creates the database file at path.
func NewDiskManager(path string, logger *zap.Logger) (*DiskManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open database file %s: %w", path, err)
	}

	return &DiskManager{
		path:   path,
		file:   file,
		logger: logger,
	}, nil
}

// ReadPage reads the page at pageID into buf. Reads past the current end of
// file (pages allocated but never flushed) return a zeroed buffer.
func (dm *DiskManager) ReadPage(pageID types.PageID, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return fmt.Errorf("database file %s is closed", dm.path)
	}
	if pageID < 0 {
		return fmt.Errorf("cannot read invalid page id %d", pageID)
	}
	if len(buf) != types.PageSize {
		return fmt.Errorf("read buffer size %d does not match page size %d", len(buf), types.PageSize)
	}

	offset := int64(pageID) * int64(types.PageSize)
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		// Nothing on disk yet for this page; a page that was never flushed
		// reads as all-zero bytes.
		for i := range buf {
			buf[i] = 0
		}
		dm.numReads++
		dm.logger.Debug("read past end of file, zero-filled",
			zap.Int64("pageID", int64(pageID)))
		return nil
	}

	// Pad with zeros on a partial read at the file tail.
	for i := n; i < types.PageSize; i++ {
		buf[i] = 0
	}

	dm.numReads++
	return nil
}

// WritePage writes buf to the page at pageID.
func (dm *DiskManager) WritePage(pageID types.PageID, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return fmt.Errorf("database file %s is closed", dm.path)
	}
	if pageID < 0 {
		return fmt.Errorf("cannot write invalid page id %d", pageID)
	}
	if len(buf) != types.PageSize {
		return fmt.Errorf("page data size %d does not match page size %d", len(buf), types.PageSize)
	}

	offset := int64(pageID) * int64(types.PageSize)
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("failed to write page %d: %w", pageID, err)
	}

	dm.numWrites++
	dm.logger.Debug("wrote page", zap.Int64("pageID", int64(pageID)))
	return nil
}

// Sync forces written pages down to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return fmt.Errorf("database file %s is closed", dm.path)
	}
	if err := sys.DataSync(dm.file); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dm.path, err)
	}
	return nil
}

// Close releases the file handle. Further I/O fails.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.file == nil {
		return nil
	}
	err := dm.file.Close()
	dm.file = nil
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", dm.path, err)
	}
	return nil
}

// Stats returns I/O counters since open.
func (dm *DiskManager) Stats() DiskStats {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return DiskStats{NumReads: dm.numReads, NumWrites: dm.numWrites}
}
