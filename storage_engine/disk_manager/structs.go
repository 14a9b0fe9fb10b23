package diskmanager

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// ############################################# DISK MANAGER #############################################

// DiskManager owns the database file and performs all page-granular I/O for
// the buffer pool. Pages live at fixed offsets: page N occupies bytes
// [N*PageSize, (N+1)*PageSize).
type DiskManager struct {
	path   string
	file   *os.File
	logger *zap.Logger

	numReads  uint64
	numWrites uint64

	mu sync.Mutex
}

// DiskStats reports I/O counters since the manager was opened.
type DiskStats struct {
	NumReads  uint64
	NumWrites uint64
}
