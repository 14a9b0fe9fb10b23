//go:build windows

package sys

import (
	"os"

	"golang.org/x/sys/windows"
)

// DataSync flushes file data to stable storage via FlushFileBuffers, the
// closest Windows equivalent of fdatasync.
func DataSync(file *os.File) error {
	return windows.FlushFileBuffers(windows.Handle(file.Fd()))
}
