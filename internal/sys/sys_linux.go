//go:build linux

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// DataSync flushes file data to stable storage. fdatasync skips the
// metadata-only journal write that a full fsync forces.
func DataSync(file *os.File) error {
	return unix.Fdatasync(int(file.Fd()))
}
