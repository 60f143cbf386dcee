//go:build unix

package program

import (
	"fmt"
	"math"
	"os"
	"syscall"
)

// mmapFile maps size bytes of f read-only. Programs are never written through the mapping,
// so a private mapping is enough.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	if size <= 0 || size > math.MaxInt {
		return nil, fmt.Errorf("cannot map %d bytes", size)
	}
	//nolint:gosec // G115: fd fits in int, size bounded above
	return syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_PRIVATE)
}

// munmapFile releases a mapping returned by mmapFile.
func munmapFile(data []byte) error {
	return syscall.Munmap(data)
}
