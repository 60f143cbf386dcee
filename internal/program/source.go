package program

import (
	"fmt"
	"os"
)

// DataSource is a read-only, fixed-size byte source holding a serialized program.
type DataSource interface {
	// Load returns size bytes starting at offset. Implementations may return a view into their
	// own storage; callers must not modify it.
	Load(offset, size int) ([]byte, error)
	// Size returns the total number of bytes available.
	Size() int
}

// BufferSource serves a program from an in-memory buffer, such as one embedded in the binary.
// Load returns sub-slices of the buffer without copying.
type BufferSource struct {
	data []byte
}

// NewBufferSource wraps data. The caller must not modify data while a program loaded from it is in use.
func NewBufferSource(data []byte) *BufferSource {
	return &BufferSource{data: data}
}

// Load implements DataSource.
func (s *BufferSource) Load(offset, size int) ([]byte, error) {
	return sliceRange(s.data, offset, size)
}

// Size implements DataSource.
func (s *BufferSource) Size() int {
	return len(s.data)
}

// FileSource serves a program from a read-only memory-mapped file.
// Load returns views into the mapping; they are valid until Close.
type FileSource struct {
	file   *os.File
	data   []byte // mmap'd region (read-only)
	closed bool
}

// OpenFile memory-maps the program file at path.
//
// Important: Always call Close() when done to unmap the file (use defer).
func OpenFile(path string) (*FileSource, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for program loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	src := &FileSource{file: file}
	if stat.Size() == 0 {
		return src, nil
	}

	// Memory map the file (platform-specific implementation)
	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	src.data = data

	return src, nil
}

// Load implements DataSource.
func (s *FileSource) Load(offset, size int) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("file source is closed")
	}
	return sliceRange(s.data, offset, size)
}

// Size implements DataSource.
func (s *FileSource) Size() int {
	return len(s.data)
}

// Close unmaps and closes the file.
func (s *FileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.data != nil {
		err = munmapFile(s.data)
		s.data = nil
	}

	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

func sliceRange(data []byte, offset, size int) ([]byte, error) {
	if offset < 0 || size < 0 || offset > len(data) || size > len(data)-offset {
		return nil, fmt.Errorf("range [%d, +%d) outside source of %d bytes", offset, size, len(data))
	}
	return data[offset : offset+size : offset+size], nil
}
