package program

import (
	"encoding/binary"
	"encoding/json"

	"github.com/born-ml/microexec/internal/status"
)

// LoadOptions configures how a program is parsed and verified.
type LoadOptions struct {
	// Verification controls how much of the program is checked (default: VerifyChecksum).
	Verification Verification

	// MaxDataSize bounds the decoded data segment in bytes (0 = unlimited).
	MaxDataSize int64
}

// DefaultLoadOptions returns the default load options.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Verification: VerifyChecksum,
		MaxDataSize:  64 * 1024 * 1024,
	}
}

// LoadOption overrides a field of LoadOptions.
type LoadOption func(*LoadOptions)

// WithVerification sets the verification level.
func WithVerification(v Verification) LoadOption {
	return func(o *LoadOptions) { o.Verification = v }
}

// WithMaxDataSize bounds the decoded data segment.
func WithMaxDataSize(n int64) LoadOption {
	return func(o *LoadOptions) { o.MaxDataSize = n }
}

// WithLoadOptions replaces all options at once.
func WithLoadOptions(opts LoadOptions) LoadOption {
	return func(o *LoadOptions) { *o = opts }
}

// Load parses a program from src.
//
// Source I/O failures are reported as status.AccessFailed; every other failure
// (bad magic, checksum mismatch, malformed header, failed validation) as status.InvalidProgram.
// Sentinels such as ErrInvalidMagic stay reachable through errors.Is.
func Load(src DataSource, opts ...LoadOption) (*Program, error) {
	o := DefaultLoadOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if src == nil {
		return nil, status.Errorf(status.InvalidArgument, "nil data source")
	}
	if src.Size() < FixedHeaderSize {
		return nil, status.Errorf(status.InvalidProgram, "%w: %d bytes, fixed header needs %d", ErrTruncated, src.Size(), FixedHeaderSize)
	}

	fixed, err := src.Load(0, FixedHeaderSize)
	if err != nil {
		return nil, status.Errorf(status.AccessFailed, "reading fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return nil, status.Errorf(status.InvalidProgram, "%w: got %q", ErrInvalidMagic, fixed[0:4])
	}
	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return nil, status.Errorf(status.InvalidProgram, "%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	storedSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored Checksum
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, status.Errorf(status.InvalidProgram, "%w: %d bytes, max %d", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	dataOffset := alignUp(FixedHeaderSize+int64(headerSize), DataAlignment) //nolint:gosec // G115: bounded by MaxHeaderSize
	available := int64(src.Size()) - dataOffset
	if available < 0 || storedSize > uint64(available) {
		return nil, status.Errorf(status.InvalidProgram, "%w: header %d + data %d bytes exceed source of %d bytes",
			ErrTruncated, headerSize, storedSize, src.Size())
	}

	headerBytes, err := src.Load(FixedHeaderSize, int(headerSize))
	if err != nil {
		return nil, status.Errorf(status.AccessFailed, "reading header: %w", err)
	}
	storedData, err := src.Load(int(dataOffset), int(storedSize))
	if err != nil {
		return nil, status.Errorf(status.AccessFailed, "reading data segment: %w", err)
	}

	// The ID is always computed: it names the program in logs and in the store.
	id := ComputeChecksum(headerBytes, storedData)
	if o.Verification == VerifyChecksum {
		if err := ValidateChecksum(id, stored); err != nil {
			return nil, status.Errorf(status.InvalidProgram, "%w", err)
		}
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, status.Errorf(status.InvalidProgram, "failed to parse header JSON: %w", err)
	}

	data := storedData
	if flags&FlagCompressed != 0 {
		data, err = decompressData(storedData, o.MaxDataSize)
		if err != nil {
			return nil, status.Errorf(status.InvalidProgram, "failed to decompress data segment: %w", err)
		}
	} else if o.MaxDataSize > 0 && int64(len(data)) > o.MaxDataSize {
		return nil, status.Errorf(status.InvalidProgram, "%w: %d bytes, max %d", ErrDataTooLarge, len(data), o.MaxDataSize)
	}

	if err := ValidateHeader(&header, int64(len(data)), o.Verification); err != nil {
		return nil, status.Errorf(status.InvalidProgram, "validation failed: %w", err)
	}

	return newProgram(header, flags, data, id), nil
}

// alignUp rounds n up to a multiple of align.
func alignUp(n, align int64) int64 {
	return (n + align - 1) / align * align
}
