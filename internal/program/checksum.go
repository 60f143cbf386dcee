package program

import (
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// Checksum is the BLAKE3-256 digest stored in the fixed header.
type Checksum [ChecksumSize]byte

// ComputeChecksum hashes the header JSON followed by the stored (possibly compressed) data segment.
func ComputeChecksum(header, data []byte) Checksum {
	h := blake3.New()
	_, _ = h.Write(header)
	_, _ = h.Write(data)

	var sum Checksum
	copy(sum[:], h.Sum(nil))
	return sum
}

// ValidateChecksum compares computed checksum against stored checksum.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored Checksum) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}

// String returns the base58-encoded representation.
func (c Checksum) String() string {
	return base58.Encode(c[:])
}

// IsZero returns true if the checksum is all zeros.
func (c Checksum) IsZero() bool {
	return c == Checksum{}
}

// ParseID parses a base58-encoded program ID.
func ParseID(s string) (Checksum, error) {
	var c Checksum
	data, err := base58.Decode(s)
	if err != nil {
		return c, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != ChecksumSize {
		return c, fmt.Errorf("program id has %d bytes, want %d", len(data), ChecksumSize)
	}
	copy(c[:], data)
	return c, nil
}
