package program

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressData compresses the data segment using zstd.
func compressData(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer func() { _ = encoder.Close() }()
	return encoder.EncodeAll(data, nil), nil
}

// decompressData decompresses a zstd data segment, refusing output larger than limit bytes.
// The decoder stops as soon as the declared or produced size passes the limit.
func decompressData(data []byte, limit int64) ([]byte, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
	if limit > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(limit))) //nolint:gosec // G115: limit is positive
	}
	decoder, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("%w: decoded size exceeds max %d", ErrDataTooLarge, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: %d bytes decompressed, max %d", ErrDataTooLarge, len(out), limit)
	}
	return out, nil
}
