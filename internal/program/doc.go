// Package program implements the compiled program container executed by the runtime.
//
// A program file is a small binary container:
//
//	Format Structure:
//	  [0x00: Magic "MXPG"]
//	  [0x04: Version (uint32 LE)]
//	  [0x08: Flags (uint32 LE)]
//	  [0x0C: Reserved (uint32)]
//	  [0x10: Header Size (uint64 LE)]
//	  [0x18: Stored Data Size (uint64 LE)]
//	  [0x20: BLAKE3-256 of header JSON and stored data]
//	  [0x40: Header: JSON metadata]
//	  [Data segment: raw constant bytes, 64-byte aligned, optionally zstd-compressed]
//
// The header describes constants (offsets into the data segment) and methods. A method lists its
// values (tensors and scalars), its inputs and outputs, the sizes of the memory-planned buffers it
// needs, and the instruction chain that computes its outputs.
//
// Programs are immutable once loaded. Tensor metadata returned by [MethodMeta] references the
// parsed header and stays valid for the life of the [Program].
//
// Example usage:
//
//	// Build the two-input sum program and load it back
//	blob, err := program.AddModule(1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	prog, err := program.Load(program.NewBufferSource(blob))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	meta, err := prog.MethodMeta("forward")
package program
