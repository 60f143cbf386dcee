package program

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/microexec/internal/tensor"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize   = 16 * 1024 * 1024 // 16MB - maximum header size
	MaxConstants    = 100_000          // Maximum number of constants in a program
	MaxMethods      = 1024             // Maximum number of methods in a program
	MaxNameLen      = 4096             // Maximum constant or method name length
	MaxTensorRank   = 16               // Maximum declared tensor rank
	MaxPlannedBytes = 1 << 30          // Maximum size of one memory-planned buffer
)

// Verification controls how much of a program is checked at load time.
type Verification int

const (
	// VerifyChecksum checks the container checksum and the full structure (default).
	VerifyChecksum Verification = iota
	// VerifyStructure checks the structure of the header but not the checksum.
	VerifyStructure
	// VerifyMinimal only checks what is needed to parse the container (trusted input only).
	VerifyMinimal
)

// String returns the verification level name.
func (v Verification) String() string {
	switch v {
	case VerifyChecksum:
		return "checksum"
	case VerifyStructure:
		return "structure"
	case VerifyMinimal:
		return "minimal"
	default:
		return fmt.Sprintf("Verification(%d)", int(v))
	}
}

// ValidateConstants checks for overlapping constant regions and out-of-bounds access.
func ValidateConstants(constants []ConstantMeta, dataSize int64) error {
	if len(constants) > MaxConstants {
		return &ValidationError{
			Type:    "too_many_constants",
			Details: fmt.Sprintf("got %d, max %d", len(constants), MaxConstants),
		}
	}

	// Sort by offset for overlap detection.
	sorted := make([]ConstantMeta, len(constants))
	copy(sorted, constants)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, c := range sorted {
		if c.Offset < 0 || c.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Subject: c.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", c.Offset, c.Size),
			}
		}

		if c.Offset > dataSize || c.Size > dataSize-c.Offset {
			return &ValidationError{
				Type:    "out_of_bounds",
				Subject: c.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", c.Offset, c.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if c.Offset+c.Size > next.Offset {
				return &ValidationError{
					Type:     "offset_overlap",
					Subject:  c.Name,
					Subject2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						c.Offset, c.Offset+c.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateName checks constant and method names for separators and control bytes.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty name"}
	}
	if len(name) > MaxNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Subject: name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{Type: "invalid_name", Subject: name, Details: "contains '..'"}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{Type: "invalid_name", Subject: name, Details: "contains path separator (/ or \\)"}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{Type: "invalid_name", Subject: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
// Tags and scalar types are always checked since the runtime cannot interpret a program without them.
func ValidateHeader(h *Header, dataSize int64, level Verification) error {
	if len(h.Methods) > MaxMethods {
		return &ValidationError{
			Type:    "too_many_methods",
			Details: fmt.Sprintf("got %d, max %d", len(h.Methods), MaxMethods),
		}
	}

	for i := range h.Methods {
		if err := validateValueKinds(&h.Methods[i]); err != nil {
			return err
		}
	}

	if level == VerifyMinimal {
		return nil
	}

	for _, c := range h.Constants {
		if err := ValidateName(c.Name); err != nil {
			return err
		}
	}
	if err := ValidateConstants(h.Constants, dataSize); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(h.Methods))
	for i := range h.Methods {
		m := &h.Methods[i]
		if err := ValidateName(m.Name); err != nil {
			return err
		}
		if _, dup := seen[m.Name]; dup {
			return &ValidationError{Type: "duplicate_method", Subject: m.Name, Details: "method declared twice"}
		}
		seen[m.Name] = struct{}{}

		if err := ValidateMethod(m, h.Constants); err != nil {
			return err
		}
	}

	return nil
}

// validateValueKinds checks every value tag and tensor scalar type of a method.
func validateValueKinds(m *MethodDef) error {
	for i := range m.Values {
		v := &m.Values[i]
		tag, err := parseTag(v.Tag)
		if err != nil {
			return &ValidationError{Type: "bad_value_tag", Subject: m.Name, Details: fmt.Sprintf("value %d: %v", i, err)}
		}
		if tag != Tensor {
			continue
		}
		if v.Tensor == nil {
			return &ValidationError{Type: "bad_tensor", Subject: m.Name, Details: fmt.Sprintf("value %d: tensor tag without tensor", i)}
		}
		if _, err := v.Tensor.scalarType(); err != nil {
			return &ValidationError{Type: "bad_scalar_type", Subject: m.Name, Details: fmt.Sprintf("value %d: %v", i, err)}
		}
	}
	return nil
}

// ValidateMethod checks index ranges, tensor shapes and storage of a single method.
func ValidateMethod(m *MethodDef, constants []ConstantMeta) error {
	bad := func(typ, format string, args ...any) error {
		return &ValidationError{Type: typ, Subject: m.Name, Details: fmt.Sprintf(format, args...)}
	}

	for id, size := range m.PlannedBuffers {
		if size < 0 || size > MaxPlannedBytes {
			return bad("bad_planned_buffer", "buffer %d has size %d", id, size)
		}
	}

	for i := range m.Values {
		t := m.Values[i].Tensor
		if m.Values[i].Tag != TagTensor || t == nil {
			continue
		}
		if len(t.Sizes) > MaxTensorRank {
			return bad("bad_tensor", "value %d: rank %d > max %d", i, len(t.Sizes), MaxTensorRank)
		}
		if err := tensor.ValidateSizes(t.Sizes); err != nil {
			return bad("bad_tensor", "value %d: %v", i, err)
		}
		if err := tensor.ValidateDimOrder(t.DimOrder, len(t.Sizes)); err != nil {
			return bad("bad_tensor", "value %d: %v", i, err)
		}
		if t.Alloc != nil && t.Constant != nil {
			return bad("bad_storage", "value %d: both planned and constant", i)
		}
		nbytes := t.NBytes()
		if a := t.Alloc; a != nil {
			if a.BufferID < 0 || a.BufferID >= len(m.PlannedBuffers) {
				return bad("bad_storage", "value %d: buffer %d out of range (%d buffers)", i, a.BufferID, len(m.PlannedBuffers))
			}
			size := m.PlannedBuffers[a.BufferID]
			if a.Offset < 0 || a.Offset > size || nbytes > size-a.Offset {
				return bad("bad_storage", "value %d: [%d, +%d) outside buffer %d of %d bytes", i, a.Offset, nbytes, a.BufferID, size)
			}
		}
		if c := t.Constant; c != nil {
			if *c < 0 || *c >= len(constants) {
				return bad("bad_storage", "value %d: constant %d out of range (%d constants)", i, *c, len(constants))
			}
			if constants[*c].Size != nbytes {
				return bad("bad_storage", "value %d: constant %q has %d bytes, tensor needs %d", i, constants[*c].Name, constants[*c].Size, nbytes)
			}
		}
	}

	checkIndex := func(what string, j, idx int) error {
		if idx < 0 || idx >= len(m.Values) {
			return bad("bad_value_index", "%s %d: value %d out of range (%d values)", what, j, idx, len(m.Values))
		}
		return nil
	}
	for j, idx := range m.Inputs {
		if err := checkIndex("input", j, idx); err != nil {
			return err
		}
	}
	for j, idx := range m.Outputs {
		if err := checkIndex("output", j, idx); err != nil {
			return err
		}
	}

	for j, ins := range m.Instructions {
		switch ins.Kind {
		case InstrKernel:
			if ins.Kernel == "" {
				return bad("bad_instruction", "instruction %d: kernel name is empty", j)
			}
		case InstrMove:
			if len(ins.Args) != 2 {
				return bad("bad_instruction", "instruction %d: move takes 2 args, got %d", j, len(ins.Args))
			}
		default:
			return bad("bad_instruction", "instruction %d: unknown kind %q", j, ins.Kind)
		}
		for _, idx := range ins.Args {
			if err := checkIndex("instruction", j, idx); err != nil {
				return err
			}
		}
	}

	return nil
}
