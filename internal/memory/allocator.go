package memory

import (
	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/status"
)

// HierarchicalAllocator holds the memory-planned buffers of a method, indexed by buffer id.
type HierarchicalAllocator struct {
	buffers [][]byte
}

// NewHierarchicalAllocator wraps buffers; buffers[i] is planned buffer i.
func NewHierarchicalAllocator(buffers [][]byte) *HierarchicalAllocator {
	return &HierarchicalAllocator{buffers: buffers}
}

// NumBuffers returns the number of planned buffers.
func (h *HierarchicalAllocator) NumBuffers() int {
	return len(h.buffers)
}

// BufferSize returns the size of planned buffer id.
func (h *HierarchicalAllocator) BufferSize(id int) (int, error) {
	if id < 0 || id >= len(h.buffers) {
		return 0, status.Errorf(status.InvalidArgument, "planned buffer %d out of range (%d buffers)", id, len(h.buffers))
	}
	return len(h.buffers[id]), nil
}

// OffsetFromID returns size bytes at offset inside planned buffer id.
func (h *HierarchicalAllocator) OffsetFromID(id, offset, size int) ([]byte, error) {
	n, err := h.BufferSize(id)
	if err != nil {
		return nil, err
	}
	if offset < 0 || size < 0 || offset > n || size > n-offset {
		return nil, status.Errorf(status.InvalidArgument, "range [%d, +%d) outside planned buffer %d of %d bytes", offset, size, id, n)
	}
	end := offset + size
	return h.buffers[id][offset:end:end], nil
}

// Manager is the execution context of a loaded method: the arena its bookkeeping lives in,
// its planned buffers, and the scratch arena kernels draw from.
type Manager struct {
	method  *arena.Arena
	planned *HierarchicalAllocator
	temp    *arena.Arena
}

// NewManager bundles the arenas and planned buffers of a method.
func NewManager(method *arena.Arena, planned *HierarchicalAllocator, temp *arena.Arena) *Manager {
	return &Manager{
		method:  method,
		planned: planned,
		temp:    temp,
	}
}

// MethodAllocator returns the arena used for per-method bookkeeping.
func (m *Manager) MethodAllocator() *arena.Arena {
	return m.method
}

// PlannedMemory returns the planned buffers.
func (m *Manager) PlannedMemory() *HierarchicalAllocator {
	return m.planned
}

// TempAllocator returns the scratch arena.
func (m *Manager) TempAllocator() *arena.Arena {
	return m.temp
}
