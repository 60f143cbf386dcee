package memory

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/microexec/internal/arena"
	"github.com/born-ml/microexec/internal/status"
)

// BufferRequirements describes the planned buffers a method needs.
type BufferRequirements interface {
	NumMemoryPlannedBuffers() int
	MemoryPlannedBufferSize(id int) (int, error)
}

// Plan allocates every planned buffer of req from a, in id order, at the arena's default alignment.
//
// A failed size query is returned with its own code, tagged StageBufferSize. A failed
// allocation is MemoryAllocationFailed tagged StagePlanning. On failure no allocator is
// returned; bytes already taken from a stay consumed until the arena is reset.
func Plan(req BufferRequirements, a *arena.Arena, log klog.Logger) (*HierarchicalAllocator, error) {
	n := req.NumMemoryPlannedBuffers()
	buffers := make([][]byte, n)

	for id := 0; id < n; id++ {
		size, err := req.MemoryPlannedBufferSize(id)
		if err != nil {
			return nil, status.WithStage(err, status.StageBufferSize)
		}

		buf, err := a.Allocate(size, arena.DefaultAlignment)
		if err != nil {
			log.Error(err, "planned buffer allocation failed", "buffer", id, "size", size,
				"used", a.UsedSize(), "free", a.FreeSize())
			e := status.Errorf(status.MemoryAllocationFailed, "planned buffer %d (%d bytes): %w", id, size, err)
			return nil, status.WithStage(e, status.StagePlanning)
		}
		buffers[id] = buf

		log.V(1).Info("allocated planned buffer", "buffer", id, "size", size,
			"used", a.UsedSize(), "free", a.FreeSize())
	}

	return NewHierarchicalAllocator(buffers), nil
}
