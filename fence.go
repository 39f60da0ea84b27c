package gfxtrack

import (
	vk "github.com/vulkan-go/vulkan"
)

// Fence is a lightweight intra-queue ordering token, not a cross-device
// completion signal. A producer marks it with UpdateFence and a consumer
// with WaitFence, each carrying access-type flags that scope the memory
// barrier the pair expands to at submission.
//
// Fences order work within a single command buffer only. They must not be
// used to express ordering between command buffers (submission order already
// does that on one queue) or between queues (use the ownership transfer
// protocol plus an external completion signal).
//
// On the explicit-barrier backend a fence is realized as a native event;
// the implicit-hazard backend maps it onto the driver's own fence objects.
type Fence struct {
	queue *Queue

	// VKEvent is the native event consumed by the explicit-barrier backend.
	// Zero when that backend is not in use.
	VKEvent vk.Event
}

// CreateFence creates a fence usable on this queue only.
func (q *Queue) CreateFence() (*Fence, error) {
	return &Fence{queue: q}, nil
}

// Queue returns the queue the fence was created against.
func (f *Fence) Queue() *Queue { return f.queue }

// fenceRecord is the per-recording state of a fence inside one command
// buffer. A fence may be updated at most once per recording.
type fenceRecord struct {
	fence        *Fence
	updated      bool
	updatedPass  int
	updateAccess AccessFlags
}

// fenceScope is one update or wait site with its access scope.
type fenceScope struct {
	idx    int // index into CommandBuffer.fences
	access AccessFlags
}
