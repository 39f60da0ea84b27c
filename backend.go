package gfxtrack

// OpKind identifies one entry of the resolved synchronization stream.
type OpKind uint8

const (
	// OpImageBarrier transitions an image subrange between two tracked
	// states. SrcState == DstState is a pure memory barrier with no layout
	// change.
	OpImageBarrier OpKind = iota
	// OpFenceWait orders the pass after the fence's producer.
	OpFenceWait
	// OpFenceSignal marks the fence updated by the commands so far.
	OpFenceSignal
	// OpOwnershipRelease is the source half of a queue ownership transfer.
	OpOwnershipRelease
	// OpOwnershipAcquire is the destination half of a queue ownership
	// transfer.
	OpOwnershipAcquire
)

func (k OpKind) String() string {
	switch k {
	case OpImageBarrier:
		return "image barrier"
	case OpFenceWait:
		return "fence wait"
	case OpFenceSignal:
		return "fence signal"
	case OpOwnershipRelease:
		return "ownership release"
	case OpOwnershipAcquire:
		return "ownership acquire"
	}
	return "op"
}

// BackendOp is one resolved synchronization action. The resolver emits a
// flat stream of these at submission; the backend translates them into
// whatever the native API needs, which may be nothing at all for an API
// that tracks hazards itself.
type BackendOp struct {
	Kind OpKind

	Image    *Image
	Buffer   *Buffer
	Subrange ImageSubrange

	SrcState ImageState
	DstState ImageState

	SrcLayout ImageLayout
	DstLayout ImageLayout

	SrcAccess AccessFlags
	DstAccess AccessFlags

	Fence      *Fence
	OtherQueue *Queue

	// Pass is the index of the encoder the op belongs to.
	Pass int

	// Fine marks a barrier whose producer is known exactly within this
	// command buffer; the backend may scope it to the producing commands
	// instead of the whole submission up to this point.
	Fine bool
}

// Backend translates the resolved op stream into native commands. Record is
// called on the submitting goroutine, after resolution succeeds and before
// the buffer is handed to the Submitter.
type Backend interface {
	Record(cb *CommandBuffer, ops []BackendOp) error
}

// Submitter hands resolved command buffers to the native queue and reports
// per-buffer completion. Submit is called with buffers in submission order;
// done must be invoked exactly once per buffer, in the same order, with nil
// or a fatal device-level error. done may be invoked from any goroutine.
//
// A nil Submitter on the queue completes every buffer synchronously inside
// Submit, which is the normal configuration when the native submission path
// lives outside this subsystem.
type Submitter interface {
	Submit(cbs []*CommandBuffer, done func(cb *CommandBuffer, err error)) error
}

// HazardDevice is the narrow surface the automatic-hazard backend needs
// from a native API that tracks resource hazards itself, such as Metal.
// Only fence semantics cross the boundary; layout and cache management
// never do.
type HazardDevice interface {
	SignalFence(cb *CommandBuffer, f *Fence, srcAccess AccessFlags) error
	WaitFence(cb *CommandBuffer, f *Fence, dstAccess AccessFlags) error
}

// AutoHazardBackend targets APIs with driver-side hazard tracking. Image
// barriers and ownership transfers dissolve into nothing; fences survive
// because they carry scheduling intent the driver cannot infer.
type AutoHazardBackend struct {
	Device HazardDevice
}

func (b *AutoHazardBackend) Record(cb *CommandBuffer, ops []BackendOp) error {
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpFenceSignal:
			if err := b.Device.SignalFence(cb, op.Fence, op.SrcAccess); err != nil {
				return err
			}
		case OpFenceWait:
			if err := b.Device.WaitFence(cb, op.Fence, op.DstAccess); err != nil {
				return err
			}
		}
	}
	return nil
}
