package gfxtrack

import (
	"sync"
	"sync/atomic"
)

type resourceKind uint8

const (
	kindImage resourceKind = iota
	kindBuffer
	kindHeap
	kindArgumentPool
)

func (k resourceKind) String() string {
	switch k {
	case kindImage:
		return "image"
	case kindBuffer:
		return "buffer"
	case kindHeap:
		return "heap"
	case kindArgumentPool:
		return "argument pool"
	}
	return "resource"
}

// slotNone marks an empty reference-table slot.
const slotNone = int32(-1)

// ResourceHeader is the per-object state block shared by every trackable
// object. The reference count is the only field requiring atomic access: a
// release may come from whichever queue drops the last reference or proxy.
// Everything else is partitioned per owning queue and is only touched while
// that queue's recording or submission path holds the object.
type ResourceHeader struct {
	kind  resourceKind
	queue *Queue

	// refs is shared with every proxy of the object; proxies forward their
	// count to the primary header.
	refs    int32
	primary *ResourceHeader // nil on the primary itself
	destroy func()          // invoked once the shared count reaches zero

	// slots[i] is the index of this object's entry in the reference table of
	// the owning queue's command buffer slot i, or slotNone. Each element is
	// mutated only through the exclusive handle of that command buffer, so
	// no atomics are needed here.
	slots []int32

	// Cross-queue ownership transfer bookkeeping. Release runs on the source
	// queue and acquire on the destination queue, so unlike the rest of the
	// header this small block needs a lock. It is only touched on the cold
	// transfer path.
	xfer     sync.Mutex
	proxies  map[uint64]Trackable // keyed by queue id, primary only
	pending  *TransferDescriptor  // parked by a resolved release
	released bool
}

func (h *ResourceHeader) init(kind resourceKind, q *Queue) {
	h.kind = kind
	h.queue = q
	h.refs = 1
	h.slots = make([]int32, q.cfg.MaxActiveCmdBuffers)
	for i := range h.slots {
		h.slots[i] = slotNone
	}
}

// Queue returns the queue the object was created against. The owning queue
// is fixed for the object's lifetime; use a proxy to record against another
// queue.
func (h *ResourceHeader) Queue() *Queue { return h.queue }

func (h *ResourceHeader) shared() *ResourceHeader {
	if h.primary != nil {
		return h.primary
	}
	return h
}

// Retain increments the shared reference count.
func (h *ResourceHeader) Retain() {
	atomic.AddInt32(&h.shared().refs, 1)
}

// Release decrements the shared reference count and destroys the backing
// object when it reaches zero. Destroying a proxy never destroys the
// original: the proxy only forwards its share of the count.
func (h *ResourceHeader) Release() {
	s := h.shared()
	if atomic.AddInt32(&s.refs, -1) == 0 && s.destroy != nil {
		s.destroy()
	}
}

// registerProxy records a proxy header for the given queue on the primary.
// At most one proxy may exist per (object, queue) pair.
func (h *ResourceHeader) registerProxy(p Trackable, q *Queue) error {
	s := h.shared()
	s.xfer.Lock()
	defer s.xfer.Unlock()
	if q == s.queue {
		return contractErrorf("CreateProxy", "queue already owns this %s", s.kind)
	}
	if s.proxies == nil {
		s.proxies = make(map[uint64]Trackable)
	}
	if _, ok := s.proxies[q.id]; ok {
		return contractErrorf("CreateProxy", "a proxy for this %s already exists on the target queue", s.kind)
	}
	s.proxies[q.id] = p
	p.header().primary = s
	atomic.AddInt32(&s.refs, 1)
	return nil
}

// proxyFor returns the proxy registered for q, or nil.
func (h *ResourceHeader) proxyFor(q *Queue) Trackable {
	s := h.shared()
	s.xfer.Lock()
	defer s.xfer.Unlock()
	return s.proxies[q.id]
}

// parkTransfer records a resolved ownership release so the matching acquire
// can validate its descriptor against it.
func (h *ResourceHeader) parkTransfer(d TransferDescriptor) {
	s := h.shared()
	s.xfer.Lock()
	s.pending = &d
	s.released = true
	s.xfer.Unlock()
}

// isReleased reports whether a release has been submitted without a matching
// acquire yet.
func (h *ResourceHeader) isReleased() bool {
	s := h.shared()
	s.xfer.Lock()
	defer s.xfer.Unlock()
	return s.released
}

// validateTransfer checks a resolving acquire against the parked release
// descriptor without consuming it. The two must match field for field.
func (h *ResourceHeader) validateTransfer(d TransferDescriptor) error {
	s := h.shared()
	s.xfer.Lock()
	defer s.xfer.Unlock()
	if s.pending == nil {
		return contractErrorf("AcquireOwnership",
			"no matching release has been submitted for this %s", s.kind)
	}
	if *s.pending != d {
		return contractErrorf("AcquireOwnership",
			"transfer descriptor does not match the one passed to ReleaseOwnership")
	}
	return nil
}

// takeTransfer consumes the parked release descriptor once the acquiring
// command buffer is past the point of failure.
func (h *ResourceHeader) takeTransfer() {
	s := h.shared()
	s.xfer.Lock()
	s.pending = nil
	s.released = false
	s.xfer.Unlock()
}

// Trackable is implemented by every object the state tracker can retain in
// a reference table: images, buffers, heaps and argument pools.
type Trackable interface {
	header() *ResourceHeader
}

// TransferDescriptor describes one queue ownership transfer. The value
// passed to ReleaseOwnership on the source queue and to AcquireOwnership on
// the destination queue must be identical field for field; a mismatch is a
// contract violation reported at submission.
type TransferDescriptor struct {
	Resource  Trackable
	SrcLayout ImageLayout
	DstLayout ImageLayout
	Subrange  ImageSubrange
}
