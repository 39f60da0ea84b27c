package gfxtrack

import (
	vk "github.com/vulkan-go/vulkan"
)

type cbState uint8

const (
	cbRecording cbState = iota
	cbSubmitted
	cbExecuting
	cbRetired
)

type encoderKind uint8

const (
	encNone encoderKind = iota
	encRender
	encCompute
	encCopy
	encTransfer // implicit encoder opened for ownership transfer commands
)

type triggerKind uint8

const (
	trigUse triggerKind = iota
	trigRender
	trigCopy
	trigUseHeap
	trigInvalidate
	trigDiscard
	trigRelease
	trigAcquire
)

// trigger is one recorded state-machine input. Encoder-scoped triggers
// (use/render) keep their effect until the encoder ends; copy triggers are
// ephemeral and only persist until the next command touching the image.
type trigger struct {
	kind   triggerKind
	entry  int
	img    *Image
	heap   *Heap
	sub    ImageSubrange
	state  ImageState
	access AccessFlags
	desc   TransferDescriptor
	peer   *Queue
}

// pass is one encoder's worth of recorded tracking inputs.
type pass struct {
	triggers []trigger
	waits    []fenceScope
	signals  []fenceScope
}

// CommandBuffer records tracking inputs against an exclusively held handle.
// Recording is synchronous and never blocks; everything expensive is
// deferred to submission. A buffer lives from the start of recording to
// retirement, at which point its reference table is released.
type CommandBuffer struct {
	queue *Queue
	index int
	state cbState

	refs   refTable
	passes []pass
	fences []fenceRecord
	enc    encoderKind

	onComplete func(error)

	// VKCommandBuffer is the native handle the explicit-barrier backend
	// records into. Zero when that backend is not in use.
	VKCommandBuffer vk.CommandBuffer
}

// Queue returns the queue this buffer records against.
func (cb *CommandBuffer) Queue() *Queue { return cb.queue }

// OnComplete installs the completion callback, invoked exactly once after
// the buffer retires with the buffer's result: nil on success or a fatal
// device-level error. It is never invoked on the recording goroutine.
func (cb *CommandBuffer) OnComplete(fn func(error)) {
	cb.onComplete = fn
}

// VK returns the native command buffer handle.
func (cb *CommandBuffer) VK() vk.CommandBuffer {
	return cb.VKCommandBuffer
}

func (cb *CommandBuffer) recordable(op string) error {
	if cb.state != cbRecording {
		return contractErrorf(op, "command buffer is not recording")
	}
	return nil
}

// insertTracked adds res to the reference table, enforcing that the handle
// belongs to this buffer's queue. Using a handle from a non-owning queue
// without a proxy is a contract violation.
func (cb *CommandBuffer) insertTracked(op string, res Trackable) (int, error) {
	h := res.header()
	if h.queue != cb.queue {
		return 0, contractErrorf(op,
			"%s belongs to another queue, create a proxy to use it here", h.kind)
	}
	if cb.queue.cfg.StrictValidation && cb.refs.contains(res) {
		// a stale slot index left by a buffer sharing this slot would alias
		// someone else's entry; catch it before insert trusts the slot
		if i := int(h.slots[cb.refs.cbIndex]); i >= cb.refs.len() || cb.refs.entries[i] != res {
			return 0, contractErrorf(op,
				"%s slot entry disagrees with the reference table, the handle was used on two buffers sharing a slot", h.kind)
		}
	}
	return cb.refs.insert(res), nil
}

func (cb *CommandBuffer) beginPass(enc encoderKind) {
	cb.endPass()
	cb.passes = append(cb.passes, pass{})
	cb.enc = enc
}

func (cb *CommandBuffer) endPass() {
	cb.enc = encNone
}

func (cb *CommandBuffer) cur() *pass {
	return &cb.passes[len(cb.passes)-1]
}

// BeginRenderEncoder starts a render encoder. Every attachment is moved to
// the Render state for the duration of the encoder.
func (cb *CommandBuffer) BeginRenderEncoder(targets ...*Image) error {
	if err := cb.recordable("BeginRenderEncoder"); err != nil {
		return err
	}
	cb.beginPass(encRender)
	for _, img := range targets {
		if img.Usage&UsageRender == 0 {
			return contractErrorf("BeginRenderEncoder", "image was not created with the render usage flag")
		}
		entry, err := cb.insertTracked("BeginRenderEncoder", img)
		if err != nil {
			return err
		}
		access := AccessColorWrite
		if img.Usage&UsageDepthStencil != 0 {
			access = AccessDSRead | AccessDSWrite
		}
		cb.cur().triggers = append(cb.cur().triggers, trigger{
			kind:   trigRender,
			entry:  entry,
			img:    img,
			sub:    img.wholeSubrange(),
			state:  StateRender,
			access: access,
		})
	}
	return nil
}

// BeginComputeEncoder starts a compute encoder.
func (cb *CommandBuffer) BeginComputeEncoder() error {
	if err := cb.recordable("BeginComputeEncoder"); err != nil {
		return err
	}
	cb.beginPass(encCompute)
	return nil
}

// BeginCopyEncoder starts a copy encoder.
func (cb *CommandBuffer) BeginCopyEncoder() error {
	if err := cb.recordable("BeginCopyEncoder"); err != nil {
		return err
	}
	cb.beginPass(encCopy)
	return nil
}

// EndEncoder ends the open encoder. Discard operations recorded inside it
// take effect at this point, after everything else in the encoder.
func (cb *CommandBuffer) EndEncoder() error {
	if err := cb.recordable("EndEncoder"); err != nil {
		return err
	}
	if cb.enc == encNone {
		return contractErrorf("EndEncoder", "no encoder is open")
	}
	cb.endPass()
	return nil
}

// UseResources declares that the encoder's commands access the given
// resources from shaders with the given access. Images move to ShaderRead
// or ShaderReadWrite depending on whether the access includes writes; the
// effect persists until the encoder ends. Valid inside render and compute
// encoders.
func (cb *CommandBuffer) UseResources(access AccessFlags, resources ...Trackable) error {
	if err := cb.recordable("UseResources"); err != nil {
		return err
	}
	if cb.enc != encRender && cb.enc != encCompute {
		return contractErrorf("UseResources", "requires an open render or compute encoder")
	}
	state := stateForShaderAccess(access)
	for _, res := range resources {
		entry, err := cb.insertTracked("UseResources", res)
		if err != nil {
			return err
		}
		img, ok := res.(*Image)
		if !ok {
			continue // buffers and argument pools are retention-only
		}
		cb.cur().triggers = append(cb.cur().triggers, trigger{
			kind:   trigUse,
			entry:  entry,
			img:    img,
			sub:    img.wholeSubrange(),
			state:  state,
			access: access,
		})
	}
	return nil
}

// UseHeap makes every image in the heap's non-shader-read subset
// shader-readable. Images with the storage or render usage flag are
// unaffected; heaps created without bulk transition are a no-op. The subset
// is the one current at submission resolution, so the cost is proportional
// to the images actually transitioning, not to the heap size.
func (cb *CommandBuffer) UseHeap(h *Heap) error {
	if err := cb.recordable("UseHeap"); err != nil {
		return err
	}
	if cb.enc != encRender && cb.enc != encCompute {
		return contractErrorf("UseHeap", "requires an open render or compute encoder")
	}
	entry, err := cb.insertTracked("UseHeap", h)
	if err != nil {
		return err
	}
	cb.cur().triggers = append(cb.cur().triggers, trigger{
		kind:  trigUseHeap,
		entry: entry,
		heap:  h,
	})
	return nil
}

// UseArgumentPool retains an argument pool until the buffer retires.
func (cb *CommandBuffer) UseArgumentPool(p *ArgumentPool) error {
	if err := cb.recordable("UseArgumentPool"); err != nil {
		return err
	}
	_, err := cb.insertTracked("UseArgumentPool", p)
	return err
}

func (cb *CommandBuffer) copyPrecheck(op string, resources ...Trackable) error {
	if err := cb.recordable(op); err != nil {
		return err
	}
	if cb.enc != encCopy {
		return contractErrorf(op, "requires an open copy encoder")
	}
	for _, res := range resources {
		if res.header().queue != cb.queue {
			return contractErrorf(op,
				"%s belongs to another queue, create a proxy to use it here", res.header().kind)
		}
	}
	return nil
}

// copyTrigger appends one ephemeral copy trigger. sub must already be
// validated and expanded through checkSubrange.
func (cb *CommandBuffer) copyTrigger(img *Image, sub ImageSubrange, state ImageState, access AccessFlags) {
	entry := cb.refs.insert(img)
	cb.cur().triggers = append(cb.cur().triggers, trigger{
		kind:   trigCopy,
		entry:  entry,
		img:    img,
		sub:    sub,
		state:  state,
		access: access,
	})
}

// CopyBufferToImage tracks a copy from a buffer into an image subrange. The
// image moves to CopyWrite; the effect is ephemeral and lasts only until the
// next command touching it.
func (cb *CommandBuffer) CopyBufferToImage(src *Buffer, dst *Image, sub ImageSubrange) error {
	if err := cb.copyPrecheck("CopyBufferToImage", src, dst); err != nil {
		return err
	}
	sub, err := dst.checkSubrange("CopyBufferToImage", sub)
	if err != nil {
		return err
	}
	cb.refs.insert(src)
	cb.copyTrigger(dst, sub, StateCopyWrite, AccessCopyWrite)
	return nil
}

// CopyImageToBuffer tracks a copy from an image subrange into a buffer.
func (cb *CommandBuffer) CopyImageToBuffer(src *Image, sub ImageSubrange, dst *Buffer) error {
	if err := cb.copyPrecheck("CopyImageToBuffer", src, dst); err != nil {
		return err
	}
	sub, err := src.checkSubrange("CopyImageToBuffer", sub)
	if err != nil {
		return err
	}
	cb.refs.insert(dst)
	cb.copyTrigger(src, sub, StateCopyRead, AccessCopyRead)
	return nil
}

// CopyImage tracks an image-to-image copy.
func (cb *CommandBuffer) CopyImage(src *Image, srcSub ImageSubrange, dst *Image, dstSub ImageSubrange) error {
	if err := cb.copyPrecheck("CopyImage", src, dst); err != nil {
		return err
	}
	srcSub, err := src.checkSubrange("CopyImage", srcSub)
	if err != nil {
		return err
	}
	dstSub, err = dst.checkSubrange("CopyImage", dstSub)
	if err != nil {
		return err
	}
	cb.copyTrigger(src, srcSub, StateCopyRead, AccessCopyRead)
	cb.copyTrigger(dst, dstSub, StateCopyWrite, AccessCopyWrite)
	return nil
}

// CopyBuffer tracks a buffer-to-buffer copy; retention only.
func (cb *CommandBuffer) CopyBuffer(src, dst *Buffer) error {
	if err := cb.copyPrecheck("CopyBuffer", src, dst); err != nil {
		return err
	}
	cb.refs.insert(src)
	cb.refs.insert(dst)
	return nil
}

// Invalidate declares that the current contents of the subrange are dead.
// The source of the image's next transition is forced to Undefined no matter
// what the tracked state was; within its encoder, invalidates resolve before
// every use or copy trigger.
func (cb *CommandBuffer) Invalidate(img *Image, sub ImageSubrange) error {
	if err := cb.recordable("Invalidate"); err != nil {
		return err
	}
	if cb.enc == encNone {
		return contractErrorf("Invalidate", "requires an open encoder")
	}
	sub, err := img.checkSubrange("Invalidate", sub)
	if err != nil {
		return err
	}
	entry, err := cb.insertTracked("Invalidate", img)
	if err != nil {
		return err
	}
	cb.cur().triggers = append(cb.cur().triggers, trigger{
		kind:  trigInvalidate,
		entry: entry,
		img:   img,
		sub:   sub,
	})
	return nil
}

// Discard marks the subrange's contents as don't-care once the encoder
// ends. It is evaluated after every other operation in the encoder, so a
// use recorded later in the same encoder still sees the preserved contents.
func (cb *CommandBuffer) Discard(img *Image, sub ImageSubrange) error {
	if err := cb.recordable("Discard"); err != nil {
		return err
	}
	if cb.enc == encNone {
		return contractErrorf("Discard", "requires an open encoder")
	}
	sub, err := img.checkSubrange("Discard", sub)
	if err != nil {
		return err
	}
	entry, err := cb.insertTracked("Discard", img)
	if err != nil {
		return err
	}
	cb.cur().triggers = append(cb.cur().triggers, trigger{
		kind:  trigDiscard,
		entry: entry,
		img:   img,
		sub:   sub,
	})
	return nil
}

func (cb *CommandBuffer) fenceIndex(f *Fence) int {
	for i := range cb.fences {
		if cb.fences[i].fence == f {
			return i
		}
	}
	cb.fences = append(cb.fences, fenceRecord{fence: f})
	return len(cb.fences) - 1
}

// UpdateFence marks the fence as updated by the commands recorded so far,
// with srcAccess scoping the producer side of the barrier the fence expands
// to. A fence may be updated at most once per recording.
func (cb *CommandBuffer) UpdateFence(f *Fence, srcAccess AccessFlags) error {
	if err := cb.recordable("UpdateFence"); err != nil {
		return err
	}
	if f.queue != cb.queue {
		return contractErrorf("UpdateFence", "fence belongs to another queue")
	}
	if cb.enc == encNone {
		return contractErrorf("UpdateFence", "requires an open encoder")
	}
	i := cb.fenceIndex(f)
	rec := &cb.fences[i]
	if rec.updated {
		return contractErrorf("UpdateFence", "fence is already updated in this recording")
	}
	rec.updated = true
	rec.updatedPass = len(cb.passes) - 1
	rec.updateAccess = srcAccess
	cb.cur().signals = append(cb.cur().signals, fenceScope{idx: i, access: srcAccess})
	return nil
}

// WaitFence orders the encoder's commands after the fence's producer, with
// dstAccess scoping the consumer side of the expanded barrier. The producer
// must be an earlier encoder of the same command buffer; fences are never
// interpreted across command buffers.
func (cb *CommandBuffer) WaitFence(f *Fence, dstAccess AccessFlags) error {
	if err := cb.recordable("WaitFence"); err != nil {
		return err
	}
	if f.queue != cb.queue {
		return contractErrorf("WaitFence", "fence belongs to another queue")
	}
	if cb.enc == encNone {
		return contractErrorf("WaitFence", "requires an open encoder")
	}
	i := cb.fenceIndex(f)
	if cb.queue.cfg.StrictValidation {
		rec := &cb.fences[i]
		if !rec.updated || rec.updatedPass >= len(cb.passes)-1 {
			return contractErrorf("WaitFence", "fence is not updated by an earlier encoder in this command buffer")
		}
	}
	cb.cur().waits = append(cb.cur().waits, fenceScope{idx: i, access: dstAccess})
	return nil
}

// ReleaseOwnership records the source half of a queue ownership transfer.
// The matching AcquireOwnership on dst must be passed a field-for-field
// identical descriptor. After this buffer is resolved, the resource's state
// on this queue becomes Undefined.
func (cb *CommandBuffer) ReleaseOwnership(desc TransferDescriptor, srcAccess AccessFlags, dst *Queue) error {
	if err := cb.recordable("ReleaseOwnership"); err != nil {
		return err
	}
	local, err := cb.localHandle("ReleaseOwnership", desc.Resource)
	if err != nil {
		return err
	}
	if cb.queue.cfg.StrictValidation && desc.Resource.header().shared().isReleased() {
		return contractErrorf("ReleaseOwnership", "%s is already released and not yet acquired", local.header().kind)
	}
	var (
		img *Image
		sub ImageSubrange
	)
	if i, ok := local.(*Image); ok {
		img = i
		if sub, err = i.checkSubrange("ReleaseOwnership", desc.Subrange); err != nil {
			return err
		}
	}
	entry, err := cb.insertTracked("ReleaseOwnership", local)
	if err != nil {
		return err
	}
	if cb.enc == encNone || cb.enc == encRender {
		cb.beginPass(encTransfer)
	}
	t := trigger{
		kind:   trigRelease,
		entry:  entry,
		img:    img,
		sub:    sub,
		desc:   desc,
		access: srcAccess,
		peer:   dst,
	}
	cb.cur().triggers = append(cb.cur().triggers, t)
	return nil
}

// AcquireOwnership records the destination half of a queue ownership
// transfer. The resource must not be accessed on this queue until the
// release's command buffer has completed (guaranteed externally through a
// completion signal, not a fence) and this acquire has been recorded.
// A descriptor that does not match the released one is a contract violation
// reported at submission.
func (cb *CommandBuffer) AcquireOwnership(desc TransferDescriptor, dstAccess AccessFlags, src *Queue) error {
	if err := cb.recordable("AcquireOwnership"); err != nil {
		return err
	}
	local, err := cb.localHandle("AcquireOwnership", desc.Resource)
	if err != nil {
		return err
	}
	var (
		img *Image
		sub ImageSubrange
	)
	if i, ok := local.(*Image); ok {
		img = i
		if sub, err = i.checkSubrange("AcquireOwnership", desc.Subrange); err != nil {
			return err
		}
	}
	entry, err := cb.insertTracked("AcquireOwnership", local)
	if err != nil {
		return err
	}
	if cb.enc == encNone || cb.enc == encRender {
		cb.beginPass(encTransfer)
	}
	t := trigger{
		kind:   trigAcquire,
		entry:  entry,
		img:    img,
		sub:    sub,
		desc:   desc,
		access: dstAccess,
		peer:   src,
	}
	cb.cur().triggers = append(cb.cur().triggers, t)
	return nil
}

// Abandon discards a recording without submitting it: the retained
// references are dropped and the pool slot is returned. Submit abandons the
// whole batch when resolution fails, since a faulty recording cannot be
// repaired in place and would otherwise hold its slot until the pool is
// exhausted. The completion callback is not invoked. Abandoning a buffer
// that is not recording does nothing.
func (cb *CommandBuffer) Abandon() {
	if cb.state != cbRecording {
		return
	}
	cb.refs.release()
	cb.state = cbRetired
	cb.reset()
	q := cb.queue
	q.mu.Lock()
	q.busy[cb.index] = false
	q.mu.Unlock()
}

// localHandle maps a canonical resource to the handle valid on this buffer's
// queue: the resource itself when this queue owns it, otherwise the proxy
// registered for this queue.
func (cb *CommandBuffer) localHandle(op string, res Trackable) (Trackable, error) {
	h := res.header()
	if h.queue == cb.queue {
		return res, nil
	}
	if p := h.proxyFor(cb.queue); p != nil {
		return p, nil
	}
	return nil, contractErrorf(op, "%s has no proxy on this queue", h.kind)
}

// reset returns the buffer to a blank recording-ready shell. Called when
// the pool slot is reused.
func (cb *CommandBuffer) reset() {
	cb.passes = cb.passes[:0]
	cb.fences = cb.fences[:0]
	cb.enc = encNone
	cb.onComplete = nil
}
