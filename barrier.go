package gfxtrack

import "fmt"

// resolveUnit is the working state of one tracking unit during resolution.
// local means the state was produced by a command of the buffer being
// resolved, so the producer is known exactly and a barrier against it may
// take the fine-grained path.
type resolveUnit struct {
	state ImageState
	local bool
}

type resolveState struct {
	img   *Image
	units []resolveUnit
}

type unitKey struct {
	entry int
	unit  int
}

// transferEffect is an ownership-transfer side effect deferred to the fold
// step, past the point where resolution can still fail.
type transferEffect struct {
	header  *ResourceHeader
	desc    TransferDescriptor
	acquire bool
}

// resolution carries everything a successful resolve produced: the op
// stream for the backend and the state mutations to apply once the buffer
// is committed.
type resolution struct {
	ops    []BackendOp
	states map[int]*resolveState
	xfers  []transferEffect
}

func (r *resolution) stateFor(entry int, img *Image) *resolveState {
	if rs, ok := r.states[entry]; ok {
		return rs
	}
	rs := &resolveState{
		img:   img,
		units: make([]resolveUnit, len(img.last)),
	}
	for i, s := range img.last {
		rs.units[i] = resolveUnit{state: s}
	}
	r.states[entry] = rs
	return rs
}

// resolve walks the recorded passes in order and produces the backend op
// stream. It is a pure function of the recording and the resources' tracked
// states: no state is mutated until fold, so a failed resolve leaves
// everything as it was.
//
// Per pass the evaluation order is fixed: fence waits, then invalidates,
// then the remaining triggers in recording order, then discards, then fence
// signals.
func (cb *CommandBuffer) resolve() (*resolution, error) {
	r := &resolution{states: make(map[int]*resolveState)}

	for pi := range cb.passes {
		p := &cb.passes[pi]

		for _, w := range p.waits {
			rec := &cb.fences[w.idx]
			if !rec.updated || rec.updatedPass >= pi {
				return nil, contractErrorf("WaitFence",
					"fence is not updated by an earlier encoder in this command buffer")
			}
			r.ops = append(r.ops, BackendOp{
				Kind:      OpFenceWait,
				Fence:     rec.fence,
				SrcAccess: rec.updateAccess,
				DstAccess: w.access,
				Pass:      pi,
			})
		}

		for _, t := range p.triggers {
			if t.kind != trigInvalidate {
				continue
			}
			rs := r.stateFor(t.entry, t.img)
			for _, u := range addresserFor(t.img).indices(t.img, t.sub) {
				rs.units[u] = resolveUnit{state: StateUndefined, local: true}
			}
		}

		required := make(map[unitKey]ImageState)
		for _, t := range p.triggers {
			var err error
			switch t.kind {
			case trigUse, trigRender:
				err = r.resolveUse(pi, t, required)
			case trigCopy:
				err = r.resolveCopy(pi, t)
			case trigUseHeap:
				err = r.resolveUseHeap(cb, pi, t)
			case trigRelease:
				err = r.resolveRelease(pi, t)
			case trigAcquire:
				err = r.resolveAcquire(pi, t)
			}
			if err != nil {
				return nil, err
			}
		}

		for _, t := range p.triggers {
			if t.kind != trigDiscard {
				continue
			}
			rs := r.stateFor(t.entry, t.img)
			for _, u := range addresserFor(t.img).indices(t.img, t.sub) {
				rs.units[u] = resolveUnit{state: StateUndefined, local: true}
			}
		}

		for _, s := range p.signals {
			r.ops = append(r.ops, BackendOp{
				Kind:      OpFenceSignal,
				Fence:     cb.fences[s.idx].fence,
				SrcAccess: s.access,
				Pass:      pi,
			})
		}
	}
	return r, nil
}

func (r *resolution) transition(pi int, img *Image, sub ImageSubrange, from, to resolveUnit, t trigger, fine bool) error {
	srcLayout, err := LayoutFor(img.Usage, from.state)
	if err != nil {
		return &ResolveError{Resource: "image", Detail: err.Error()}
	}
	dstLayout, err := LayoutFor(img.Usage, to.state)
	if err != nil {
		return &ResolveError{Resource: "image", Detail: err.Error()}
	}
	r.ops = append(r.ops, BackendOp{
		Kind:      OpImageBarrier,
		Image:     img,
		Subrange:  sub,
		SrcState:  from.state,
		DstState:  to.state,
		SrcLayout: srcLayout,
		DstLayout: dstLayout,
		SrcAccess: accessForState(from.state),
		DstAccess: t.access,
		Pass:      pi,
		Fine:      fine,
	})
	return nil
}

// resolveUse handles encoder-scoped triggers. Two triggers demanding
// different states for the same unit within one encoder cannot both be
// honored, since the effect of each lasts for the whole encoder; that is a
// resolution failure reported to the caller.
func (r *resolution) resolveUse(pi int, t trigger, required map[unitKey]ImageState) error {
	rs := r.stateFor(t.entry, t.img)
	a := addresserFor(t.img)
	for _, u := range a.indices(t.img, t.sub) {
		if want, ok := required[unitKey{t.entry, u}]; ok {
			if want != t.state {
				return &ResolveError{
					Resource: "image",
					Detail: fmt.Sprintf("encoder requires both %s and %s for the same subresource",
						want, t.state),
				}
			}
			continue
		}
		required[unitKey{t.entry, u}] = t.state

		cur := rs.units[u]
		if cur.state != t.state && !transitionIsNoop(cur.state, t.state) {
			if err := r.transition(pi, t.img, a.unitSubrange(t.img, u), cur, resolveUnit{state: t.state}, t, false); err != nil {
				return err
			}
		}
		rs.units[u] = resolveUnit{state: t.state, local: true}
	}
	return nil
}

// resolveCopy handles ephemeral triggers. Their effect lasts only until the
// next command touching the image, so back-to-back copy writes need a
// memory barrier even though the state does not change. When the producer
// is a command of this same buffer and the image is not under a bulk heap,
// the barrier is marked fine-grained.
func (r *resolution) resolveCopy(pi int, t trigger) error {
	rs := r.stateFor(t.entry, t.img)
	a := addresserFor(t.img)
	fineOK := !t.img.inBulkHeap()
	for _, u := range a.indices(t.img, t.sub) {
		cur := rs.units[u]
		switch {
		case cur.state != t.state:
			if !transitionIsNoop(cur.state, t.state) {
				if err := r.transition(pi, t.img, a.unitSubrange(t.img, u), cur, resolveUnit{state: t.state}, t, cur.local && fineOK); err != nil {
					return err
				}
			}
		case t.state == StateCopyWrite:
			// write-after-write on the same subresource
			if err := r.transition(pi, t.img, a.unitSubrange(t.img, u), cur, cur, t, cur.local && fineOK); err != nil {
				return err
			}
		}
		rs.units[u] = resolveUnit{state: t.state, local: true}
	}
	return nil
}

// resolveUseHeap promotes the heap's current non-shader-read subset to
// ShaderRead. The subset never contains storage or render images, so the
// promotion is always legal, and the work is proportional to the subset
// size rather than to the heap.
func (r *resolution) resolveUseHeap(cb *CommandBuffer, pi int, t trigger) error {
	if !t.heap.bulk {
		return nil
	}
	for _, img := range t.heap.NonShaderReadSubset() {
		entry := cb.refs.insert(img)
		rs := r.stateFor(entry, img)
		a := addresserFor(img)
		for _, u := range a.allIndices() {
			cur := rs.units[u]
			if cur.state == StateShaderRead {
				continue
			}
			if !transitionIsNoop(cur.state, StateShaderRead) {
				tr := trigger{access: AccessShaderRead}
				if err := r.transition(pi, img, a.unitSubrange(img, u), cur, resolveUnit{state: StateShaderRead}, tr, false); err != nil {
					return err
				}
			}
			rs.units[u] = resolveUnit{state: StateShaderRead, local: true}
		}
	}
	return nil
}

func (r *resolution) resolveRelease(pi int, t trigger) error {
	op := BackendOp{
		Kind:       OpOwnershipRelease,
		SrcLayout:  t.desc.SrcLayout,
		DstLayout:  t.desc.DstLayout,
		SrcAccess:  t.access,
		OtherQueue: t.peer,
		Pass:       pi,
	}
	if t.img != nil {
		op.Image = t.img
		op.Subrange = t.sub
		rs := r.stateFor(t.entry, t.img)
		for _, u := range addresserFor(t.img).indices(t.img, t.sub) {
			rs.units[u] = resolveUnit{state: StateUndefined, local: true}
		}
	} else if b, ok := t.desc.Resource.(*Buffer); ok {
		op.Buffer = b
	}
	r.ops = append(r.ops, op)
	r.xfers = append(r.xfers, transferEffect{
		header: t.desc.Resource.header(),
		desc:   t.desc,
	})
	return nil
}

func (r *resolution) resolveAcquire(pi int, t trigger) error {
	h := t.desc.Resource.header()
	if err := h.validateTransfer(t.desc); err != nil {
		return err
	}
	op := BackendOp{
		Kind:       OpOwnershipAcquire,
		SrcLayout:  t.desc.SrcLayout,
		DstLayout:  t.desc.DstLayout,
		DstAccess:  t.access,
		OtherQueue: t.peer,
		Pass:       pi,
	}
	if t.img != nil {
		op.Image = t.img
		op.Subrange = t.sub
		rs := r.stateFor(t.entry, t.img)
		state := stateForLayout(t.desc.DstLayout)
		for _, u := range addresserFor(t.img).indices(t.img, t.sub) {
			rs.units[u] = resolveUnit{state: state, local: true}
		}
	} else if b, ok := t.desc.Resource.(*Buffer); ok {
		op.Buffer = b
	}
	r.ops = append(r.ops, op)
	r.xfers = append(r.xfers, transferEffect{
		header:  h,
		desc:    t.desc,
		acquire: true,
	})
	return nil
}

// fold commits a successful resolution: every touched image's tracked state
// becomes the state its units ended the buffer in, heap subset lists are
// updated, and ownership transfer descriptors are parked or consumed. The
// states recorded here describe the world as of this submission, which is
// exactly what the next submission's resolve will build on; retirement does
// not touch them.
func (r *resolution) fold() {
	for _, rs := range r.states {
		for i, u := range rs.units {
			rs.img.last[i] = u.state
		}
		if rs.img.heap != nil {
			rs.img.heap.noteState(rs.img)
		}
	}
	for _, x := range r.xfers {
		if x.acquire {
			x.header.takeTransfer()
		} else {
			x.header.parkTransfer(x.desc)
		}
	}
}
