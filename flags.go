package gfxtrack

import "fmt"

// AccessFlags describe the kinds of memory access a command performs on a
// resource. They scope the memory barriers the submission resolver emits:
// an update/wait pair on a fence carries one set at each site, and image
// barriers derive their source scope from the state being left behind.
type AccessFlags uint32

const (
	AccessCopyRead AccessFlags = 1 << iota
	AccessCopyWrite
	AccessVertexRead
	AccessVertexWrite
	AccessFragmentRead
	AccessFragmentWrite
	AccessComputeRead
	AccessComputeWrite
	AccessColorWrite
	AccessDSRead
	AccessDSWrite
)

// AccessShaderRead covers every shader-stage read access.
const AccessShaderRead = AccessVertexRead | AccessFragmentRead | AccessComputeRead

// AccessShaderWrite covers every shader-stage write access.
const AccessShaderWrite = AccessVertexWrite | AccessFragmentWrite | AccessComputeWrite

// writes reports whether any write access is included.
func (a AccessFlags) writes() bool {
	return a&(AccessCopyWrite|AccessShaderWrite|AccessColorWrite|AccessDSWrite) != 0
}

// ImageUsageFlags declare, at creation time, the operations an image will be
// used for. Mutable is a hint and not a correctness flag: its absence never
// precludes write access, it only lets the backend pick read-optimized
// layouts at the cost of more transitions.
type ImageUsageFlags uint16

const (
	UsageCopyRead ImageUsageFlags = 1 << iota
	UsageCopyWrite
	UsageSampled
	UsageStorage
	UsageRender
	UsageMutable
	UsageDepthStencil

	// UsageTrackPerMip and UsageTrackPerLayer enable fine-grained state
	// tracking: each mip level and/or array layer becomes its own tracking
	// unit and may be in a different state than its siblings. The cost is a
	// per-image bookkeeping multiplied by the unit count.
	UsageTrackPerMip
	UsageTrackPerLayer
)

// DefaultImageUsage is applied when an ImageDescriptor leaves Usage zero.
const DefaultImageUsage = UsageCopyWrite | UsageSampled

// ImageState is the tracked access state of an image (or of one of its
// tracking units when per-subresource tracking is enabled). Transitions are
// driven by the commands recorded into a command buffer, never by direct
// state-setting calls.
type ImageState uint8

const (
	StateUndefined ImageState = iota
	StateRender
	StateCopyRead
	StateCopyWrite
	StateShaderRead
	StateShaderReadWrite
)

func (s ImageState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateRender:
		return "Render"
	case StateCopyRead:
		return "CopyRead"
	case StateCopyWrite:
		return "CopyWrite"
	case StateShaderRead:
		return "ShaderRead"
	case StateShaderReadWrite:
		return "ShaderReadWrite"
	}
	return fmt.Sprintf("ImageState(%d)", uint8(s))
}

// ImageLayout is the abstract backend layout an image occupies in memory.
// The explicit-barrier backend maps these onto concrete native layouts; the
// implicit-hazard backend ignores them entirely.
type ImageLayout uint8

const (
	LayoutUndefined ImageLayout = iota
	LayoutGeneral
	LayoutRender
	LayoutShaderRead
	LayoutDepthStencilRead
	LayoutCopyRead
	LayoutCopyWrite
)

func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutGeneral:
		return "General"
	case LayoutRender:
		return "Render"
	case LayoutShaderRead:
		return "ShaderRead"
	case LayoutDepthStencilRead:
		return "DepthStencilRead"
	case LayoutCopyRead:
		return "CopyRead"
	case LayoutCopyWrite:
		return "CopyWrite"
	}
	return fmt.Sprintf("ImageLayout(%d)", uint8(l))
}

// LayoutFor computes the backend layout of an image with the given usage
// flags in the given state. It is a pure function: the same inputs always
// yield the same layout. The priority table is evaluated top to bottom and
// the first matching row wins:
//
//	Condition                | Copy          | ShaderRead       | ShaderReadWrite
//	DepthStencil and Mutable | General       | General          | General
//	DepthStencil             | copy-specific | DepthStencilRead | (unsupported)
//	Mutable                  | General       | General          | General
//	(default)                | copy-specific | ShaderRead       | General
//
// Render and Undefined states are not subject to the table.
func LayoutFor(usage ImageUsageFlags, state ImageState) (ImageLayout, error) {
	switch state {
	case StateUndefined:
		return LayoutUndefined, nil
	case StateRender:
		return LayoutRender, nil
	}

	ds := usage&UsageDepthStencil != 0
	mutable := usage&UsageMutable != 0

	copySpecific := func() ImageLayout {
		if state == StateCopyRead {
			return LayoutCopyRead
		}
		return LayoutCopyWrite
	}

	switch {
	case ds && mutable:
		return LayoutGeneral, nil
	case ds:
		switch state {
		case StateCopyRead, StateCopyWrite:
			return copySpecific(), nil
		case StateShaderRead:
			return LayoutDepthStencilRead, nil
		case StateShaderReadWrite:
			return LayoutUndefined, fmt.Errorf(
				"depth/stencil image without the mutable usage flag does not support shader read-write access")
		}
	case mutable:
		return LayoutGeneral, nil
	}

	switch state {
	case StateCopyRead, StateCopyWrite:
		return copySpecific(), nil
	case StateShaderRead:
		return LayoutShaderRead, nil
	}
	return LayoutGeneral, nil
}

// transitionIsNoop reports whether a state transition requires no barrier.
// Leaving Undefined for a read-only state never has data to preserve, so the
// backend can simply start using the image.
func transitionIsNoop(from, to ImageState) bool {
	return from == StateUndefined && (to == StateShaderRead || to == StateCopyRead)
}

// accessForState is the access scope implied by leaving a state behind; it
// becomes the source scope of the barrier emitted for the transition.
func accessForState(s ImageState) AccessFlags {
	switch s {
	case StateRender:
		return AccessColorWrite | AccessDSWrite
	case StateCopyRead:
		return AccessCopyRead
	case StateCopyWrite:
		return AccessCopyWrite
	case StateShaderRead:
		return AccessShaderRead
	case StateShaderReadWrite:
		return AccessShaderRead | AccessShaderWrite
	}
	return 0
}

// stateForShaderAccess picks the tracked state a use-resources declaration
// moves an image into.
func stateForShaderAccess(access AccessFlags) ImageState {
	if access.writes() {
		return StateShaderReadWrite
	}
	return StateShaderRead
}

// stateForLayout is the inverse bookkeeping mapping used by the queue
// ownership transfer protocol, which speaks in layouts.
func stateForLayout(l ImageLayout) ImageState {
	switch l {
	case LayoutRender:
		return StateRender
	case LayoutShaderRead, LayoutDepthStencilRead:
		return StateShaderRead
	case LayoutCopyRead:
		return StateCopyRead
	case LayoutCopyWrite:
		return StateCopyWrite
	case LayoutGeneral:
		return StateShaderReadWrite
	}
	return StateUndefined
}
