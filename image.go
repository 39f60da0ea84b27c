package gfxtrack

import (
	vk "github.com/vulkan-go/vulkan"
)

// ImageSubrange selects a rectangle of mip levels and array layers. Zero
// counts mean "all remaining from the base".
type ImageSubrange struct {
	BaseMip   uint32
	NumMips   uint32
	BaseLayer uint32
	NumLayers uint32
}

// ImageDescriptor describes an image to create. The native backing object is
// produced by an external factory (memory placement is not this subsystem's
// concern); pass its handle in VKImage when targeting the explicit-barrier
// backend, or leave it zero otherwise.
type ImageDescriptor struct {
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	Usage       ImageUsageFlags
	VKImage     vk.Image
}

// Image is a trackable texture. An image view is not a distinct entity: a
// view is another Image header aliasing a subrange of the same backing
// memory, with its own independent state tracking.
type Image struct {
	ResourceHeader

	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	Usage       ImageUsageFlags
	VKImage     vk.Image

	// Base is non-nil for views and points at the aliased image. Sub is the
	// aliased subrange in the base image's coordinates.
	Base *Image
	Sub  ImageSubrange

	// heap membership, -1 when the image is not heap-placed
	heap      *Heap
	heapIndex int
	subsetPos int

	// last known state per tracking unit, valid with respect to the owning
	// queue's submissions only
	last []ImageState
}

func (i *Image) header() *ResourceHeader { return &i.ResourceHeader }

func (i *Image) String() string {
	return "image"
}

// CreateImage creates the tracking object for an image owned by this queue.
// All tracking units start in the Undefined state.
func (q *Queue) CreateImage(desc ImageDescriptor) (*Image, error) {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.ArrayLayers == 0 {
		desc.ArrayLayers = 1
	}
	if desc.Depth == 0 {
		desc.Depth = 1
	}
	if desc.Usage == 0 {
		desc.Usage = DefaultImageUsage
	}

	img := &Image{
		Width:       desc.Width,
		Height:      desc.Height,
		Depth:       desc.Depth,
		MipLevels:   desc.MipLevels,
		ArrayLayers: desc.ArrayLayers,
		Usage:       desc.Usage,
		VKImage:     desc.VKImage,
		heapIndex:   -1,
		subsetPos:   -1,
	}
	img.init(kindImage, q)
	img.last = make([]ImageState, addresserFor(img).unitCount())
	return img, nil
}

// CreateView creates a second Image header aliasing a subrange of i, with
// independent state tracking. The view keeps the backing image alive. Usage
// flags are inherited.
func (i *Image) CreateView(sub ImageSubrange) (*Image, error) {
	sub, err := i.checkSubrange("CreateView", sub)
	if err != nil {
		return nil, err
	}

	v := &Image{
		Width:       i.Width >> sub.BaseMip,
		Height:      i.Height >> sub.BaseMip,
		Depth:       i.Depth,
		MipLevels:   sub.NumMips,
		ArrayLayers: sub.NumLayers,
		Usage:       i.Usage,
		VKImage:     i.VKImage,
		Base:        i,
		Sub:         sub,
		heapIndex:   -1,
		subsetPos:   -1,
	}
	if v.Width == 0 {
		v.Width = 1
	}
	if v.Height == 0 {
		v.Height = 1
	}
	v.init(kindImage, i.queue)
	v.last = make([]ImageState, addresserFor(v).unitCount())
	i.Retain()
	v.destroy = func() { i.Release() }
	return v, nil
}

// resolveSubrange expands zero counts to the full remaining extent.
func (i *Image) resolveSubrange(sub ImageSubrange) ImageSubrange {
	if sub.NumMips == 0 {
		sub.NumMips = i.MipLevels - sub.BaseMip
	}
	if sub.NumLayers == 0 {
		sub.NumLayers = i.ArrayLayers - sub.BaseLayer
	}
	return sub
}

// checkSubrange validates that sub lies within the image's extents and
// expands zero counts. The base must be checked before expansion: a zero
// count with an out-of-range base would wrap around to land exactly on the
// extent and slip through the combined check.
func (i *Image) checkSubrange(op string, sub ImageSubrange) (ImageSubrange, error) {
	if sub.BaseMip > i.MipLevels || sub.BaseLayer > i.ArrayLayers {
		return sub, contractErrorf(op, "subrange exceeds the image's mip or layer count")
	}
	sub = i.resolveSubrange(sub)
	if sub.BaseMip+sub.NumMips > i.MipLevels || sub.BaseLayer+sub.NumLayers > i.ArrayLayers {
		return sub, contractErrorf(op, "subrange exceeds the image's mip or layer count")
	}
	return sub, nil
}

// wholeSubrange covers every mip level and array layer of the image.
func (i *Image) wholeSubrange() ImageSubrange {
	return ImageSubrange{NumMips: i.MipLevels, NumLayers: i.ArrayLayers}
}

// LastKnownState returns the tracked state of the first unit overlapping
// sub, as of the owning queue's most recent submission.
func (i *Image) LastKnownState(sub ImageSubrange) ImageState {
	idx := addresserFor(i).indices(i, sub)
	if len(idx) == 0 {
		return StateUndefined
	}
	return i.last[idx[0]]
}

// inBulkHeap reports whether the image belongs to a heap with bulk
// transition tracking enabled. Such images never take the fine-grained
// barrier path: their transitions must go through the whole-submission
// resolution pass so the heap's subset list stays consistent.
func (i *Image) inBulkHeap() bool {
	return i.heap != nil && i.heap.bulk
}

// CreateImageProxy creates a second handle for img usable on q, which must
// not be the owning queue. At most one proxy may exist per (image, queue)
// pair; requesting a second is a contract violation. The proxy starts with
// every unit Undefined: its tracked state only becomes meaningful through
// an ownership transfer.
func (q *Queue) CreateImageProxy(img *Image) (*Image, error) {
	p := &Image{
		Width:       img.Width,
		Height:      img.Height,
		Depth:       img.Depth,
		MipLevels:   img.MipLevels,
		ArrayLayers: img.ArrayLayers,
		Usage:       img.Usage,
		VKImage:     img.VKImage,
		heapIndex:   -1,
		subsetPos:   -1,
	}
	p.init(kindImage, q)
	p.last = make([]ImageState, addresserFor(p).unitCount())
	if err := img.header().registerProxy(p, q); err != nil {
		return nil, err
	}
	return p, nil
}
