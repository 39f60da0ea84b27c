package gfxtrack

// HeapConfig describes a heap to create. BulkTransition enables the subset
// tracking that backs the "make the entire heap shader-readable" fast path;
// heaps created without it never populate the subset list and UseHeap on
// them touches nothing.
type HeapConfig struct {
	Size           uint64
	BulkTransition bool

	// Allocator decides placement of contained resources. Defaults to a
	// FirstFitAllocator spanning Size.
	Allocator IAllocator
}

// Heap is a trackable region of GPU memory that images and buffers are
// placed into. For heaps with bulk transition enabled it maintains the
// subset of contained images whose current layout is neither shader-read
// nor undefined, so the bulk operation is O(that subset) rather than
// O(heap size).
type Heap struct {
	ResourceHeader

	Size  uint64
	bulk  bool
	alloc IAllocator

	images []*Image

	// indices into images; membership position is cached on each image so
	// updates during barrier resolution stay O(1) and never rescan the heap
	nonShaderRead []int
}

func (h *Heap) header() *ResourceHeader { return &h.ResourceHeader }

func (h *Heap) String() string {
	return "heap"
}

// CreateHeap creates a heap owned by this queue.
func (q *Queue) CreateHeap(cfg HeapConfig) (*Heap, error) {
	alloc := cfg.Allocator
	if alloc == nil {
		alloc = &FirstFitAllocator{Size: cfg.Size}
	}
	h := &Heap{
		Size:  cfg.Size,
		bulk:  cfg.BulkTransition,
		alloc: alloc,
	}
	h.init(kindHeap, q)
	return h, nil
}

// CreateImage creates an image placed inside the heap. size and align come
// from the native memory requirements of the image being placed. Images
// carrying the Storage or Render usage flag are placed but never enter the
// bulk-transition subset: the bulk operation is defined to be a no-op on
// them and they are never silently promoted to shader-read.
func (h *Heap) CreateImage(desc ImageDescriptor, size, align uint64) (*Image, error) {
	a := h.alloc.Allocate(size, align)
	if a == nil {
		return nil, insufficientHeapSpaceError
	}

	img, err := h.queue.CreateImage(desc)
	if err != nil {
		h.alloc.Free(a)
		return nil, err
	}
	img.heap = h
	img.heapIndex = len(h.images)
	h.images = append(h.images, img)

	alloc := a
	img.destroy = func() { h.alloc.Free(alloc) }
	return img, nil
}

// CreateBuffer creates a buffer placed inside the heap.
func (h *Heap) CreateBuffer(desc BufferDescriptor, align uint64) (*Buffer, error) {
	a := h.alloc.Allocate(desc.Size, align)
	if a == nil {
		return nil, insufficientHeapSpaceError
	}

	b, err := h.queue.CreateBuffer(desc)
	if err != nil {
		h.alloc.Free(a)
		return nil, err
	}
	b.heap = h
	b.alloc = a
	alloc := a
	b.destroy = func() { h.alloc.Free(alloc) }
	return b, nil
}

// NonShaderReadSubset returns a snapshot of the images currently in the
// bulk-transition subset.
func (h *Heap) NonShaderReadSubset() []*Image {
	out := make([]*Image, len(h.nonShaderRead))
	for i, idx := range h.nonShaderRead {
		out[i] = h.images[idx]
	}
	return out
}

// subsetEligible reports whether an image participates in bulk-transition
// tracking at all.
func (h *Heap) subsetEligible(img *Image) bool {
	return h.bulk && img.heap == h && img.Usage&(UsageStorage|UsageRender) == 0
}

// noteState is called whenever barrier resolution changes the tracked state
// of a contained image. It keeps the subset list consistent incrementally.
func (h *Heap) noteState(img *Image) {
	if !h.subsetEligible(img) {
		return
	}
	transitioning := false
	for _, s := range img.last {
		if s != StateShaderRead && s != StateUndefined {
			transitioning = true
			break
		}
	}
	switch {
	case transitioning && img.subsetPos == -1:
		img.subsetPos = len(h.nonShaderRead)
		h.nonShaderRead = append(h.nonShaderRead, img.heapIndex)
	case !transitioning && img.subsetPos != -1:
		// swap-remove, fixing up the moved image's cached position
		lastPos := len(h.nonShaderRead) - 1
		moved := h.nonShaderRead[lastPos]
		h.nonShaderRead[img.subsetPos] = moved
		h.images[moved].subsetPos = img.subsetPos
		h.nonShaderRead = h.nonShaderRead[:lastPos]
		img.subsetPos = -1
	}
}

// CreateHeapProxy creates a second handle for h usable on q.
func (q *Queue) CreateHeapProxy(h *Heap) (*Heap, error) {
	p := &Heap{
		Size: h.Size,
	}
	p.init(kindHeap, q)
	if err := h.header().registerProxy(p, q); err != nil {
		return nil, err
	}
	return p, nil
}
