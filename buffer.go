package gfxtrack

import (
	vk "github.com/vulkan-go/vulkan"
)

// BufferDescriptor describes a buffer to create. As with images, the native
// backing object comes from an external factory.
type BufferDescriptor struct {
	Size     uint64
	VKBuffer vk.Buffer
}

// Buffer is a trackable linear allocation. Buffers have no layout, so
// tracking them means retention plus the memory-barrier scopes carried by
// fences; there is no per-buffer state machine.
type Buffer struct {
	ResourceHeader

	Size     uint64
	VKBuffer vk.Buffer

	heap  *Heap
	alloc *Allocation
}

func (b *Buffer) header() *ResourceHeader { return &b.ResourceHeader }

func (b *Buffer) String() string {
	return "buffer"
}

// CreateBuffer creates the tracking object for a buffer owned by this queue.
func (q *Queue) CreateBuffer(desc BufferDescriptor) (*Buffer, error) {
	b := &Buffer{
		Size:     desc.Size,
		VKBuffer: desc.VKBuffer,
	}
	b.init(kindBuffer, q)
	return b, nil
}

// CreateBufferProxy creates a second handle for b usable on q. The same
// one-proxy-per-queue rule as for images applies.
func (q *Queue) CreateBufferProxy(b *Buffer) (*Buffer, error) {
	p := &Buffer{
		Size:     b.Size,
		VKBuffer: b.VKBuffer,
	}
	p.init(kindBuffer, q)
	if err := b.header().registerProxy(p, q); err != nil {
		return nil, err
	}
	return p, nil
}
