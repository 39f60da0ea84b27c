package gfxtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapPlacement(t *testing.T) {
	q, _ := newTestQueue(t, QueueConfig{})
	heap, err := q.CreateHeap(HeapConfig{Size: 8192})
	require.NoError(t, err)

	a, err := heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	require.NoError(t, err)
	_, err = heap.CreateBuffer(BufferDescriptor{Size: 4096}, 256)
	require.NoError(t, err)

	// heap is full now
	_, err = heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	assert.Error(t, err)

	// releasing a placed resource returns its range to the allocator
	a.Release()
	_, err = heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	assert.NoError(t, err)
}

func TestUseHeapTransitionsOnlyTheSubset(t *testing.T) {
	q, b := newTestQueue(t, QueueConfig{})
	heap, err := q.CreateHeap(HeapConfig{Size: 1 << 20, BulkTransition: true})
	require.NoError(t, err)

	a, err := heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	require.NoError(t, err)
	c, err := heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	require.NoError(t, err)
	untouched, err := heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	require.NoError(t, err)
	storage, err := heap.CreateImage(ImageDescriptor{
		Width: 16, Height: 16, Usage: DefaultImageUsage | UsageStorage,
	}, 4096, 256)
	require.NoError(t, err)
	staging := newTestBuffer(t, q)

	cb := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginCopyEncoder())
		require.NoError(t, cb.CopyBufferToImage(staging, a, ImageSubrange{}))
		require.NoError(t, cb.CopyBufferToImage(staging, c, ImageSubrange{}))
		require.NoError(t, cb.CopyBufferToImage(staging, storage, ImageSubrange{}))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))

	// exactly the two plain copy-written images enter the subset; storage
	// images are excluded from bulk transition entirely
	subset := heap.NonShaderReadSubset()
	require.Len(t, subset, 2)
	assert.ElementsMatch(t, []*Image{a, c}, subset)
	b.reset()

	cb = record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseHeap(heap))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))

	ops := b.barriers()
	require.Len(t, ops, 2, "bulk transition cost is the subset, not the heap")
	for _, op := range ops {
		assert.Equal(t, StateShaderRead, op.DstState)
	}

	assert.Empty(t, heap.NonShaderReadSubset())
	assert.Equal(t, StateShaderRead, a.LastKnownState(ImageSubrange{}))
	assert.Equal(t, StateShaderRead, c.LastKnownState(ImageSubrange{}))
	assert.Equal(t, StateUndefined, untouched.LastKnownState(ImageSubrange{}))
	assert.Equal(t, StateCopyWrite, storage.LastKnownState(ImageSubrange{}))
}

func TestUseHeapWithoutBulkTransition(t *testing.T) {
	q, b := newTestQueue(t, QueueConfig{})
	heap, err := q.CreateHeap(HeapConfig{Size: 1 << 20})
	require.NoError(t, err)
	img, err := heap.CreateImage(ImageDescriptor{Width: 16, Height: 16}, 4096, 256)
	require.NoError(t, err)
	staging := newTestBuffer(t, q)

	cb := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginCopyEncoder())
		require.NoError(t, cb.CopyBufferToImage(staging, img, ImageSubrange{}))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))
	assert.Empty(t, heap.NonShaderReadSubset())
	b.reset()

	cb = record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseHeap(heap))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))
	assert.Empty(t, b.barriers())
}
