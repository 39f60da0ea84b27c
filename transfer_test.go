package gfxtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnershipTransfer(t *testing.T) {
	qa, ba := newTestQueue(t, QueueConfig{Family: 0})
	qb, bb := newTestQueue(t, QueueConfig{Family: 1})
	img := newTestImage(t, qa, 0)
	staging := newTestBuffer(t, qa)

	proxy, err := qb.CreateImageProxy(img)
	require.NoError(t, err)

	desc := TransferDescriptor{
		Resource:  img,
		SrcLayout: LayoutCopyWrite,
		DstLayout: LayoutShaderRead,
	}

	// source queue: produce the contents, then release
	cbA := record(t, qa, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginCopyEncoder())
		require.NoError(t, cb.CopyBufferToImage(staging, img, ImageSubrange{}))
		require.NoError(t, cb.EndEncoder())
		require.NoError(t, cb.ReleaseOwnership(desc, AccessCopyWrite, qb))
	})
	require.NoError(t, qa.Submit(cbA))

	var rel *BackendOp
	for i := range ba.ops {
		if ba.ops[i].Kind == OpOwnershipRelease {
			rel = &ba.ops[i]
		}
	}
	require.NotNil(t, rel)
	assert.Equal(t, LayoutCopyWrite, rel.SrcLayout)
	assert.Equal(t, LayoutShaderRead, rel.DstLayout)
	assert.Equal(t, qb, rel.OtherQueue)

	// the source queue's view of the resource is dead now
	assert.Equal(t, StateUndefined, img.LastKnownState(ImageSubrange{}))

	// destination queue: acquire with the identical descriptor, then use
	// the proxy like any owned image
	cbB := record(t, qb, func(cb *CommandBuffer) {
		require.NoError(t, cb.AcquireOwnership(desc, AccessShaderRead, qa))
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseResources(AccessComputeRead, proxy))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, qb.Submit(cbB))

	var acq *BackendOp
	for i := range bb.ops {
		if bb.ops[i].Kind == OpOwnershipAcquire {
			acq = &bb.ops[i]
		}
	}
	require.NotNil(t, acq)
	assert.Equal(t, qa, acq.OtherQueue)

	// the acquire seeded the proxy's tracked state from the descriptor, so
	// the shader use needed no further barrier
	assert.Empty(t, bb.barriers())
	assert.Equal(t, StateShaderRead, proxy.LastKnownState(ImageSubrange{}))
}

func TestAcquireWithoutRelease(t *testing.T) {
	qa, _ := newTestQueue(t, QueueConfig{})
	qb, _ := newTestQueue(t, QueueConfig{})
	img := newTestImage(t, qa, 0)
	_, err := qb.CreateImageProxy(img)
	require.NoError(t, err)

	desc := TransferDescriptor{Resource: img, SrcLayout: LayoutCopyWrite, DstLayout: LayoutShaderRead}
	cb := record(t, qb, func(cb *CommandBuffer) {
		require.NoError(t, cb.AcquireOwnership(desc, AccessShaderRead, qa))
	})
	assert.True(t, IsContractViolation(qb.Submit(cb)))
}

func TestMismatchedTransferDescriptor(t *testing.T) {
	qa, _ := newTestQueue(t, QueueConfig{})
	qb, _ := newTestQueue(t, QueueConfig{})
	img := newTestImage(t, qa, 0)
	_, err := qb.CreateImageProxy(img)
	require.NoError(t, err)

	desc := TransferDescriptor{Resource: img, SrcLayout: LayoutCopyWrite, DstLayout: LayoutShaderRead}
	cbA := record(t, qa, func(cb *CommandBuffer) {
		require.NoError(t, cb.ReleaseOwnership(desc, AccessCopyWrite, qb))
	})
	require.NoError(t, qa.Submit(cbA))

	wrong := desc
	wrong.DstLayout = LayoutGeneral
	cbB := record(t, qb, func(cb *CommandBuffer) {
		require.NoError(t, cb.AcquireOwnership(wrong, AccessShaderRead, qa))
	})
	assert.True(t, IsContractViolation(qb.Submit(cbB)))

	// the parked descriptor survives a failed acquire
	cbB2 := record(t, qb, func(cb *CommandBuffer) {
		require.NoError(t, cb.AcquireOwnership(desc, AccessShaderRead, qa))
	})
	assert.NoError(t, qb.Submit(cbB2))
}

func TestAcquireWithoutProxy(t *testing.T) {
	qa, _ := newTestQueue(t, QueueConfig{})
	qb, _ := newTestQueue(t, QueueConfig{})
	img := newTestImage(t, qa, 0)

	desc := TransferDescriptor{Resource: img, SrcLayout: LayoutCopyWrite, DstLayout: LayoutShaderRead}
	cb, err := qb.NewCommandBuffer()
	require.NoError(t, err)
	assert.True(t, IsContractViolation(cb.AcquireOwnership(desc, AccessShaderRead, qa)))
}

func TestBufferOwnershipTransfer(t *testing.T) {
	qa, ba := newTestQueue(t, QueueConfig{})
	qb, _ := newTestQueue(t, QueueConfig{})
	buf := newTestBuffer(t, qa)
	_, err := qb.CreateBufferProxy(buf)
	require.NoError(t, err)

	desc := TransferDescriptor{Resource: buf}
	cbA := record(t, qa, func(cb *CommandBuffer) {
		require.NoError(t, cb.ReleaseOwnership(desc, AccessCopyWrite, qb))
	})
	require.NoError(t, qa.Submit(cbA))

	require.Len(t, ba.ops, 1)
	assert.Equal(t, OpOwnershipRelease, ba.ops[0].Kind)
	assert.Same(t, buf, ba.ops[0].Buffer)

	cbB := record(t, qb, func(cb *CommandBuffer) {
		require.NoError(t, cb.AcquireOwnership(desc, AccessShaderRead, qa))
	})
	assert.NoError(t, qb.Submit(cbB))
}
