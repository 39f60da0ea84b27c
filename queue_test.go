package gfxtrack

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tracked states are valid with respect to submission order, not
// retirement: a later buffer resolves against what an earlier, still
// in-flight buffer left behind.
func TestResolutionFollowsSubmissionOrder(t *testing.T) {
	sub := &manualSubmitter{}
	q, b := newTestQueue(t, QueueConfig{Submitter: sub})
	img := newTestImage(t, q, 0)
	staging := newTestBuffer(t, q)

	cb1 := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginCopyEncoder())
		require.NoError(t, cb.CopyBufferToImage(staging, img, ImageSubrange{}))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb1))
	b.reset()

	// cb1 has not retired yet
	cb2 := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseResources(AccessComputeRead, img))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb2))

	ops := b.barriers()
	require.Len(t, ops, 1)
	assert.Equal(t, StateCopyWrite, ops[0].SrcState, "cb2 must see cb1's submitted state")

	sub.complete(nil)
}

func TestMultiBufferSubmit(t *testing.T) {
	sub := &manualSubmitter{}
	q, _ := newTestQueue(t, QueueConfig{Submitter: sub})
	staging := newTestBuffer(t, q)
	img := newTestImage(t, q, 0)

	cb1 := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginCopyEncoder())
		require.NoError(t, cb.CopyBufferToImage(staging, img, ImageSubrange{}))
		require.NoError(t, cb.EndEncoder())
	})
	cb2 := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseResources(AccessComputeRead, img))
		require.NoError(t, cb.EndEncoder())
	})

	require.NoError(t, q.Submit(cb1, cb2))
	require.Len(t, sub.batches, 1)
	require.Equal(t, []*CommandBuffer{cb1, cb2}, sub.batches[0], "hand-off preserves submission order")
	sub.complete(nil)
}

func TestCompletionCallback(t *testing.T) {
	sub := &manualSubmitter{}
	q, _ := newTestQueue(t, QueueConfig{Submitter: sub})

	var got []error
	cb := record(t, q, func(cb *CommandBuffer) {
		cb.OnComplete(func(err error) { got = append(got, err) })
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))
	assert.Empty(t, got, "callback must not fire before retirement")

	sub.complete(nil)
	require.Len(t, got, 1)
	assert.NoError(t, got[0])
}

// A device-level execution error poisons the queue: the failed buffer's
// callback receives the error and every later operation fails fast.
func TestDeviceLossPoisonsQueue(t *testing.T) {
	sub := &manualSubmitter{}
	q, _ := newTestQueue(t, QueueConfig{Submitter: sub})

	var got error
	cb := record(t, q, func(cb *CommandBuffer) {
		cb.OnComplete(func(err error) { got = err })
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))
	sub.complete(ErrDeviceLost)

	assert.ErrorIs(t, got, ErrDeviceLost)

	_, err := q.NewCommandBuffer()
	assert.ErrorIs(t, err, ErrDeviceLost)
	assert.ErrorIs(t, q.Submit(), ErrDeviceLost)
	assert.ErrorIs(t, q.Drain(), ErrDeviceLost)
}

func TestDrainWaitsForRetirement(t *testing.T) {
	sub := &manualSubmitter{}
	q, _ := newTestQueue(t, QueueConfig{Submitter: sub})

	cb := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))

	done := make(chan struct{})
	go func() {
		q.Drain()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Drain returned with a buffer still in flight")
	case <-time.After(10 * time.Millisecond):
	}

	sub.complete(nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Drain did not return after retirement")
	}
}

func TestSubmitRejectsForeignBuffer(t *testing.T) {
	qa, _ := newTestQueue(t, QueueConfig{})
	qb, _ := newTestQueue(t, QueueConfig{})

	cb, err := qa.NewCommandBuffer()
	require.NoError(t, err)
	assert.True(t, IsContractViolation(qb.Submit(cb)))
}

// A submission that fails to resolve must not wedge the queue: the batch is
// abandoned, the pool slots come back and the retained references drop.
func TestFailedSubmitReleasesPoolSlot(t *testing.T) {
	q, _ := newTestQueue(t, QueueConfig{MaxActiveCmdBuffers: 1})
	img := newTestImage(t, q, UsageStorage)

	cb := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseResources(AccessComputeRead, img))
		require.NoError(t, cb.UseResources(AccessComputeRead|AccessComputeWrite, img))
		require.NoError(t, cb.EndEncoder())
	})

	err := q.Submit(cb)
	var re *ResolveError
	require.True(t, errors.As(err, &re), "expected a resolve error, got %v", err)
	assert.Equal(t, int32(1), refCount(img), "failed submit must drop the retained reference")

	// the single pool slot is free again
	cb2, err := q.NewCommandBuffer()
	require.NoError(t, err)
	cb2.Abandon()
}

func TestAbandonRecording(t *testing.T) {
	q, _ := newTestQueue(t, QueueConfig{MaxActiveCmdBuffers: 1})
	img := newTestImage(t, q, 0)

	cb := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.UseResources(AccessComputeRead, img))
		require.NoError(t, cb.EndEncoder())
	})
	require.Equal(t, int32(2), refCount(img))

	cb.Abandon()
	cb.Abandon() // idempotent
	assert.Equal(t, int32(1), refCount(img))
	assert.Equal(t, StateUndefined, img.LastKnownState(ImageSubrange{}))

	_, err := q.NewCommandBuffer()
	require.NoError(t, err)
}
