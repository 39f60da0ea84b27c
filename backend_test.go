package gfxtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHazardDevice struct {
	signals []AccessFlags
	waits   []AccessFlags
}

func (d *fakeHazardDevice) SignalFence(cb *CommandBuffer, f *Fence, srcAccess AccessFlags) error {
	d.signals = append(d.signals, srcAccess)
	return nil
}

func (d *fakeHazardDevice) WaitFence(cb *CommandBuffer, f *Fence, dstAccess AccessFlags) error {
	d.waits = append(d.waits, dstAccess)
	return nil
}

// On a driver that tracks hazards itself, the whole barrier machinery
// dissolves: only fences carry intent the driver cannot infer.
func TestAutoHazardBackendKeepsOnlyFences(t *testing.T) {
	dev := &fakeHazardDevice{}
	q, err := NewQueue(QueueConfig{Backend: &AutoHazardBackend{Device: dev}})
	require.NoError(t, err)
	img := newTestImage(t, q, 0)
	staging := newTestBuffer(t, q)
	f, err := q.CreateFence()
	require.NoError(t, err)

	cb := record(t, q, func(cb *CommandBuffer) {
		require.NoError(t, cb.BeginCopyEncoder())
		require.NoError(t, cb.CopyBufferToImage(staging, img, ImageSubrange{}))
		require.NoError(t, cb.UpdateFence(f, AccessCopyWrite))
		require.NoError(t, cb.EndEncoder())
		require.NoError(t, cb.BeginComputeEncoder())
		require.NoError(t, cb.WaitFence(f, AccessComputeRead))
		require.NoError(t, cb.UseResources(AccessComputeRead, img))
		require.NoError(t, cb.EndEncoder())
	})
	require.NoError(t, q.Submit(cb))

	assert.Equal(t, []AccessFlags{AccessCopyWrite}, dev.signals)
	assert.Equal(t, []AccessFlags{AccessComputeRead}, dev.waits)

	// the tracked state still advances, so switching backends never
	// changes what the application observes
	assert.Equal(t, StateShaderRead, img.LastKnownState(ImageSubrange{}))
}
