package gfxtrack

import (
	"log"
	"sync"
	"sync/atomic"
)

var queueIDs uint64

// QueueConfig configures one tracked queue.
type QueueConfig struct {
	// MaxActiveCmdBuffers bounds how many command buffers may exist between
	// the start of recording and retirement. It fixes the size of every
	// resource's reference-table slot array, so it cannot change after
	// creation. Zero means 8.
	MaxActiveCmdBuffers int

	// Family is the native queue family index, used by the explicit-barrier
	// backend for ownership transfer barriers.
	Family uint32

	// StrictValidation makes recording report certain contract violations
	// immediately instead of at submission, at the cost of extra checks on
	// the recording path.
	StrictValidation bool

	Backend   Backend
	Submitter Submitter
}

// Queue owns resources and executes command buffers. Creation and recording
// may happen on any goroutine, but only one goroutine may submit to a given
// queue at a time; all tracked state except reference counts relies on that
// for safety.
type Queue struct {
	id  uint64
	cfg QueueConfig

	mu       sync.Mutex
	cond     *sync.Cond
	busy     []bool
	inflight int
	lost     bool
}

// NewQueue creates a queue with its fixed-size command buffer pool.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.MaxActiveCmdBuffers < 0 {
		return nil, contractErrorf("NewQueue", "negative command buffer pool size")
	}
	if cfg.MaxActiveCmdBuffers == 0 {
		cfg.MaxActiveCmdBuffers = 8
	}
	q := &Queue{
		id:   atomic.AddUint64(&queueIDs, 1),
		cfg:  cfg,
		busy: make([]bool, cfg.MaxActiveCmdBuffers),
	}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Family returns the native queue family index.
func (q *Queue) Family() uint32 { return q.cfg.Family }

// NewCommandBuffer starts recording a new command buffer. It never blocks:
// when all pool slots are occupied by buffers that have not retired yet, it
// fails with ErrPoolExhausted and the caller decides whether to wait for a
// completion or shed the work.
func (q *Queue) NewCommandBuffer() (*CommandBuffer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost {
		return nil, ErrDeviceLost
	}
	for i := range q.busy {
		if q.busy[i] {
			continue
		}
		q.busy[i] = true
		return &CommandBuffer{
			queue: q,
			index: i,
			state: cbRecording,
			refs:  refTable{cbIndex: i},
		}, nil
	}
	return nil, ErrPoolExhausted
}

// Submit resolves the buffers' synchronization in submission order, records
// the resulting ops through the backend and hands the buffers to the
// submitter. Resolution failures are returned synchronously before any
// native call is issued and leave all tracked resource state untouched; the
// batch itself is abandoned, because the faulty recording cannot be repaired
// and must not keep holding pool slots and references.
//
// Only one goroutine may call Submit on a queue at a time.
func (q *Queue) Submit(cbs ...*CommandBuffer) error {
	q.mu.Lock()
	lost := q.lost
	q.mu.Unlock()
	if lost {
		return ErrDeviceLost
	}

	for _, cb := range cbs {
		if cb.queue != q {
			return contractErrorf("Submit", "command buffer belongs to another queue")
		}
		if cb.state != cbRecording {
			return contractErrorf("Submit", "command buffer is not recording")
		}
	}

	resolutions := make([]*resolution, len(cbs))
	for i, cb := range cbs {
		cb.endPass()
		r, err := cb.resolve()
		if err != nil {
			abandon(cbs)
			return err
		}
		resolutions[i] = r
	}

	if q.cfg.Backend != nil {
		for i, cb := range cbs {
			if err := q.cfg.Backend.Record(cb, resolutions[i].ops); err != nil {
				abandon(cbs)
				return err
			}
		}
	}

	// Past the point of failure: commit the tracked states.
	for i, cb := range cbs {
		resolutions[i].fold()
		cb.state = cbSubmitted
	}

	q.mu.Lock()
	q.inflight += len(cbs)
	q.mu.Unlock()
	for _, cb := range cbs {
		cb.state = cbExecuting
	}

	if q.cfg.Submitter == nil {
		for _, cb := range cbs {
			q.finish(cb, nil)
		}
		return nil
	}
	if err := q.cfg.Submitter.Submit(cbs, q.finish); err != nil {
		for _, cb := range cbs {
			q.finish(cb, err)
		}
		return err
	}
	return nil
}

func abandon(cbs []*CommandBuffer) {
	for _, cb := range cbs {
		cb.Abandon()
	}
}

// finish retires one command buffer. It releases the reference table,
// returns the pool slot and invokes the completion callback. A device-level
// error poisons the queue: every later NewCommandBuffer and Submit fails
// with ErrDeviceLost.
func (q *Queue) finish(cb *CommandBuffer, err error) {
	done := cb.onComplete
	cb.refs.release()
	cb.state = cbRetired
	cb.reset()

	q.mu.Lock()
	if err != nil {
		if !q.lost {
			log.Printf("queue %d: device lost: %v", q.id, err)
		}
		q.lost = true
	}
	q.busy[cb.index] = false
	q.inflight--
	q.cond.Broadcast()
	q.mu.Unlock()

	if done != nil {
		done(err)
	}
}

// Drain blocks until every submitted command buffer has retired. Call it
// before destroying the device so no completion callback races teardown.
// It reports ErrDeviceLost when the queue was poisoned while draining, after
// all buffers have still retired.
func (q *Queue) Drain() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inflight > 0 {
		q.cond.Wait()
	}
	if q.lost {
		return ErrDeviceLost
	}
	return nil
}
