package gfxtrack

// ArgumentPool is a trackable pool of shader argument tables. The allocation
// strategy inside the pool belongs to a collaborator; this subsystem only
// retains the pool while command buffers referencing its tables are in
// flight, so the pool is not recycled out from under the GPU.
type ArgumentPool struct {
	ResourceHeader

	Capacity int
}

func (p *ArgumentPool) header() *ResourceHeader { return &p.ResourceHeader }

func (p *ArgumentPool) String() string {
	return "argument pool"
}

// CreateArgumentPool creates an argument pool owned by this queue.
func (q *Queue) CreateArgumentPool(capacity int) (*ArgumentPool, error) {
	p := &ArgumentPool{Capacity: capacity}
	p.init(kindArgumentPool, q)
	return p, nil
}
