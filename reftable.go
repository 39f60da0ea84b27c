package gfxtrack

// refTable retains every trackable object touched while recording a command
// buffer, and keeps it alive until the buffer retires. Whether an object is
// already present is answered by the object's own slot entry for this
// buffer, not by scanning the table, so insertion is O(1) and idempotent.
//
// Entries are only mutated through the exclusive handle of the owning
// command buffer during recording; no locking is involved.
type refTable struct {
	cbIndex int
	entries []Trackable
}

// insert adds res to the table if it is not present yet and returns its
// entry index. The resource's reference count is incremented on first
// insertion and dropped again at retirement.
func (t *refTable) insert(res Trackable) int {
	h := res.header()
	if i := h.slots[t.cbIndex]; i != slotNone {
		return int(i)
	}
	idx := len(t.entries)
	h.slots[t.cbIndex] = int32(idx)
	h.Retain()
	t.entries = append(t.entries, res)
	return idx
}

// contains reports whether res already has an entry, without inserting.
func (t *refTable) contains(res Trackable) bool {
	return res.header().slots[t.cbIndex] != slotNone
}

// release clears every slot index and drops the retained references. Called
// at retirement, or when a recording is abandoned after an error.
func (t *refTable) release() {
	for _, res := range t.entries {
		h := res.header()
		h.slots[t.cbIndex] = slotNone
		h.Release()
	}
	t.entries = t.entries[:0]
}

// len returns the number of distinct tracked objects in the table.
func (t *refTable) len() int { return len(t.entries) }
