package vm

// gcMark is the tri-state tag used during a sweep: a node starts
// NotSeen, is flipped to Visited when the mark pass reaches it from a
// root, and anything still not Visited once marking ends is flipped to
// Sweep and reclaimed — mirroring the
// recursive-descent tri-color-free marking in the original collector,
// which gets away with three states instead of the classic four because
// reference counts, not a separate root set, already tell it what's live.
type gcMark uint8

const (
	gcNotSeen gcMark = iota
	gcVisited
	gcSweep
)

// gcEntry is the intrusive list node attached to every container-like
// heap object once it becomes a cycle-collection candidate. Attachment is
// lazy ("threshold-before-tag"): a freshly built list of scalars is never
// tagged at all, since it cannot form a cycle; only once a derefable
// value is stored into it does it get an entry and join the live list.
type gcEntry struct {
	obj        gcTagged
	mark       gcMark
	prev, next *gcEntry
}

// Collector owns the live/spare gcEntry lists and the adaptive threshold
// that decides when to run a sweep, matching the original's strategy of
// scaling the next threshold by a multiplier instead of a fixed count so
// that programs with large but non-cyclic working sets don't sweep
// needlessly often.
type Collector struct {
	live  *gcEntry // head of the live (tagged, in-graph) list
	spare *gcEntry // freed entries kept around for reuse

	liveCount int
	threshold int
	multiplier int
}

const defaultGCThreshold = 1000
const defaultGCMultiplier = 4

func newCollector() *Collector {
	return &Collector{threshold: defaultGCThreshold, multiplier: defaultGCMultiplier}
}

// Tag attaches a gcEntry to obj if it doesn't already have one, and links
// it into the live list. Called whenever a container is about to hold a
// value that is itself derefable (the speculative threshold: plain-scalar
// containers never pay the tagging cost).
func (gc *Collector) Tag(obj gcTagged) {
	if obj.entry() != nil {
		return
	}
	e := &gcEntry{obj: obj}
	obj.setEntry(e)
	if gc.live != nil {
		gc.live.prev = e
	}
	e.next = gc.live
	gc.live = e
	gc.liveCount++
}

// MaybeCollect runs a sweep if the live count has crossed the adaptive
// threshold, then rescales the threshold by the multiplier so the next
// sweep is proportionally further out.
func (gc *Collector) MaybeCollect() {
	if gc.liveCount < gc.threshold {
		return
	}
	gc.Collect()
	gc.threshold = gc.liveCount*gc.multiplier + defaultGCThreshold
}

// Collect performs one full mark/sweep pass: every tagged object's
// refcount-reachable-from-a-nonzero-external-refcount status is
// determined by marking from "roots" (entries whose refcount exceeds the
// number of internal references pointing at them), then anything left
// NotSeen is a garbage cycle and gets swept.
func (gc *Collector) Collect() {
	entries := gc.allLive()

	internalRefs := make(map[gcTagged]int, len(entries))
	for _, e := range entries {
		for _, child := range e.obj.children() {
			if child.flags&IsDerefable == 0 || child.obj == nil {
				continue
			}
			if gt, ok := child.obj.(gcTagged); ok {
				internalRefs[gt]++
			}
		}
	}

	for _, e := range entries {
		e.mark = gcNotSeen
	}

	var mark func(gcTagged)
	mark = func(o gcTagged) {
		e := o.entry()
		if e == nil || e.mark == gcVisited {
			return
		}
		e.mark = gcVisited
		for _, child := range o.children() {
			if child.flags&IsDerefable == 0 || child.obj == nil {
				continue
			}
			if gt, ok := child.obj.(gcTagged); ok {
				mark(gt)
			}
		}
	}

	for _, e := range entries {
		rc := *e.obj.refcount()
		if rc > internalRefs[e.obj] {
			mark(e.obj)
		}
	}

	var garbage []gcTagged
	for _, e := range entries {
		if e.mark != gcVisited {
			e.mark = gcSweep
			garbage = append(garbage, e.obj)
		}
	}

	// Break cycles by clearing every member slot of the garbage set. A
	// member that is itself part of the garbage set is just zeroed, since
	// calling destroy() on it would recurse back into this same cycle
	// through an already-half-cleared neighbor (possibly before its own
	// turn in this loop). A member that survives outside the garbage set
	// instead goes through the normal destroy() path, so its refcount
	// still drops by the one reference the dying container held — skipping
	// that would leak the reference forever, since nothing else will ever
	// decrement it on this container's behalf.
	garbageSet := make(map[gcTagged]bool, len(garbage))
	for _, g := range garbage {
		garbageSet[g] = true
	}
	clearChild := func(v Value) {
		if v.flags&IsDerefable == 0 || v.obj == nil {
			return
		}
		if gt, ok := v.obj.(gcTagged); ok && garbageSet[gt] {
			return
		}
		destroy(v)
	}
	for _, g := range garbage {
		switch c := g.(type) {
		case *Container:
			for i := range c.values {
				clearChild(c.values[i])
				c.values[i] = Value{}
			}
		case *Hash:
			for _, e := range c.Entries() {
				clearChild(e.Key)
				clearChild(e.Value)
				e.Key = Value{}
				e.Value = Value{}
			}
		case *Function:
			for _, cell := range c.upvalues {
				clearChild(cell.value)
			}
			c.upvalues = nil
		}
	}
	for _, g := range garbage {
		gc.unlink(g.entry())
	}
}

func (gc *Collector) allLive() []*gcEntry {
	var out []*gcEntry
	for e := gc.live; e != nil; e = e.next {
		out = append(out, e)
	}
	return out
}

func (gc *Collector) unlink(e *gcEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		gc.live = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	gc.liveCount--
	e.next = gc.spare
	gc.spare = e
}
