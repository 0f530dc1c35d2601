package vm

import "testing"

// TestGCReclaimsUnreachableCycle builds two lists that reference each
// other and nothing else, tags them the way execBuildContainer does, then
// drops the only references external to the cycle. A straight refcount
// scheme would leak both forever (each still holds one reference to the
// other); the collector must recognize neither's refcount exceeds what the
// other member of the cycle accounts for and sweep both.
func TestGCReclaimsUnreachableCycle(t *testing.T) {
	state := NewState(DefaultConfig())

	a := newContainer(KindList, -1, nil)
	b := newContainer(KindList, -1, nil)
	aVal := fromObject(TagList, a)
	bVal := fromObject(TagList, b)

	a.values = append(a.values, copyValue(bVal))
	b.values = append(b.values, copyValue(aVal))

	state.newGCEntry(a)
	state.newGCEntry(b)

	if state.LiveObjectCount() != 2 {
		t.Fatalf("expected 2 tagged objects before collection, got %d", state.LiveObjectCount())
	}

	// Drop the only references external to the cycle; each container now
	// survives solely because its cycle-mate still points at it.
	destroy(aVal)
	destroy(bVal)

	state.Collect()

	if state.LiveObjectCount() != 0 {
		t.Fatalf("expected the cycle to be fully reclaimed, %d objects still live", state.LiveObjectCount())
	}
}

// TestGCSweepPreservesReachableObjects checks that a sweep never reclaims
// an object something outside the graph still holds, and that running a
// second sweep immediately afterward is a no-op (the idempotence a caller
// relies on when MaybeCollect can run on back-to-back allocations).
func TestGCSweepPreservesReachableObjects(t *testing.T) {
	state := NewState(DefaultConfig())

	inner := newContainer(KindList, -1, nil)
	innerVal := fromObject(TagList, inner)
	outer := newContainer(KindList, -1, []Value{copyValue(innerVal)})
	outerVal := fromObject(TagList, outer)

	state.newGCEntry(inner)
	state.newGCEntry(outer)

	state.Collect()
	if state.LiveObjectCount() != 2 {
		t.Fatalf("expected both objects to survive a sweep while still reachable, got %d live", state.LiveObjectCount())
	}

	state.Collect()
	if state.LiveObjectCount() != 2 {
		t.Fatalf("a second sweep with no change in reachability must be a no-op, got %d live", state.LiveObjectCount())
	}

	destroy(outerVal)
}

// TestMaybeCollectTriggersAtThreshold checks that crossing the configured
// threshold runs a sweep automatically, the way every tagging call site in
// the interpreter relies on via State.newGCEntry, without anyone having to
// call Collect directly.
func TestMaybeCollectTriggersAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GCStart = 2
	cfg.GCMultiplier = 4
	state := NewState(cfg)

	a := newContainer(KindList, -1, nil)
	b := newContainer(KindList, -1, nil)
	aVal := fromObject(TagList, a)
	bVal := fromObject(TagList, b)
	a.values = append(a.values, copyValue(bVal))
	b.values = append(b.values, copyValue(aVal))
	destroy(aVal)
	destroy(bVal)

	state.newGCEntry(a)
	state.newGCEntry(b)
	if state.LiveObjectCount() != 2 {
		t.Fatalf("expected 2 live objects before the threshold is crossed, got %d", state.LiveObjectCount())
	}

	// A third tag crosses the threshold (GCStart == 2), so MaybeCollect
	// should reclaim the unreachable cycle as a side effect of tagging c.
	c := newContainer(KindList, -1, nil)
	state.newGCEntry(c)

	if state.LiveObjectCount() != 1 {
		t.Fatalf("expected MaybeCollect to reclaim the dead cycle once threshold was crossed, %d objects still live", state.LiveObjectCount())
	}
}
