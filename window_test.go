// Windowed cache tests: verify content correctness of the per-tick active
// arrays, then verify the LRU list actually evicts once the chunk budget
// is exceeded.
package pipedb

import "testing"

func TestWindowQueryActiveRecords(t *testing.T) {
	r, err := Open(buildFixture(t).prefix, Config{ChunkBudget: 8})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	seen := map[uint64]int{}
	err = r.WindowQuery(0, 19, true, func(tick uint64, active map[uint16]*Record) error {
		if rec, ok := active[1]; ok {
			seen[tick] = rec.Tag
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WindowQuery: %v", err)
	}

	cases := map[uint64]int{
		0:  TagAnnotation,
		4:  TagAnnotation,
		5:  TagInstruction,
		9:  TagInstruction,
		10: TagPair,
		14: TagPair,
		15: TagMemoryOp,
		19: TagMemoryOp,
	}
	for tick, want := range cases {
		if got, ok := seen[tick]; !ok || got != want {
			t.Errorf("tick %d: active tag = %v, want %d", tick, seen[tick], want)
		}
	}
}

func TestWindowQueryOutOfRange(t *testing.T) {
	r, _ := openFixture(t)
	if err := r.WindowQuery(10, 5, false, func(uint64, map[uint16]*Record) error { return nil }); err == nil || !isKind(err, KindOutOfRange) {
		t.Fatalf("WindowQuery(10,5): got %v, want KindOutOfRange", err)
	}
}

func TestWindowCacheEvictsOverBudget(t *testing.T) {
	r, err := Open(buildFixture(t).prefix, Config{ChunkBudget: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	// Touch bucket 0, then bucket 1: with a budget of 1, bucket 0 must be
	// evicted once bucket 1 is loaded and tracked.
	if err := r.WindowQuery(0, 0, true, func(uint64, map[uint16]*Record) error { return nil }); err != nil {
		t.Fatalf("WindowQuery bucket 0: %v", err)
	}
	if err := r.WindowQuery(10, 10, true, func(uint64, map[uint16]*Record) error { return nil }); err != nil {
		t.Fatalf("WindowQuery bucket 1: %v", err)
	}

	if len(r.window.byIndex) != 1 {
		t.Fatalf("resident chunks = %d, want 1 after exceeding a budget of 1", len(r.window.byIndex))
	}
	if _, stillResident := r.window.byIndex[0]; stillResident {
		t.Errorf("bucket 0 should have been evicted in favor of the more recently touched bucket 1")
	}
}

func TestWindowQueryUntrackedLeavesNoChunksResident(t *testing.T) {
	r, err := Open(buildFixture(t).prefix, Config{ChunkBudget: 8})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.WindowQuery(0, 19, false, func(uint64, map[uint16]*Record) error { return nil }); err != nil {
		t.Fatalf("WindowQuery: %v", err)
	}
	if r.window != nil && len(r.window.byIndex) != 0 {
		t.Errorf("untracked WindowQuery left %d chunks resident, want 0", len(r.window.byIndex))
	}
}
