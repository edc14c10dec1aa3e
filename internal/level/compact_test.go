package level

import (
	"testing"

	"github.com/aalhour/ridgedb/internal/table"
)

func TestComputeScoresEmptyControllerIsZero(t *testing.T) {
	c := newController(t, t.TempDir())
	scores := c.computeScores()
	if len(scores) != c.NumLevels()-1 {
		t.Fatalf("got %d scores, want %d", len(scores), c.NumLevels()-1)
	}
	for _, s := range scores {
		if s.score != 0 {
			t.Fatalf("level %d: score %f on an empty controller, want 0", s.level, s.score)
		}
	}
}

func TestBuildL0TaskReservesL0AndOverlappingL1(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	l0a := buildTable(t, dir, 10, cache, [][2]string{kv(0), kv(2)})
	l0b := buildTable(t, dir, 11, cache, [][2]string{kv(1), kv(3)})
	c.levels[0].tables = []*table.Table{l0a, l0b}

	l1 := buildTable(t, dir, 20, cache, [][2]string{kv(2)})
	other := buildTable(t, dir, 21, cache, [][2]string{kv(100)})
	c.levels[1].tables = []*table.Table{l1, other}

	task := c.buildL0Task()
	if task == nil {
		t.Fatal("buildL0Task returned nil")
	}
	if task.ThisLevel != 0 || task.NextLevel != 1 {
		t.Fatalf("unexpected task levels: %+v", task)
	}
	if len(task.ThisTables) != 2 {
		t.Fatalf("expected both L0 tables in task, got %d", len(task.ThisTables))
	}
	// task.ThisTables is newest-first: l0b (index 1 in the append order)
	// comes before l0a.
	if task.ThisTables[0].ID() != l0b.ID() || task.ThisTables[1].ID() != l0a.ID() {
		t.Fatalf("ThisTables not newest-first: %+v", task.ThisTables)
	}
	if len(task.NextTables) != 1 || task.NextTables[0].ID() != l1.ID() {
		t.Fatalf("expected only the overlapping L1 table, got %+v", task.NextTables)
	}

	if !c.levels[0].isReserved(l0a.ID()) || !c.levels[0].isReserved(l0b.ID()) {
		t.Fatal("buildL0Task did not reserve L0 tables")
	}
	if !c.levels[1].isReserved(l1.ID()) {
		t.Fatal("buildL0Task did not reserve overlapping L1 table")
	}
	if c.levels[1].isReserved(other.ID()) {
		t.Fatal("buildL0Task reserved a non-overlapping L1 table")
	}

	// A second attempt must fail: every L0 table is already reserved.
	if again := c.buildL0Task(); again != nil {
		t.Fatalf("expected nil while L0 is fully reserved, got %+v", again)
	}

	c.Release(task)
	if c.levels[0].isReserved(l0a.ID()) || c.levels[1].isReserved(l1.ID()) {
		t.Fatal("Release did not clear reservations")
	}
}

func TestBuildLkTaskSkipsReservedCandidates(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	small := buildTable(t, dir, 30, cache, [][2]string{kv(0), kv(1)})
	big := buildTable(t, dir, 31, cache, [][2]string{kv(10), kv(11), kv(12), kv(13), kv(14)})
	c.levels[1].tables = []*table.Table{small, big}

	// Reserve the larger table directly, simulating a concurrent task
	// already holding it.
	c.levels[1].reserve(big.ID())

	task := c.buildLkTask(1)
	if task == nil {
		t.Fatal("buildLkTask returned nil, want a task for the unreserved smaller table")
	}
	if len(task.ThisTables) != 1 || task.ThisTables[0].ID() != small.ID() {
		t.Fatalf("expected task over the unreserved table, got %+v", task.ThisTables)
	}
}

func TestPickTaskPrioritizesL0ForWorkerZero(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	// Both levels score >= 1.0 on file count alone: with testOptions'
	// 4096-byte base, 10x multiplier and 1024-byte target size,
	// levelMaxFiles is 4 for L0 and 40 for L1, so 5 L0 files score 1.25
	// and 60 L1 files score 1.5. L1 scores higher than L0 — reordering
	// is the only reason worker 0 picks L0.
	var l0Tables []*table.Table
	for i := 0; i < 5; i++ {
		l0Tables = append(l0Tables, buildTable(t, dir, uint64(i), cache, [][2]string{kv(i)}))
	}
	c.levels[0].tables = l0Tables

	var l1Tables []*table.Table
	for i := 0; i < 60; i++ {
		l1Tables = append(l1Tables, buildTable(t, dir, uint64(100+i), cache, [][2]string{kv(100 + i)}))
	}
	c.levels[1].tables = l1Tables

	scores := c.computeScores()
	var l0Score, l1Score float64
	for _, s := range scores {
		switch s.level {
		case 0:
			l0Score = s.score
		case 1:
			l1Score = s.score
		}
	}
	if l0Score < 1.0 || l1Score <= l0Score {
		t.Fatalf("test setup invariant broken: l0Score=%f l1Score=%f", l0Score, l1Score)
	}

	task := c.PickTask(0)
	if task == nil {
		t.Fatal("PickTask(0) returned nil")
	}
	if task.ThisLevel != 0 {
		t.Fatalf("worker 0 should prioritize L0 even when L1 scores higher, got level %d", task.ThisLevel)
	}

	c.Release(task)

	// A non-zero worker has no such preference and follows the raw
	// score order: L1 first.
	taskOther := c.PickTask(1)
	if taskOther == nil {
		t.Fatal("PickTask(1) returned nil")
	}
	if taskOther.ThisLevel != 1 {
		t.Fatalf("worker != 0 should follow score order (L1 highest), got level %d", taskOther.ThisLevel)
	}
}
