package level

import (
	"testing"

	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/table"
)

func TestSplitRangesCoversWholeSpanContiguously(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	var kvs [][2]string
	for i := 0; i < 20; i++ {
		kvs = append(kvs, kv(i))
	}
	tbl := buildTable(t, dir, 1, cache, kvs)

	task := &Task{ThisLevel: 1, NextLevel: 2, ThisTables: []*table.Table{tbl}}
	ranges := c.splitRanges(task, 3)
	if len(ranges) == 0 {
		t.Fatal("splitRanges returned no ranges")
	}
	if ranges[0].lo == nil {
		t.Fatal("first range must start at the task's lowest boundary")
	}
	if ranges[len(ranges)-1].hi != nil {
		t.Fatal("last range must be unbounded above")
	}
	for i := 1; i < len(ranges); i++ {
		if string(ranges[i].lo) != string(ranges[i-1].hi) {
			t.Fatalf("ranges %d and %d are not contiguous: %q != %q", i-1, i, ranges[i-1].hi, ranges[i].lo)
		}
	}
}

func TestExecuteAndInstallRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	l0 := buildTable(t, dir, 1, cache, [][2]string{kv(0), kv(2), kv(4)})
	c.levels[0].tables = []*table.Table{l0}

	l1 := buildTable(t, dir, 2, cache, [][2]string{kv(1), kv(3), kv(5)})
	c.levels[1].tables = []*table.Table{l1}

	// Install deletes the task's inputs from the MANIFEST, so they must
	// be recorded there first.
	if err := c.mf.Apply(manifest.CreateChange(l0.ID(), 0)); err != nil {
		t.Fatal(err)
	}
	if err := c.mf.Apply(manifest.CreateChange(l1.ID(), 1)); err != nil {
		t.Fatal(err)
	}

	task := c.buildL0Task()
	if task == nil {
		t.Fatal("buildL0Task returned nil")
	}

	built, err := c.Execute(task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(built) == 0 {
		t.Fatal("Execute produced no output tables")
	}

	if err := c.Install(task, built); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// L0 must be empty and L1 must hold exactly the merged output.
	if got := len(c.levels[0].snapshot()); got != 0 {
		t.Fatalf("L0 after install: got %d tables, want 0", got)
	}
	l1After := c.levels[1].snapshot()
	if len(l1After) != len(built) {
		t.Fatalf("L1 after install: got %d tables, want %d", len(l1After), len(built))
	}

	// Every key originally in L0 or L1 must be findable via Get.
	for i := 0; i <= 5; i++ {
		key, val := kv(i)[0], kv(i)[1]
		v, found, err := c.Get([]byte(key))
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if !found || string(v) != val {
			t.Fatalf("Get(%q) = (%q, %v), want (%q, true)", key, v, found, val)
		}
	}

	// The superseded tables must have had their in-memory reservations
	// cleared as part of Install.
	if c.levels[0].isReserved(l0.ID()) || c.levels[1].isReserved(l1.ID()) {
		t.Fatal("Install left stale reservations behind")
	}
}
