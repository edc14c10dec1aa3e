package level

import (
	"testing"

	"github.com/aalhour/ridgedb/internal/table"
)

func TestGetPrefersNewestL0Table(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	older := buildTable(t, dir, 1, cache, [][2]string{{"k", "old"}})
	newer := buildTable(t, dir, 2, cache, [][2]string{{"k", "new"}})
	// L0 is oldest-first; the newest write must win.
	c.levels[0].tables = []*table.Table{older, newer}

	v, found, err := c.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(v) != "new" {
		t.Fatalf("Get(k) = (%q, %v), want (new, true)", v, found)
	}
}

func TestGetFallsThroughToDeeperLevels(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	l1 := buildTable(t, dir, 1, cache, [][2]string{kv(1), kv(2), kv(3)})
	c.levels[1].tables = []*table.Table{l1}

	v, found, err := c.Get([]byte(kv(2)[0]))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(v) != kv(2)[1] {
		t.Fatalf("Get returned (%q, %v), want (%q, true)", v, found, kv(2)[1])
	}

	_, found, err = c.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatal("Get found a key that was never written")
	}
}

func TestLevelTablesSortedOrdersL0NewestFirstThenAscending(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	l0a := buildTable(t, dir, 1, cache, [][2]string{kv(5)})
	l0b := buildTable(t, dir, 2, cache, [][2]string{kv(5)})
	c.levels[0].tables = []*table.Table{l0a, l0b}

	l1a := buildTable(t, dir, 3, cache, [][2]string{kv(1)})
	l1b := buildTable(t, dir, 4, cache, [][2]string{kv(9)})
	c.levels[1].tables = []*table.Table{l1a, l1b}

	out := c.LevelTablesSorted(Unbounded, Unbounded)
	if len(out) != 4 {
		t.Fatalf("got %d tables, want 4", len(out))
	}
	if out[0].ID() != l0b.ID() || out[1].ID() != l0a.ID() {
		t.Fatalf("L0 tables not newest-first: %+v", out[:2])
	}
	if out[2].ID() != l1a.ID() || out[3].ID() != l1b.ID() {
		t.Fatalf("L1 tables not in ascending order: %+v", out[2:])
	}
}

func TestLevelTablesSortedRespectsBounds(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)
	cache := table.NewCache(1 << 20)

	inRange := buildTable(t, dir, 1, cache, [][2]string{kv(5)})
	outOfRange := buildTable(t, dir, 2, cache, [][2]string{kv(50)})
	c.levels[1].tables = []*table.Table{inRange, outOfRange}

	out := c.LevelTablesSorted(Bound{Key: []byte(kv(0)[0])}, Bound{Key: []byte(kv(10)[0])})
	if len(out) != 1 || out[0].ID() != inRange.ID() {
		t.Fatalf("expected only the in-range table, got %+v", out)
	}
}
