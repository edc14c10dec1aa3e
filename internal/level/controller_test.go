package level

import (
	"testing"

	"github.com/aalhour/ridgedb/internal/compression"
	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/table"
)

func TestOpenEmptyDirStartsWithNoTables(t *testing.T) {
	c := newController(t, t.TempDir())
	for lv := 0; lv < c.NumLevels(); lv++ {
		if got := len(c.levels[lv].snapshot()); got != 0 {
			t.Fatalf("level %d: got %d tables, want 0", lv, got)
		}
	}
}

func TestPushL0AppendsAndRecordsInManifest(t *testing.T) {
	dir := t.TempDir()
	c := newController(t, dir)

	b := table.NewBuilder(256, compression.TagUncompressed, 0.01)
	if err := b.Add([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	tbl, err := c.PushL0(b)
	if err != nil {
		t.Fatalf("PushL0: %v", err)
	}
	if tbl == nil {
		t.Fatal("PushL0 returned nil table for non-empty builder")
	}

	l0 := c.levels[0].snapshot()
	if len(l0) != 1 || l0[0].ID() != tbl.ID() {
		t.Fatalf("unexpected L0 contents: %+v", l0)
	}

	lv, ok := c.mf.LevelOf(tbl.ID())
	if !ok || lv != 0 {
		t.Fatalf("manifest LevelOf(%d) = (%d, %v), want (0, true)", tbl.ID(), lv, ok)
	}
}

func TestPushL0EmptyBuilderIsNoop(t *testing.T) {
	c := newController(t, t.TempDir())
	b := table.NewBuilder(256, compression.TagUncompressed, 0.01)
	tbl, err := c.PushL0(b)
	if err != nil {
		t.Fatalf("PushL0: %v", err)
	}
	if tbl != nil {
		t.Fatalf("expected nil table for empty builder, got %v", tbl)
	}
}

func TestOpenRecoversExistingTablesAtRecordedLevels(t *testing.T) {
	dir := t.TempDir()

	mf, _, err := manifest.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	cache := table.NewCache(1 << 20)

	t0 := buildTable(t, dir, 0, cache, [][2]string{kv(0), kv(1)})
	t0.Close()
	if err := mf.Apply(manifest.CreateChange(0, 0)); err != nil {
		t.Fatal(err)
	}
	t1 := buildTable(t, dir, 1, cache, [][2]string{kv(2), kv(3)})
	t1.Close()
	if err := mf.Apply(manifest.CreateChange(1, 1)); err != nil {
		t.Fatal(err)
	}
	mf.Close()

	mf2, l0IDs2, err := manifest.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer mf2.Close()
	if len(l0IDs2) != 1 || l0IDs2[0] != 0 {
		t.Fatalf("unexpected l0IDs on reopen: %v", l0IDs2)
	}

	c, err := Open(dir, testOptions(), mf2, table.NewCache(1<<20), nil, l0IDs2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if got := len(c.levels[0].snapshot()); got != 1 {
		t.Fatalf("L0: got %d tables, want 1", got)
	}
	if got := len(c.levels[1].snapshot()); got != 1 {
		t.Fatalf("L1: got %d tables, want 1", got)
	}
	if got := c.allocID(); got != 2 {
		t.Fatalf("next id should continue past the highest recovered id: got %d, want 2", got)
	}
}
