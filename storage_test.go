package ridgedb

import (
	"fmt"
	"path/filepath"
	"testing"
)

func smallTestOptions() Options {
	o := DefaultOptions()
	o.BlockSize = 256
	o.MemtableSize = 1 << 20
	o.MaxBytesForLevelBase = 1 << 16
	o.TargetFileSizeBase = 1 << 12
	o.NumLevels = 4
	o.CompactorNum = 1
	o.SubcompactorNum = 1
	return o
}

func openTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, smallTestOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dir
}

func TestPutGetDelete(t *testing.T) {
	db, _ := openTestStorage(t)

	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, found, err := db.Get([]byte("a"))
	if err != nil || !found || string(v) != "1" {
		t.Fatalf("Get(a) = (%q, %v, %v), want (1, true, nil)", v, found, err)
	}

	if err := db.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, err = db.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if found {
		t.Fatal("key still found after Delete")
	}
}

func TestGetRejectsEmptyKey(t *testing.T) {
	db, _ := openTestStorage(t)
	if _, _, err := db.Get(nil); err != ErrEmptyKey {
		t.Fatalf("Get(nil) error = %v, want ErrEmptyKey", err)
	}
}

func TestPutRejectsEmptyValue(t *testing.T) {
	db, _ := openTestStorage(t)
	if err := db.Put([]byte("k"), nil); err != ErrEmptyValue {
		t.Fatalf("Put with empty value error = %v, want ErrEmptyValue", err)
	}
}

func TestBatchPutWritesEveryEntry(t *testing.T) {
	db, _ := openTestStorage(t)

	entries := []Entry{
		{Key: []byte("x"), Value: []byte("1")},
		{Key: []byte("y"), Value: []byte("2")},
		{Key: []byte("z"), Value: []byte("3")},
	}
	if err := db.BatchPut(entries); err != nil {
		t.Fatalf("BatchPut: %v", err)
	}
	for _, e := range entries {
		v, found, err := db.Get(e.Key)
		if err != nil || !found || string(v) != string(e.Value) {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (%q, true, nil)", e.Key, v, found, err, e.Value)
		}
	}
}

func TestScanOrdersKeysAndSkipsTombstones(t *testing.T) {
	db, _ := openTestStorage(t)

	for _, e := range []Entry{
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("d"), Value: []byte("4")},
	} {
		if err := db.Put(e.Key, e.Value); err != nil {
			t.Fatalf("Put(%q): %v", e.Key, err)
		}
	}
	if err := db.Delete([]byte("c")); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	sc, err := db.Scan(nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer sc.Close()

	var got []string
	for sc.Valid() {
		got = append(got, string(sc.Key()))
		sc.Next()
	}
	if err := sc.Error(); err != nil {
		t.Fatalf("scan error: %v", err)
	}

	want := []string{"a", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("got keys %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got keys %v, want %v", got, want)
		}
	}
}

func TestScanRespectsBounds(t *testing.T) {
	db, _ := openTestStorage(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if err := db.Put([]byte(k), []byte("v")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	sc, err := db.Scan([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer sc.Close()

	var got []string
	for sc.Valid() {
		got = append(got, string(sc.Key()))
		sc.Next()
	}
	want := []string{"b", "c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSyncFlushesToL0(t *testing.T) {
	db, _ := openTestStorage(t)

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	v, found, err := db.levels.Get([]byte("k"))
	if err != nil {
		t.Fatalf("levels.Get: %v", err)
	}
	if !found || string(v) != "v" {
		t.Fatalf("expected k to be durable in L0 after Sync, got (%q, %v)", v, found)
	}
}

func TestDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	opts := smallTestOptions()

	db, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.BatchPut([]Entry{{Key: []byte("k2"), Value: []byte("v2")}}); err != nil {
		t.Fatalf("BatchPut: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	for _, want := range []Entry{{Key: []byte("k"), Value: []byte("v1")}, {Key: []byte("k2"), Value: []byte("v2")}} {
		v, found, err := db2.Get(want.Key)
		if err != nil || !found || string(v) != string(want.Value) {
			t.Fatalf("Get(%q) after reopen = (%q, %v, %v), want (%q, true, nil)", want.Key, v, found, err, want.Value)
		}
	}
}

func TestPutToChannelDisabledByDefault(t *testing.T) {
	db, _ := openTestStorage(t)
	if _, err := db.PutToChannel([]Entry{{Key: []byte("a"), Value: []byte("1")}}); err == nil {
		t.Fatal("expected PutToChannel to fail when WaitEntryNum is 0")
	}
}

func TestPutToChannelAppliesWhenCoalescerEnabled(t *testing.T) {
	opts := smallTestOptions()
	opts.WaitEntryNum = 8
	dir := t.TempDir()
	db, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ch, err := db.PutToChannel([]Entry{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("b"), Value: []byte("2")}})
	if err != nil {
		t.Fatalf("PutToChannel: %v", err)
	}
	if err := <-ch; err != nil {
		t.Fatalf("coalesced batch error: %v", err)
	}

	for _, want := range []Entry{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("b"), Value: []byte("2")}} {
		v, found, err := db.Get(want.Key)
		if err != nil || !found || string(v) != string(want.Value) {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (%q, true, nil)", want.Key, v, found, err, want.Value)
		}
	}
}

func TestOperationsRejectedAfterClose(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, smallTestOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, _, err := db.Get([]byte("a")); err != ErrClosed {
		t.Fatalf("Get after close error = %v, want ErrClosed", err)
	}
	if err := db.Put([]byte("a"), []byte("1")); err != ErrClosed {
		t.Fatalf("Put after close error = %v, want ErrClosed", err)
	}
	if err := db.Close(); err != ErrClosed {
		t.Fatalf("second Close error = %v, want ErrClosed", err)
	}
}

func TestOpenCreatesDatabaseDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	db, err := Open(dir, smallTestOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
}

// TestFlushThenOverwriteReturnsNewValue covers spec.md §8 scenario 4:
// 10 keys flushed to L0 must be shadowed by later writes still sitting
// in the active memtable.
func TestFlushThenOverwriteReturnsNewValue(t *testing.T) {
	db, _ := openTestStorage(t)

	keys := make([][]byte, 10)
	for i := 0; i < 10; i++ {
		keys[i] = []byte(fmt.Sprintf("key_%04d", i))
		if err := db.Put(keys[i], []byte("value_0009_old")); err != nil {
			t.Fatalf("Put(%q): %v", keys[i], err)
		}
	}
	if err := db.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for _, k := range keys {
		if err := db.Put(k, []byte("value_0009_new")); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}
	for _, k := range keys {
		v, found, err := db.Get(k)
		if err != nil || !found || string(v) != "value_0009_new" {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (value_0009_new, true, nil)", k, v, found, err)
		}
	}
}

// TestOverlappingFlushesKeepNewestWriter follows spec.md §8 scenario 5:
// 10 batches of 70 overlapping keys, each flushed by Sync to its own L0
// table; every stored key must read back the highest-index batch's
// value. Under smallTestOptions the ten L0 tables stay below the
// compaction threshold (10 of 16 files, well under 64 KiB), so the
// lookups resolve across overlapping L0 tables and no compaction runs.
func TestOverlappingFlushesKeepNewestWriter(t *testing.T) {
	db, _ := openTestStorage(t)

	const batches, batchSize = 10, 70
	want := make(map[string]string)
	for i := 0; i < batches; i++ {
		for j := 0; j < batchSize; j++ {
			key := i*50 + j
			k := []byte(fmt.Sprintf("key_%05d", key))
			v := []byte(fmt.Sprintf("value_batch_%02d", i))
			if err := db.Put(k, v); err != nil {
				t.Fatalf("Put(%q): %v", k, err)
			}
			want[string(k)] = string(v)
		}
		if err := db.Sync(); err != nil {
			t.Fatalf("Sync after batch %d: %v", i, err)
		}
	}

	for k, v := range want {
		got, found, err := db.Get([]byte(k))
		if err != nil || !found || string(got) != v {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (%q, true, nil)", k, got, found, err, v)
		}
	}
}

// TestWriteCoalescerEquivalence covers spec.md §8 scenario 6: 500
// distinct single-entry requests through a coalescer with
// WaitEntryNum=100 must all succeed and be independently readable.
func TestWriteCoalescerEquivalence(t *testing.T) {
	opts := smallTestOptions()
	opts.WaitEntryNum = 100
	dir := t.TempDir()
	db, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	const n = 500
	chans := make([]<-chan error, n)
	keys := make([][]byte, n)
	values := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("coalesced_%05d", i))
		values[i] = []byte(fmt.Sprintf("value_%05d", i))
		ch, err := db.PutToChannel([]Entry{{Key: keys[i], Value: values[i]}})
		if err != nil {
			t.Fatalf("PutToChannel(%d): %v", i, err)
		}
		chans[i] = ch
	}
	for i, ch := range chans {
		if err := <-ch; err != nil {
			t.Fatalf("coalesced request %d failed: %v", i, err)
		}
	}
	for i := range keys {
		v, found, err := db.Get(keys[i])
		if err != nil || !found || string(v) != string(values[i]) {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (%q, true, nil)", keys[i], v, found, err, values[i])
		}
	}
}
