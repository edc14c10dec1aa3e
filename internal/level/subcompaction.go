package level

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aalhour/ridgedb/internal/iterator"
	"github.com/aalhour/ridgedb/internal/logging"
	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/table"
)

// keyRange is a sub-compaction's [lo, hi) slice of the task's total key
// span; hi is nil for the final range, meaning unbounded above.
type keyRange struct {
	lo, hi []byte
}

// boundaries collects the key boundary set described in spec.md §4.7,
// sorted and deduplicated: for an L0 task, every ThisTable's smallest and
// biggest key plus every NextTable's smallest key; for an Lk task, every
// ThisTable's smallest key and every NextTable's smallest key. For either
// kind, when the task has NextTables, the largest BiggestKey among them
// is added as well.
func (t *Task) boundaries() [][]byte {
	var pts [][]byte
	if t.ThisLevel == 0 {
		for _, tb := range t.ThisTables {
			pts = append(pts, tb.SmallestKey(), tb.BiggestKey())
		}
		for _, tb := range t.NextTables {
			pts = append(pts, tb.SmallestKey())
		}
	} else {
		for _, tb := range t.ThisTables {
			pts = append(pts, tb.SmallestKey())
		}
		for _, tb := range t.NextTables {
			pts = append(pts, tb.SmallestKey())
		}
	}
	if len(t.NextTables) > 0 {
		sorted := append([]*table.Table(nil), t.NextTables...)
		sort.Slice(sorted, func(i, j int) bool {
			return bytes.Compare(sorted[i].BiggestKey(), sorted[j].BiggestKey()) < 0
		})
		pts = append(pts, sorted[len(sorted)-1].BiggestKey())
	}

	sort.Slice(pts, func(i, j int) bool { return bytes.Compare(pts[i], pts[j]) < 0 })
	out := pts[:0]
	for i, p := range pts {
		if i == 0 || !bytes.Equal(p, out[len(out)-1]) {
			out = append(out, p)
		}
	}
	return out
}

// allTables returns every SST the task reads from, in priority order
// (ThisTables, already newest-first for L0 tasks, then NextTables): the
// order sub-compactions build their merge iterators in.
func (t *Task) allTables() []*table.Table {
	out := make([]*table.Table, 0, len(t.ThisTables)+len(t.NextTables))
	out = append(out, t.ThisTables...)
	out = append(out, t.NextTables...)
	return out
}

// splitRanges turns a task's boundary points into contiguous [lo, hi)
// ranges, then greedily groups adjacent ranges into roughly
// subCompactorNum buckets of approximately equal estimated byte size,
// each estimated by summing OverlapSize across every table the task
// reads from — the range-sizing approach from
// original_source/src/level/range.rs.
func (c *Controller) splitRanges(t *Task, subCompactorNum int) []keyRange {
	pts := t.boundaries()
	if len(pts) == 0 {
		return nil
	}
	if subCompactorNum < 1 {
		subCompactorNum = 1
	}

	tables := t.allTables()
	raw := make([]keyRange, len(pts))
	sizes := make([]int64, len(pts))
	for i := range pts {
		var hi []byte
		if i+1 < len(pts) {
			hi = pts[i+1]
		}
		raw[i] = keyRange{lo: pts[i], hi: hi}
		var size int64
		for _, tb := range tables {
			size += int64(tb.OverlapSize(pts[i], orMax(hi, tb.BiggestKey())))
		}
		sizes[i] = size
	}

	var total int64
	for _, s := range sizes {
		total += s
	}
	if total == 0 {
		return []keyRange{{lo: raw[0].lo, hi: nil}}
	}
	target := total / int64(subCompactorNum)
	if target <= 0 {
		target = total
	}

	var out []keyRange
	var running int64
	start := 0
	for i := range raw {
		running += sizes[i]
		last := i == len(raw)-1
		if running >= target || last {
			out = append(out, keyRange{lo: raw[start].lo, hi: raw[i].hi})
			running = 0
			start = i + 1
		}
	}
	if len(out) > 0 {
		out[len(out)-1].hi = nil
	}
	return out
}

// orMax returns hi if non-nil, else fallback — OverlapSize needs a
// concrete upper key even for the final, unbounded range.
func orMax(hi, fallback []byte) []byte {
	if hi != nil {
		return hi
	}
	return fallback
}

// subResult is one sub-compaction's output tables, in the order produced.
type subResult struct {
	tables []*table.Table
	err    error
}

// Execute runs every sub-range of t in parallel, each reading the task's
// tables through a seeked, upper-bounded iterator and writing fresh SSTs
// at t.NextLevel, sealing an output file whenever the builder reaches
// capacity. It returns the full set of newly built tables (unsorted) or
// the first error encountered, in sub-range order. On error, the tables
// built by sub-ranges before the failing one are marked for deletion;
// tables built by the failing sub-range or by later ones are not, and
// stay on disk, never referenced by the MANIFEST. Release only clears the
// task's reservations.
func (c *Controller) Execute(t *Task) ([]*table.Table, error) {
	ranges := c.splitRanges(t, c.opts.SubcompactorNum)
	if len(ranges) == 0 {
		return nil, nil
	}

	results := make([]subResult, len(ranges))
	var wg sync.WaitGroup
	for i, r := range ranges {
		wg.Add(1)
		go func(i int, r keyRange) {
			defer wg.Done()
			tables, err := c.runSubCompaction(t, r)
			results[i] = subResult{tables: tables, err: err}
		}(i, r)
	}
	wg.Wait()

	var out []*table.Table
	for _, res := range results {
		if res.err != nil {
			for _, tb := range out {
				tb.MarkForDeletion()
			}
			return nil, res.err
		}
		out = append(out, res.tables...)
	}
	return out, nil
}

func (c *Controller) runSubCompaction(t *Task, r keyRange) ([]*table.Table, error) {
	tables := t.allTables()
	children := make([]iterator.Iterator, 0, len(tables))
	for _, tb := range tables {
		var it *table.Iterator
		var err error
		if r.lo != nil {
			it, err = table.NewIteratorSeekToKey(tb, r.lo)
		} else {
			it, err = table.NewIteratorSeekToFirst(tb)
		}
		if err != nil {
			return nil, fmt.Errorf("level: seek table %d for sub-compaction: %w", tb.ID(), err)
		}
		children = append(children, iterator.NewBounded(it, r.hi))
	}

	merged := iterator.NewMergingIterator(children)

	var out []*table.Table
	builder := table.NewBuilder(c.opts.BlockSize, c.opts.Compression, c.opts.FalsePositiveRate)

	seal := func() error {
		if builder.IsEmpty() {
			return nil
		}
		id := c.allocID()
		data, err := builder.Finish()
		if err != nil {
			return fmt.Errorf("level: finish compaction output: %w", err)
		}
		path := filepath.Join(c.dir, fileName(id))
		if err := table.WriteFile(path, data, c.opts.ODirect); err != nil {
			return err
		}
		nt, err := table.Open(path, id, c.cache)
		if err != nil {
			return fmt.Errorf("level: reopen compaction output %d: %w", id, err)
		}
		out = append(out, nt)
		builder = table.NewBuilder(c.opts.BlockSize, c.opts.Compression, c.opts.FalsePositiveRate)
		return nil
	}

	for merged.Valid() {
		if err := merged.Error(); err != nil {
			return nil, err
		}
		if err := builder.Add(merged.Key(), merged.Value()); err != nil {
			return nil, fmt.Errorf("level: add to compaction output: %w", err)
		}
		if builder.ReachedCapacity() {
			if err := seal(); err != nil {
				return nil, err
			}
		}
		merged.Next()
	}
	if err := merged.Error(); err != nil {
		return nil, err
	}
	if err := seal(); err != nil {
		return nil, err
	}
	return out, nil
}

// Install commits a completed task: every ThisTable and NextTable is
// deleted in the MANIFEST and every freshly built table is created at
// t.NextLevel, as a single change set with one fsync. The in-memory
// level lists are updated under their write locks (next level, then this
// level, per spec.md §5's lock-ordering rule) before reservations are
// released.
func (c *Controller) Install(t *Task, built []*table.Table) error {
	defer c.Release(t)

	sort.Slice(built, func(i, j int) bool {
		return bytes.Compare(built[i].SmallestKey(), built[j].SmallestKey()) < 0
	})

	var changes []manifest.Change
	for _, nt := range built {
		changes = append(changes, manifest.CreateChange(nt.ID(), t.NextLevel))
	}
	for _, tb := range t.ThisTables {
		changes = append(changes, manifest.DeleteChange(tb.ID()))
	}
	for _, tb := range t.NextTables {
		changes = append(changes, manifest.DeleteChange(tb.ID()))
	}

	if err := c.mf.ApplyChangeSet(manifest.ChangeSet{Changes: changes}); err != nil {
		for _, nt := range built {
			nt.MarkForDeletion()
		}
		return fmt.Errorf("level: install compaction L%d->L%d: %w", t.ThisLevel, t.NextLevel, err)
	}

	replaced := make(map[uint64]bool, len(t.NextTables))
	for _, tb := range t.NextTables {
		replaced[tb.ID()] = true
	}

	next := c.levels[t.NextLevel]
	next.mu.Lock()
	kept := make([]*table.Table, 0, len(next.tables))
	for _, tb := range next.tables {
		if !replaced[tb.ID()] {
			kept = append(kept, tb)
		}
	}
	kept = append(kept, built...)
	sort.Slice(kept, func(i, j int) bool {
		return bytes.Compare(kept[i].SmallestKey(), kept[j].SmallestKey()) < 0
	})
	next.tables = kept
	next.mu.Unlock()

	removedThis := make(map[uint64]bool, len(t.ThisTables))
	for _, tb := range t.ThisTables {
		removedThis[tb.ID()] = true
	}
	this := c.levels[t.ThisLevel]
	this.mu.Lock()
	keptThis := make([]*table.Table, 0, len(this.tables))
	for _, tb := range this.tables {
		if !removedThis[tb.ID()] {
			keptThis = append(keptThis, tb)
		}
	}
	this.tables = keptThis
	this.mu.Unlock()

	for _, tb := range t.ThisTables {
		tb.MarkForDeletion()
	}
	for _, tb := range t.NextTables {
		tb.MarkForDeletion()
	}

	c.logger.Infof(logging.NSCompact+"compacted L%d->L%d: %d+%d tables in, %d out",
		t.ThisLevel, t.NextLevel, len(t.ThisTables), len(t.NextTables), len(built))
	return nil
}
