package level

import (
	"bytes"
	"sort"

	"github.com/aalhour/ridgedb/internal/table"
)

// Task describes one compaction job: ThisTables (from ThisLevel) merge
// with NextTables (from NextLevel) into freshly built tables at
// NextLevel. ThisTables is ordered newest-first (see buildL0Task) so
// that a sub-compaction's merge, which enumerates ThisTables before
// NextTables, prefers the newest write on a duplicate key.
type Task struct {
	ThisLevel  int
	NextLevel  int
	ThisTables []*table.Table
	NextTables []*table.Table
}

// rangesOverlap reports whether two inclusive key ranges intersect.
func rangesOverlap(aSmall, aBig, bSmall, bBig []byte) bool {
	return bytes.Compare(aSmall, bBig) <= 0 && bytes.Compare(bSmall, aBig) <= 0
}

type levelScore struct {
	level int
	score float64
}

// computeScores scores every level below the last (the last level never
// compacts further down) as max(size/capacity, fileCount/maxFiles).
func (c *Controller) computeScores() []levelScore {
	scores := make([]levelScore, 0, c.opts.NumLevels-1)
	for lv := 0; lv < c.opts.NumLevels-1; lv++ {
		tables := c.levels[lv].snapshot()
		var size int64
		for _, t := range tables {
			size += t.Size()
		}
		byBytes := float64(size) / c.levelMaxBytes(lv)
		byCount := float64(len(tables)) / c.levelMaxFiles(lv)
		score := byBytes
		if byCount > score {
			score = byCount
		}
		scores = append(scores, levelScore{level: lv, score: score})
	}
	return scores
}

// PickTask computes level scores, optionally prioritizing L0 (workerIdx
// 0 always moves it to the front when present, per spec.md §4.7), and
// attempts to build a task for the first level scoring >= 1.0. Returns
// nil if no level needs compaction or every candidate task's key range
// conflicts with in-flight work.
func (c *Controller) PickTask(workerIdx int) *Task {
	scores := c.computeScores()
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if workerIdx == 0 {
		for i, s := range scores {
			if s.level != 0 {
				continue
			}
			if i != 0 {
				reordered := make([]levelScore, 0, len(scores))
				reordered = append(reordered, s)
				reordered = append(reordered, scores[:i]...)
				reordered = append(reordered, scores[i+1:]...)
				scores = reordered
			}
			break
		}
	}

	for _, s := range scores {
		if s.score < 1.0 {
			continue
		}
		var task *Task
		if s.level == 0 {
			task = c.buildL0Task()
		} else {
			task = c.buildLkTask(s.level)
		}
		if task != nil {
			return task
		}
	}
	return nil
}

// buildL0Task reserves every current L0 table (aborting if any is already
// reserved) and, for each, every overlapping L1 table, aborting instead
// of partially reserving if any overlap is itself reserved — this
// preserves the invariant that an L0->L1 task never leaves a subset of
// L0 unreserved, which would let a second task reorder L0's append order.
func (c *Controller) buildL0Task() *Task {
	l0 := c.levels[0]
	next := c.levels[1]

	tables := l0.snapshot()
	if len(tables) == 0 {
		return nil
	}
	for _, t := range tables {
		if l0.isReserved(t.ID()) {
			return nil
		}
	}

	nextTables := next.snapshot()
	var nextSet []*table.Table
	seen := make(map[uint64]bool)
	for _, t := range tables {
		for _, nt := range nextTables {
			if !rangesOverlap(t.SmallestKey(), t.BiggestKey(), nt.SmallestKey(), nt.BiggestKey()) {
				continue
			}
			if next.isReserved(nt.ID()) {
				return nil
			}
			if !seen[nt.ID()] {
				seen[nt.ID()] = true
				nextSet = append(nextSet, nt)
			}
		}
	}

	thisIDs := make([]uint64, len(tables))
	for i, t := range tables {
		thisIDs[i] = t.ID()
	}
	nextIDs := make([]uint64, len(nextSet))
	for i, t := range nextSet {
		nextIDs[i] = t.ID()
	}
	l0.reserve(thisIDs...)
	next.reserve(nextIDs...)

	// Reverse to newest-first: L0's list is oldest-first (append order).
	thisTables := make([]*table.Table, len(tables))
	for i, t := range tables {
		thisTables[len(tables)-1-i] = t
	}

	return &Task{ThisLevel: 0, NextLevel: 1, ThisTables: thisTables, NextTables: nextSet}
}

// buildLkTask picks the largest unreserved table at level lv whose
// overlapping family at lv+1 is entirely unreserved, reserves that
// family, and returns a task for it. Smaller, already-conflicting
// candidates are skipped rather than aborting the whole level, since
// levels lv>=1 are key-disjoint and a conflict on one candidate says
// nothing about another.
func (c *Controller) buildLkTask(lv int) *Task {
	this := c.levels[lv]
	next := c.levels[lv+1]

	tables := this.snapshot()
	sort.Slice(tables, func(i, j int) bool { return tables[i].Size() > tables[j].Size() })

	nextTables := next.snapshot()

	for _, t := range tables {
		if this.isReserved(t.ID()) {
			continue
		}
		var family []*table.Table
		conflict := false
		for _, nt := range nextTables {
			if !rangesOverlap(t.SmallestKey(), t.BiggestKey(), nt.SmallestKey(), nt.BiggestKey()) {
				continue
			}
			if next.isReserved(nt.ID()) {
				conflict = true
				break
			}
			family = append(family, nt)
		}
		if conflict {
			continue
		}

		this.reserve(t.ID())
		nextIDs := make([]uint64, len(family))
		for i, nt := range family {
			nextIDs[i] = nt.ID()
		}
		next.reserve(nextIDs...)

		return &Task{ThisLevel: lv, NextLevel: lv + 1, ThisTables: []*table.Table{t}, NextTables: family}
	}
	return nil
}

// Release undoes a task's reservations, called when a task fails so the
// next tick can retry its tables.
func (c *Controller) Release(t *Task) {
	ids := func(tables []*table.Table) []uint64 {
		out := make([]uint64, len(tables))
		for i, tb := range tables {
			out[i] = tb.ID()
		}
		return out
	}
	c.levels[t.ThisLevel].unreserve(ids(t.ThisTables)...)
	c.levels[t.NextLevel].unreserve(ids(t.NextTables)...)
}
