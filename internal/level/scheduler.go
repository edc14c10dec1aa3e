package level

import (
	"time"

	"github.com/aalhour/ridgedb/internal/logging"
)

// tickInterval is the compaction worker poll period from spec.md §4.7.
const tickInterval = 50 * time.Millisecond

// RunWorker runs compaction worker workerIdx until stop is closed: every
// tick it picks at most one task and runs it to completion before
// ticking again. Errors are logged and the task's reservations released
// so the next tick retries, per spec.md §7's compaction error policy.
func (c *Controller) RunWorker(workerIdx int, stop <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.compactOnce(workerIdx)
		}
	}
}

func (c *Controller) compactOnce(workerIdx int) {
	task := c.PickTask(workerIdx)
	if task == nil {
		return
	}

	built, err := c.Execute(task)
	if err != nil {
		c.logger.Errorf(logging.NSCompact+"compaction L%d->L%d failed: %v", task.ThisLevel, task.NextLevel, err)
		c.Release(task)
		return
	}

	if err := c.Install(task, built); err != nil {
		c.logger.Errorf(logging.NSCompact+"install L%d->L%d failed: %v", task.ThisLevel, task.NextLevel, err)
	}
}
