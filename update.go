// Append-aware update tracking: lets a consumer poll whether the writer
// has flushed new, heartbeat-aligned data since the last check (spec.md
// §4.5 update loop, §6.3).
package pipedb

import (
	"time"

	"go.uber.org/zap"
)

// IsUpdated reports whether the writer has appended at least one new,
// fully flushed heartbeat since the last AckUpdated (or since Open).
// It may perform a stat and reopen internally, throttled to
// Config.PollInterval. Returns false immediately if updates are disabled.
func (r *Reader) IsUpdated() bool {
	if !r.updatesEnabled {
		return false
	}
	r.poll()
	return r.updatedFlag
}

// AckUpdated clears the pending-update flag.
func (r *Reader) AckUpdated() { r.updatedFlag = false }

// ForceUpdate performs an immediate stat-and-reopen check, bypassing the
// poll-interval throttle.
func (r *Reader) ForceUpdate() error {
	r.lastPoll = time.Time{}
	return r.poll()
}

// EnableUpdate turns on update polling (the default after Open).
func (r *Reader) EnableUpdate() { r.updatesEnabled = true }

// DisableUpdate turns off update polling; IsUpdated returns false
// without touching the filesystem until re-enabled.
func (r *Reader) DisableUpdate() { r.updatesEnabled = false }

// poll checks for new heartbeat-aligned growth and, if found, reopens
// the index and record streams and recomputes tick bounds. Growth is
// visible only in whole-heartbeat units — a partially written heartbeat
// at the tail stays invisible (spec.md §4.5).
func (r *Reader) poll() error {
	if time.Since(r.lastPoll) < r.config.PollInterval {
		return nil
	}
	r.lastPoll = time.Now()

	oldBuckets := len(r.index.Offsets)
	if err := r.index.refresh(); err != nil {
		return err
	}
	if len(r.index.Offsets) <= oldBuckets {
		return nil
	}

	r.logger.Debug("heartbeat-aligned growth detected",
		zap.Int("old_buckets", oldBuckets),
		zap.Int("new_buckets", len(r.index.Offsets)))

	if err := r.record.reopen(); err != nil {
		return err
	}
	if err := r.refreshTickBounds(); err != nil {
		return err
	}
	r.updatedFlag = true
	if r.window != nil {
		r.window.noteGrowth(r.visibleSize)
	}
	return nil
}
