// Package cache provides the bounded, disk-backed backlog of reports that
// failed delivery. The whole backlog is kept as a single JSON file that is
// rewritten after every mutation and reloaded in full at startup, so
// undelivered reports survive crashes and restarts.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/probe/internal/models"
)

// FileName is the backlog file kept inside the cache directory.
const FileName = "failed-reports.json"

// Drop reasons passed to a DropRecorder.
const (
	ReasonCapacity   = "capacity"
	ReasonMaxRetries = "max_retries"
)

// DeliverFunc attempts a single delivery of a cached payload. It must not
// call back into the cache.
type DeliverFunc func(ctx context.Context, p models.ReportPayload) error

// DropRecorder is notified when reports leave the backlog undelivered.
type DropRecorder interface {
	ReportsDropped(reason string, n int)
}

// Option configures a ReportCache.
type Option func(*ReportCache)

// WithDropRecorder attaches a recorder for dropped reports.
func WithDropRecorder(r DropRecorder) Option {
	return func(c *ReportCache) { c.recorder = r }
}

// WithClock overrides the time source used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(c *ReportCache) { c.now = now }
}

// ReportCache is an ordered (oldest first), capacity-bounded backlog of
// undelivered reports with per-entry retry counters.
type ReportCache struct {
	path       string
	capacity   int
	maxRetries int
	logger     *zap.Logger
	recorder   DropRecorder
	now        func() time.Time

	mu      sync.Mutex
	entries []models.CachedReport
}

// New creates a cache persisted under dir and loads any backlog left by a
// previous run. A missing or unreadable file starts the cache empty.
func New(dir string, capacity, maxRetries int, logger *zap.Logger, opts ...Option) *ReportCache {
	c := &ReportCache{
		path:       filepath.Join(dir, FileName),
		capacity:   capacity,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		c.logger.Warn("Failed to create cache directory, backlog will not persist",
			zap.String("dir", dir),
			zap.Error(err))
	}

	c.entries = c.load()
	if len(c.entries) > 0 {
		c.logger.Info("Loaded cached reports", zap.Int("count", len(c.entries)))
	}
	if c.trimToCapacity() {
		c.persist()
	}
	return c
}

// Cache appends a failed payload as a new entry. When the backlog exceeds
// its capacity the oldest entries are dropped.
func (c *ReportCache) Cache(p models.ReportPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, models.CachedReport{
		Payload:    p,
		Timestamp:  c.now().UTC(),
		RetryCount: 0,
	})

	c.trimToCapacity()
	c.persist()
}

// trimToCapacity drops the oldest entries beyond capacity and reports
// whether anything was dropped. Must be called with c.mu held or before
// the cache is shared.
func (c *ReportCache) trimToCapacity() bool {
	over := len(c.entries) - c.capacity
	if over <= 0 {
		return false
	}
	c.entries = append([]models.CachedReport(nil), c.entries[over:]...)
	c.logger.Warn("Report cache size limit reached, dropping oldest reports",
		zap.Int("dropped", over),
		zap.Int("limit", c.capacity))
	c.recordDrop(ReasonCapacity, over)
	return true
}

// RetryAll attempts delivery of every cached entry, oldest first. Delivered
// entries are removed; failed ones have their retry counter incremented and
// are dropped once it reaches the retry limit. The surviving set replaces
// the on-disk backlog. If ctx is cancelled mid-pass, the remaining entries
// are kept untouched.
func (c *ReportCache) RetryAll(ctx context.Context, deliver DeliverFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return
	}

	c.logger.Info("Retrying cached reports", zap.Int("count", len(c.entries)))

	remaining := make([]models.CachedReport, 0, len(c.entries))
	var delivered, dropped int

	for i, entry := range c.entries {
		if ctx.Err() != nil {
			remaining = append(remaining, c.entries[i:]...)
			break
		}

		err := deliver(ctx, entry.Payload)
		if err == nil {
			delivered++
			continue
		}

		entry.RetryCount++
		if entry.RetryCount >= c.maxRetries {
			dropped++
			c.logger.Warn("Cached report exceeded retry limit, permanently lost",
				zap.Time("captured_at", entry.Timestamp),
				zap.Int("retries", entry.RetryCount),
				zap.Error(err))
			continue
		}
		c.logger.Debug("Cached report retry failed",
			zap.Int("retries", entry.RetryCount),
			zap.Error(err))
		remaining = append(remaining, entry)
	}

	c.entries = remaining
	if dropped > 0 {
		c.recordDrop(ReasonMaxRetries, dropped)
	}
	c.persist()

	c.logger.Info("Cached report retry finished",
		zap.Int("delivered", delivered),
		zap.Int("dropped", dropped),
		zap.Int("remaining", len(remaining)))
}

// Clear empties the backlog.
func (c *ReportCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 0 {
		c.logger.Info("Clearing report cache", zap.Int("count", len(c.entries)))
	}
	c.entries = nil
	c.persist()
}

// Entries returns a copy of the backlog, oldest first.
func (c *ReportCache) Entries() []models.CachedReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.CachedReport, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ReportCache) recordDrop(reason string, n int) {
	if c.recorder != nil {
		c.recorder.ReportsDropped(reason, n)
	}
}

// load reads the backlog file. Must be called before the cache is shared.
func (c *ReportCache) load() []models.CachedReport {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("Failed to read report cache, starting empty",
				zap.String("file", c.path),
				zap.Error(err))
		}
		return nil
	}

	var entries []models.CachedReport
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("Failed to parse report cache, starting empty",
			zap.String("file", c.path),
			zap.Error(err))
		return nil
	}
	return entries
}

// persist writes the full backlog. Failures are logged; the in-memory
// entries stay authoritative. Must be called with c.mu held.
func (c *ReportCache) persist() {
	if err := c.writeFile(); err != nil {
		c.logger.Error("Failed to persist report cache",
			zap.String("file", c.path),
			zap.Error(err))
	}
}

func (c *ReportCache) writeFile() error {
	entries := c.entries
	if entries == nil {
		entries = []models.CachedReport{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
