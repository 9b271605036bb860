package storage

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/miradorstack/benford-lab/internal/metrics"
	"github.com/miradorstack/benford-lab/internal/utils"
)

// Sweep deletes regular files directly under root whose modification time is older than maxAge.
// Symlinks and directories are skipped. Per-file failures are logged and do not stop the sweep.
// A missing root is not an error.
func Sweep(logger *slog.Logger, root string, maxAge time.Duration, now time.Time) int {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("retention sweep skipped root", slog.String("root", root), slog.Any("error", err))
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("retention stat failed", slog.String("path", path), slog.Any("error", err))
			}
			continue
		}
		if utils.Age(now, info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("retention delete failed", slog.String("path", path), slog.Any("error", err))
			}
			continue
		}
		removed++
		logger.Info("removed expired file", slog.String("path", path))
	}
	return removed
}

// Sweeper runs Sweep over a fixed set of roots at most once per interval.
type Sweeper struct {
	logger   *slog.Logger
	roots    []string
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewSweeper constructs a Sweeper over roots.
func NewSweeper(logger *slog.Logger, maxAge, interval time.Duration, roots ...string) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		logger:   logger,
		roots:    append([]string(nil), roots...),
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
	}
}

// MaybeRun sweeps every root unless a sweep already ran within the interval.
// It reports whether a sweep ran and how many files it removed.
func (s *Sweeper) MaybeRun() (bool, int) {
	now := s.now()

	s.mu.Lock()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.interval {
		s.mu.Unlock()
		return false, 0
	}
	s.lastRun = now
	s.mu.Unlock()

	return true, s.run(now)
}

// RunNow sweeps every root immediately and records the run.
func (s *Sweeper) RunNow() int {
	now := s.now()
	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
	return s.run(now)
}

func (s *Sweeper) run(now time.Time) int {
	s.logger.Info("running retention sweep",
		slog.Duration("retention", s.maxAge),
		slog.Duration("interval", s.interval),
	)
	total := 0
	for _, root := range s.roots {
		removed := Sweep(s.logger, root, s.maxAge, now)
		if removed > 0 {
			s.logger.Info("retention sweep removed files", slog.String("root", root), slog.Int("count", removed))
		}
		total += removed
	}
	metrics.ObserveSweep(total)
	s.logger.Info("retention sweep finished", slog.Int("removed", total))
	return total
}
