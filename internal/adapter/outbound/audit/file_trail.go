// Package audit provides file-based persistence for the authorization
// decision trail: JSON Lines, daily rotation, size caps, retention
// cleanup, and an in-memory tail for quick inspection.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/cognefi/agentgate/internal/domain/audit"
)

// trailFilePattern matches trail filenames: decisions-YYYY-MM-DD.log or
// decisions-YYYY-MM-DD-N.log.
var trailFilePattern = regexp.MustCompile(`^decisions-(\d{4}-\d{2}-\d{2})(?:-(\d+))?\.log$`)

// trailFileInfo holds parsed information about a trail file.
type trailFileInfo struct {
	date   string
	suffix int
}

// parseTrailFilename parses a trail filename and returns its components.
func parseTrailFilename(name string) (trailFileInfo, bool) {
	matches := trailFilePattern.FindStringSubmatch(name)
	if matches == nil {
		return trailFileInfo{}, false
	}
	info := trailFileInfo{date: matches[1]}
	if matches[2] != "" {
		n, err := strconv.Atoi(matches[2])
		if err != nil {
			return trailFileInfo{}, false
		}
		info.suffix = n
	}
	return info, true
}

// TrailConfig holds configuration for the file-based decision trail.
type TrailConfig struct {
	// Dir is the directory where trail files are stored.
	Dir string
	// RetentionDays is the number of days to keep trail files (default 30).
	RetentionDays int
	// MaxFileSizeMB is the maximum file size before rotation (default 100).
	MaxFileSizeMB int
	// CacheSize is the number of recent records kept in memory (default 512).
	CacheSize int
}

// FileTrail implements audit.Trail with daily rotation, size-based
// rollover, and retention cleanup. Writes are synchronous under a mutex;
// one record is one JSON line.
type FileTrail struct {
	dir           string
	maxFileSize   int64
	retentionDays int
	logger        *slog.Logger
	cancel        context.CancelFunc

	mu            sync.Mutex
	currentFile   *os.File
	currentDate   string
	currentSize   int64
	currentSuffix int
	closed        bool

	cache *recordCache
}

// NewFileTrail creates the trail directory if needed, opens today's file,
// runs retention cleanup, and starts the hourly cleanup goroutine.
func NewFileTrail(cfg TrailConfig, logger *slog.Logger) (*FileTrail, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create trail directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &FileTrail{
		dir:           cfg.Dir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		cancel:        cancel,
		cache:         newRecordCache(cfg.CacheSize),
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := t.openCurrent(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open trail file: %w", err)
	}

	t.runCleanup()
	go t.cleanupLoop(ctx)

	return t, nil
}

// Append writes one decision record as a JSON line, rotating by date and
// size as needed.
func (t *FileTrail) Append(_ context.Context, rec audit.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("trail closed")
	}

	dateStr := rec.Timestamp.UTC().Format("2006-01-02")
	if dateStr != t.currentDate {
		if err := t.rotateDateLocked(dateStr); err != nil {
			return fmt.Errorf("date rotation: %w", err)
		}
	}
	if t.currentSize >= t.maxFileSize {
		if err := t.rotateSizeLocked(); err != nil {
			return fmt.Errorf("size rotation: %w", err)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}
	n, err := t.currentFile.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("write decision record: %w", err)
	}
	t.currentSize += int64(n)

	t.cache.Add(rec)
	return nil
}

// Recent returns up to n cached records, newest first. The cache is
// process-local; it does not survive restarts.
func (t *FileTrail) Recent(n int) []audit.Record {
	return t.cache.Recent(n)
}

// Flush syncs the current file to disk.
func (t *FileTrail) Flush(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentFile != nil {
		return t.currentFile.Sync()
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (t *FileTrail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()

	if t.currentFile != nil {
		_ = t.currentFile.Sync()
		err := t.currentFile.Close()
		t.currentFile = nil
		return err
	}
	return nil
}

// openCurrent opens or creates the trail file for the given date,
// resuming the highest existing suffix so restarts append rather than
// overwrite.
func (t *FileTrail) openCurrent(dateStr string) error {
	suffix := t.highestSuffix(dateStr)
	f, size, err := t.openFile(dateStr, suffix)
	if err != nil {
		return err
	}
	t.currentFile = f
	t.currentDate = dateStr
	t.currentSize = size
	t.currentSuffix = suffix
	return nil
}

// highestSuffix returns the highest existing suffix for a date, or 0.
func (t *FileTrail) highestSuffix(dateStr string) int {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return 0
	}
	highest := 0
	for _, e := range entries {
		info, ok := parseTrailFilename(e.Name())
		if !ok || info.date != dateStr {
			continue
		}
		if info.suffix > highest {
			highest = info.suffix
		}
	}
	return highest
}

func (t *FileTrail) openFile(dateStr string, suffix int) (*os.File, int64, error) {
	name := trailFilename(dateStr, suffix)
	f, err := os.OpenFile(filepath.Join(t.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, 0, fmt.Errorf("open file %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat file %s: %w", name, err)
	}
	return f, info.Size(), nil
}

func trailFilename(dateStr string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("decisions-%s.log", dateStr)
	}
	return fmt.Sprintf("decisions-%s-%d.log", dateStr, suffix)
}

// rotateDateLocked closes the current file and opens one for the new date.
// Must be called with t.mu held.
func (t *FileTrail) rotateDateLocked(dateStr string) error {
	if t.currentFile != nil {
		_ = t.currentFile.Sync()
		_ = t.currentFile.Close()
		t.currentFile = nil
	}
	t.currentSuffix = 0
	t.currentSize = 0
	t.currentDate = dateStr

	f, size, err := t.openFile(dateStr, 0)
	if err != nil {
		return err
	}
	t.currentFile = f
	t.currentSize = size
	return nil
}

// rotateSizeLocked closes the current file and opens one with the next
// suffix. Must be called with t.mu held.
func (t *FileTrail) rotateSizeLocked() error {
	if t.currentFile != nil {
		_ = t.currentFile.Sync()
		_ = t.currentFile.Close()
		t.currentFile = nil
	}
	t.currentSuffix++
	t.currentSize = 0

	f, size, err := t.openFile(t.currentDate, t.currentSuffix)
	if err != nil {
		return err
	}
	t.currentFile = f
	t.currentSize = size
	return nil
}

// runCleanup deletes trail files older than the retention period.
func (t *FileTrail) runCleanup() {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		t.logger.Error("trail cleanup: read directory", "dir", t.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -t.retentionDays)
	deleted := 0
	for _, e := range entries {
		info, ok := parseTrailFilename(e.Name())
		if !ok {
			continue
		}
		fileDate, err := time.Parse("2006-01-02", info.date)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(t.dir, e.Name())); err != nil {
				t.logger.Error("trail cleanup: delete file", "file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}
	if deleted > 0 {
		t.logger.Info("trail cleanup completed", "deleted", deleted)
	}
}

// cleanupLoop runs retention cleanup every hour until ctx is cancelled.
func (t *FileTrail) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runCleanup()
		}
	}
}

// recordCache is a fixed-size ring of the most recent records.
type recordCache struct {
	mu    sync.Mutex
	buf   []audit.Record
	next  int
	count int
}

func newRecordCache(size int) *recordCache {
	return &recordCache{buf: make([]audit.Record, size)}
}

func (c *recordCache) Add(rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[c.next] = rec
	c.next = (c.next + 1) % len(c.buf)
	if c.count < len(c.buf) {
		c.count++
	}
}

// Recent returns up to n records, newest first.
func (c *recordCache) Recent(n int) []audit.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.count {
		n = c.count
	}
	out := make([]audit.Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (c.next - i + len(c.buf)) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out
}

// Compile-time interface verification.
var _ audit.Trail = (*FileTrail)(nil)
