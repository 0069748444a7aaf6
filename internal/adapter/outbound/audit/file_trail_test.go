package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/cognefi/agentgate/internal/domain/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(principal, action, effect string) audit.Record {
	return audit.Record{
		Timestamp:    time.Now().UTC(),
		RequestID:    "req-1",
		PrincipalID:  principal,
		TenantID:     "t-1",
		ResourceKind: "agent",
		ResourceID:   "a-1",
		Action:       action,
		Effect:       effect,
		Reason:       "rule matched",
	}
}

func TestParseTrailFilename(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		wantOK     bool
		wantDate   string
		wantSuffix int
	}{
		{"plain daily file", "decisions-2026-09-01.log", true, "2026-09-01", 0},
		{"rotated file", "decisions-2026-09-01-3.log", true, "2026-09-01", 3},
		{"wrong prefix", "audit-2026-09-01.log", false, "", 0},
		{"missing date", "decisions-.log", false, "", 0},
		{"trailing garbage", "decisions-2026-09-01.log.bak", false, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := parseTrailFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseTrailFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if info.date != tt.wantDate || info.suffix != tt.wantSuffix {
				t.Errorf("parsed = %+v, want date %q suffix %d", info, tt.wantDate, tt.wantSuffix)
			}
		})
	}
}

func TestFileTrail_AppendWritesJSONLines(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()

	trail, err := NewFileTrail(TrailConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileTrail() error: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("u-%d", i), "run", "allow")
		if err := trail.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}
	if err := trail.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if err := trail.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	f, err := os.Open(filepath.Join(dir, "decisions-"+today+".log"))
	if err != nil {
		t.Fatalf("open trail file: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if rec.Effect != "allow" || rec.Action != "run" {
			t.Errorf("line %d = %+v, want allow/run", lines+1, rec)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("trail has %d lines, want 3", lines)
	}
}

func TestFileTrail_SizeRotation(t *testing.T) {
	dir := t.TempDir()

	trail, err := NewFileTrail(TrailConfig{Dir: dir, MaxFileSizeMB: 1}, testLogger())
	if err != nil {
		t.Fatalf("NewFileTrail() error: %v", err)
	}
	defer trail.Close()

	// Force the cap low enough that the second write rotates.
	trail.maxFileSize = 64

	ctx := context.Background()
	rec := testRecord("u-1", "run", "allow")
	rec.Reason = strings.Repeat("x", 100)
	for i := 0; i < 3; i++ {
		if err := trail.Append(ctx, rec); err != nil {
			t.Fatalf("Append() #%d error: %v", i, err)
		}
	}
	if err := trail.Flush(ctx); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("got %d trail files after rotation, want at least 2", len(entries))
	}
	for _, e := range entries {
		if _, ok := parseTrailFilename(e.Name()); !ok {
			t.Errorf("unexpected file in trail dir: %s", e.Name())
		}
	}
}

func TestFileTrail_RetentionCleanup(t *testing.T) {
	dir := t.TempDir()

	// Plant an expired file and a recent one.
	oldName := "decisions-" + time.Now().UTC().AddDate(0, 0, -60).Format("2006-01-02") + ".log"
	freshName := "decisions-" + time.Now().UTC().Format("2006-01-02") + ".log"
	for _, name := range []string{oldName, freshName} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0600); err != nil {
			t.Fatalf("plant %s: %v", name, err)
		}
	}

	trail, err := NewFileTrail(TrailConfig{Dir: dir, RetentionDays: 30}, testLogger())
	if err != nil {
		t.Fatalf("NewFileTrail() error: %v", err)
	}
	defer trail.Close()

	if _, err := os.Stat(filepath.Join(dir, oldName)); !os.IsNotExist(err) {
		t.Errorf("expired file %s survived cleanup", oldName)
	}
	if _, err := os.Stat(filepath.Join(dir, freshName)); err != nil {
		t.Errorf("fresh file %s removed by cleanup: %v", freshName, err)
	}
}

func TestFileTrail_ResumesHighestSuffix(t *testing.T) {
	dir := t.TempDir()
	today := time.Now().UTC().Format("2006-01-02")
	for _, name := range []string{
		"decisions-" + today + ".log",
		"decisions-" + today + "-2.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0600); err != nil {
			t.Fatalf("plant %s: %v", name, err)
		}
	}

	trail, err := NewFileTrail(TrailConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileTrail() error: %v", err)
	}
	defer trail.Close()

	if trail.currentSuffix != 2 {
		t.Errorf("currentSuffix = %d, want 2 (resume, not overwrite)", trail.currentSuffix)
	}
}

func TestRecordCache_RecentNewestFirst(t *testing.T) {
	c := newRecordCache(3)
	for i := 0; i < 5; i++ {
		c.Add(audit.Record{PrincipalID: fmt.Sprintf("u-%d", i)})
	}

	got := c.Recent(10)
	if len(got) != 3 {
		t.Fatalf("len(Recent) = %d, want 3 (ring capacity)", len(got))
	}
	want := []string{"u-4", "u-3", "u-2"}
	for i, rec := range got {
		if rec.PrincipalID != want[i] {
			t.Errorf("Recent[%d] = %s, want %s", i, rec.PrincipalID, want[i])
		}
	}
}

func TestFileTrail_RecentReflectsAppends(t *testing.T) {
	dir := t.TempDir()
	trail, err := NewFileTrail(TrailConfig{Dir: dir, CacheSize: 8}, testLogger())
	if err != nil {
		t.Fatalf("NewFileTrail() error: %v", err)
	}
	defer trail.Close()

	ctx := context.Background()
	_ = trail.Append(ctx, testRecord("u-1", "run", "allow"))
	_ = trail.Append(ctx, testRecord("u-2", "update", "deny"))

	recent := trail.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(recent))
	}
	if recent[0].PrincipalID != "u-2" || recent[0].Effect != "deny" {
		t.Errorf("Recent[0] = %+v, want the deny for u-2", recent[0])
	}
}
