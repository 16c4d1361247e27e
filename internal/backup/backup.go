// Package backup writes consistent copies of the registry database.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
)

const (
	filePrefix = "armeria-"
	fileExt    = ".db"
	timeLayout = "20060102-150405.000"
)

// Result describes a written snapshot.
type Result struct {
	Path   string
	Size   int64
	Pruned []string
}

// HumanSize returns the snapshot size as "1.2 MB".
func (r *Result) HumanSize() string {
	return humanize.Bytes(uint64(r.Size))
}

// Snapshot copies the database into dir with VACUUM INTO and then keeps only
// the newest keep snapshots. keep <= 0 disables pruning.
func Snapshot(ctx context.Context, db *sql.DB, dir string, keep int) (*Result, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}

	path := filepath.Join(dir, filePrefix+time.Now().Format(timeLayout)+fileExt)
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("checking snapshot: %w", err)
	}

	pruned, err := Prune(dir, keep)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, Size: info.Size(), Pruned: pruned}, nil
}

// List returns the snapshots in dir, newest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	// Timestamps sort lexically.
	slices.Sort(files)
	slices.Reverse(files)
	return files, nil
}

// Prune removes all but the newest keep snapshots and returns the removed
// paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	files, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(files) <= keep {
		return nil, nil
	}

	var removed []string
	for _, f := range files[keep:] {
		if err := os.Remove(f); err != nil {
			return removed, fmt.Errorf("removing old snapshot: %w", err)
		}
		removed = append(removed, f)
	}
	return removed, nil
}

// Parser accepts five-field expressions and descriptors such as "@daily".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler takes snapshots on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	db      *sql.DB
	dir     string
	keep    int
	timeout time.Duration
}

// NewScheduler validates schedule and prepares a stopped scheduler.
func NewScheduler(db *sql.DB, schedule, dir string, keep int) (*Scheduler, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		db:      db,
		dir:     dir,
		keep:    keep,
		timeout: 10 * time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("backup scheduler started", "dir", s.dir, "next", s.Next())
}

// Stop halts the scheduler and waits for a running snapshot, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("backup still running at shutdown")
	}
}

// Next returns the time of the next snapshot.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := Snapshot(ctx, s.db, s.dir, s.keep)
	if err != nil {
		slog.Error("backup failed", "error", err)
		return
	}
	slog.Info("backup written", "path", res.Path, "size", res.HumanSize(), "pruned", len(res.Pruned))
}
