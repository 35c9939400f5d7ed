package export

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Backuper writes snapshots of a store to a directory.
type Backuper struct {
	src      Source
	dir      string
	compress bool
	loc      *time.Location
	now      func() time.Time
}

// NewBackuper creates a Backuper. A nil loc means time.Local; it decides the
// date in the file name.
func NewBackuper(src Source, dir string, compress bool, loc *time.Location) *Backuper {
	if loc == nil {
		loc = time.Local
	}
	return &Backuper{src: src, dir: dir, compress: compress, loc: loc, now: time.Now}
}

// Backup takes a snapshot and writes it to disk, returning the file path.
func (b *Backuper) Backup(ctx context.Context) (string, error) {
	snap, err := Collect(ctx, b.src, b.now().In(b.loc))
	if err != nil {
		return "", err
	}
	return WriteFile(b.dir, snap, b.compress)
}

// Scheduler runs Backup on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	backup  *Backuper
	lg      *zap.Logger
	timeout time.Duration
}

// NewScheduler validates schedule and registers the backup job. It accepts
// an optional seconds field and descriptors such as "@daily".
func NewScheduler(schedule string, b *Backuper, lg *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(b.loc),
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{lg: lg}), cron.Recover(cronLogger{lg: lg})),
		),
		backup:  b,
		lg:      lg,
		timeout: 5 * time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, errors.Wrapf(err, "parse backup schedule %q", schedule)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	path, err := s.backup.Backup(ctx)
	if err != nil {
		s.lg.Error("Scheduled backup failed", zap.Error(err))
		return
	}
	s.lg.Info("Scheduled backup written",
		zap.String("path", path),
		zap.Duration("took", time.Since(start)),
	)
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running backup until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	lg *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.lg.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
