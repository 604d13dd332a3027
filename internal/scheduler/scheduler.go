// Package scheduler runs pipeline jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/logging"
)

// DefaultJobTimeout bounds one scheduled run.
const DefaultJobTimeout = 2 * time.Hour

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	logger   *zap.Logger
	timezone *time.Location
	timeout  time.Duration

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a new scheduler with the given timezone. Overlapping runs of
// the same job are skipped; the seen-set assumes a single writer.
func New(timezone string, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	logger = logging.OrNop(logger).Named("scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
	)

	return &Scheduler{
		cron:     c,
		logger:   logger,
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		timeout:  DefaultJobTimeout,
	}, nil
}

// AddJob adds a job with a cron schedule
// schedule format: "0 7 * * *" (at 7:00 AM daily)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.runJob(context.Background(), name, job); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = entryID
	s.mu.Unlock()

	s.logger.Info("added job", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// AddScrapeJob schedules the pipeline run. A non-empty cron spec wins over
// the hourly interval.
func (s *Scheduler) AddScrapeJob(cronSpec string, intervalHours int, job Job) error {
	schedule, err := ScrapeSchedule(cronSpec, intervalHours)
	if err != nil {
		return err
	}
	return s.AddJob("scrape", schedule, job)
}

// ScrapeSchedule turns the schedule config into a cron spec.
func ScrapeSchedule(cronSpec string, intervalHours int) (string, error) {
	if cronSpec != "" {
		if _, err := cron.ParseStandard(cronSpec); err != nil {
			return "", fmt.Errorf("invalid cron spec %q: %w", cronSpec, err)
		}
		return cronSpec, nil
	}
	if intervalHours <= 0 || intervalHours > 24 {
		return "", fmt.Errorf("interval_hours must be between 1 and 24, got %d", intervalHours)
	}
	return fmt.Sprintf("0 */%d * * *", intervalHours), nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("removed job", zap.String("job", name))
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.String("timezone", s.timezone.String()))
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.runJob(ctx, name, job)
}

func (s *Scheduler) runJob(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("starting job", zap.String("job", name))
	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Info("job completed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run"`
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Infow(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
