// Package scheduler runs soko's housekeeping jobs on cron schedules.
//
// Jobs are in-process and idempotent: a job that is still running when its
// next slot comes up is skipped for that slot rather than run twice.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jkaninda/soko/internal/security"
)

// DefaultPollInterval is how often due jobs are checked.
const DefaultPollInterval = 30 * time.Second

// Job is a named housekeeping task. Run returns the number of rows it
// touched.
type Job struct {
	Name string
	Spec string // five-field cron expression
	Run  func(ctx context.Context) (int64, error)
}

type entry struct {
	job      Job
	schedule cron.Schedule
	next     time.Time
	running  bool
}

// Scheduler fires jobs whose next run time has passed.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	auditor security.Auditor // nil = no audit trail
	metrics *Metrics
	logger  *slog.Logger
	parser  cron.Parser
	poll    time.Duration
	now     func() time.Time
}

// New creates a Scheduler.
func New(metrics *Metrics, auditor security.Auditor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		auditor: auditor,
		metrics: metrics,
		logger:  logger,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		poll:    DefaultPollInterval,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Add registers a job. Invalid cron expressions are rejected.
func (s *Scheduler) Add(job Job) error {
	schedule, err := s.parser.Parse(job.Spec)
	if err != nil {
		return fmt.Errorf("job %q: invalid cron expression %q: %w", job.Name, job.Spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{
		job:      job,
		schedule: schedule,
		next:     schedule.Next(s.now()),
	})
	return nil
}

// Next returns the next run time of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.job.Name == name {
			return e.next, true
		}
	}
	return time.Time{}, false
}

// Start begins the scheduler loop. Returns a cancel function.
func (s *Scheduler) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		s.logger.InfoContext(ctx, "housekeeping scheduler started",
			slog.String("poll_interval", s.poll.String()),
			slog.Int("jobs", len(s.entries)),
		)

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("housekeeping scheduler stopped")
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()

	return cancel
}

// Tick runs every job that is due and waits for them to finish. Returns
// the number of jobs fired.
func (s *Scheduler) Tick(ctx context.Context) int {
	start := time.Now()
	now := s.now()

	var due []*entry
	s.mu.Lock()
	for _, e := range s.entries {
		if e.running || now.Before(e.next) {
			continue
		}
		e.running = true
		e.next = e.schedule.Next(now)
		due = append(due, e)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range due {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.fire(ctx, e.job)
			s.mu.Lock()
			e.running = false
			s.mu.Unlock()
		}(e)
	}
	wg.Wait()

	if s.metrics != nil {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
	return len(due)
}

func (s *Scheduler) fire(ctx context.Context, job Job) {
	correlationID := security.NewCorrelationID()
	logger := s.logger.With(
		slog.String("job", job.Name),
		slog.String("correlation_id", correlationID),
	)
	if s.metrics != nil {
		s.metrics.JobsFired.WithLabelValues(job.Name).Inc()
	}

	n, err := s.run(ctx, job)

	event := security.AuditEvent{
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		PrincipalID:   "scheduler",
		Action:        "housekeeping." + job.Name,
		Result:        "success",
	}
	if err != nil {
		event.Result = "failure"
		event.Error = err.Error()
		logger.ErrorContext(ctx, "housekeeping job failed", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.JobsFailed.WithLabelValues(job.Name).Inc()
		}
	} else {
		logger.InfoContext(ctx, "housekeeping job finished", slog.Int64("rows", n))
		if s.metrics != nil {
			s.metrics.JobsSucceeded.WithLabelValues(job.Name).Inc()
			s.metrics.RowsRemoved.WithLabelValues(job.Name).Add(float64(n))
		}
	}
	if s.auditor != nil {
		if aerr := s.auditor.LogAction(ctx, event); aerr != nil {
			logger.ErrorContext(ctx, "writing audit event", slog.String("error", aerr.Error()))
		}
	}
}

// run calls the job, converting a panic into an error.
func (s *Scheduler) run(ctx context.Context, job Job) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}
