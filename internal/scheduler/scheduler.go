package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

type entry struct {
	id       cron.EntryID
	schedule string
	job      Job
}

// Scheduler manages periodic tasks. A job whose previous run is still going
// skips the tick.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     map[string]entry
	timezone *time.Location
	timeout  time.Duration
	log      *logrus.Entry
}

// New creates a new scheduler with the given timezone and per-run timeout
func New(timezone string, timeout time.Duration, logger *logrus.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	log := logger.WithField("component", "scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]entry),
		timezone: loc,
		timeout:  timeout,
		log:      log,
	}, nil
}

// Location returns the scheduler's timezone
func (s *Scheduler) Location() *time.Location { return s.timezone }

// AddJob adds a job with a cron schedule
// schedule format: "0 7 * * *" (at 7:00 AM daily) or "@every 60m"
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(name, schedule, job)
}

func (s *Scheduler) addLocked(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, job); err != nil {
			s.log.WithError(err).WithField("job", name).Error("Job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.id)
	}
	s.jobs[name] = entry{id: entryID, schedule: schedule, job: job}
	s.log.WithFields(logrus.Fields{"job": name, "schedule": schedule}).Info("Added job")
	return nil
}

// AddEvery runs job every interval minutes, counted from now
func (s *Scheduler) AddEvery(name string, minutes int, job Job) error {
	if minutes < 1 {
		return fmt.Errorf("invalid interval for job %s: %d minutes", name, minutes)
	}
	return s.AddJob(name, fmt.Sprintf("@every %dm", minutes), job)
}

// Reschedule changes the interval of an existing AddEvery job
func (s *Scheduler) Reschedule(name string, minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("invalid interval for job %s: %d minutes", name, minutes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	schedule := fmt.Sprintf("@every %dm", minutes)
	if e.schedule == schedule {
		return nil
	}
	return s.addLocked(name, schedule, e.job)
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.jobs[name]; ok {
		s.cron.Remove(e.id)
		delete(s.jobs, name)
		s.log.WithField("job", name).Info("Removed job")
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("Stopping scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log := s.log.WithField("job", name)
	log.Debug("Starting job")
	start := time.Now()

	if err := job(ctx); err != nil {
		return err
	}
	log.WithField("duration", time.Since(start).String()).Debug("Job completed")
	return nil
}

// NextRun returns when the named job fires next, or zero
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(e.id).Next
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, e := range s.jobs {
		ce := s.cron.Entry(e.id)
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: e.schedule,
			NextRun:  ce.Next,
			LastRun:  ce.Prev,
		})
	}
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run"`
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
