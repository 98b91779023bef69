// Package agent runs the fetch, classify, generate, post and record cycle
// and exposes the operator actions behind the dashboard.
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/generator"
	"github.com/ibeckermayer/trendpersona/internal/metrics"
	"github.com/ibeckermayer/trendpersona/internal/scheduler"
	"github.com/ibeckermayer/trendpersona/internal/store"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// CycleJob is the scheduler job name
const CycleJob = "cycle"

// notifyTimeout bounds one failure alert
const notifyTimeout = time.Minute

var (
	ErrBusy     = errors.New("a cycle is already in progress")
	ErrSleeping = errors.New("inside configured sleep hours")
	ErrStopped  = errors.New("agent is stopped")

	ErrAlreadySent = store.ErrAlreadySent
)

// Notifier is told about records that could not be sent
type Notifier interface {
	NotifyFailure(rec *types.PostRecord) error
}

// Options are the optional collaborators of an Agent
type Options struct {
	Build     BuildFunc
	Save      func(cfg *config.Config) error
	Notifier  Notifier
	Scheduler *scheduler.Scheduler
	Rand      *rand.Rand
	Now       func() time.Time
}

// Agent holds the application state.
type Agent struct {
	mu sync.RWMutex
	// Mutable fields - use getSnapshot() for concurrent access.
	config *config.Config
	comps  Components

	store     *store.Store
	build     BuildFunc
	save      func(cfg *config.Config) error
	notifier  Notifier
	scheduler *scheduler.Scheduler
	now       func() time.Time
	log       *logrus.Entry

	rngMu sync.Mutex
	rng   *rand.Rand

	running atomic.Bool
	busy    atomic.Bool
	cycleMu sync.Mutex

	stateMu     sync.Mutex
	cancelCycle context.CancelFunc
	lastResult  *types.CycleResult

	alerts sync.WaitGroup
}

// snapshot holds fields that may be replaced by ApplySettings.
type snapshot struct {
	config *config.Config
	comps  Components
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *Agent) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{config: a.config, comps: a.comps}
}

// New creates an Agent. cfg must already be valid.
func New(cfg *config.Config, st *store.Store, comps Components, opts Options, logger *logrus.Logger) *Agent {
	a := &Agent{
		config:    cfg,
		comps:     comps,
		store:     st,
		build:     opts.Build,
		save:      opts.Save,
		notifier:  opts.Notifier,
		scheduler: opts.Scheduler,
		now:       opts.Now,
		rng:       opts.Rand,
		log:       logger.WithField("component", "agent"),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if a.save == nil {
		a.save = func(cfg *config.Config) error { return cfg.Save() }
	}
	metrics.SetRunning(false)
	return a
}

// Config returns a copy of the active configuration
func (a *Agent) Config() *config.Config {
	return a.getSnapshot().config.Clone()
}

// Store returns the backing store
func (a *Agent) Store() *store.Store { return a.store }

// Schedule registers the cycle job with the scheduler
func (a *Agent) Schedule() error {
	if a.scheduler == nil {
		return fmt.Errorf("no scheduler configured")
	}
	return a.scheduler.AddEvery(CycleJob, a.getSnapshot().config.Agent.CycleMinutes, a.scheduledCycle)
}

// scheduledCycle is the scheduler entry point. Skips are not failures.
func (a *Agent) scheduledCycle(ctx context.Context) error {
	res, err := a.RunCycle(ctx)
	switch {
	case errors.Is(err, ErrStopped), errors.Is(err, ErrSleeping), errors.Is(err, ErrBusy),
		errors.Is(err, generator.ErrQuotaPaused):
		a.log.WithField("reason", err.Error()).Debug("Skipping scheduled cycle")
		return nil
	case errors.Is(err, ErrNotConfigured):
		a.log.WithError(err).Warn("Skipping scheduled cycle")
		return nil
	case err != nil:
		return err
	}
	a.log.WithFields(logrus.Fields{
		"cycle_id": res.CycleID,
		"sent":     res.Sent,
	}).Info("Scheduled cycle finished")
	return nil
}

// Start enables the scheduled loop
func (a *Agent) Start() {
	if !a.running.Swap(true) {
		a.log.Info("Agent started")
	}
	metrics.SetRunning(true)
}

// Stop disables the scheduled loop. A cycle already running finishes.
func (a *Agent) Stop() {
	if a.running.Swap(false) {
		a.log.Info("Agent stopped")
	}
	metrics.SetRunning(false)
}

// EmergencyStop disables the loop and cancels the cycle in flight
func (a *Agent) EmergencyStop() {
	a.Stop()
	a.stateMu.Lock()
	cancel := a.cancelCycle
	a.stateMu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.log.Warn("Emergency stop, in-flight cycle cancelled")
}

// Running reports whether the scheduled loop is enabled
func (a *Agent) Running() bool { return a.running.Load() }

// Busy reports whether a cycle or operator send is in progress
func (a *Agent) Busy() bool { return a.busy.Load() }

// Sleeping reports whether t falls inside the configured sleep hours
func (a *Agent) Sleeping(t time.Time) bool {
	hours := a.getSnapshot().config.Agent.SleepHours
	return slices.Contains(hours, t.In(a.location()).Hour())
}

// location returns the configured timezone
func (a *Agent) location() *time.Location {
	loc, err := time.LoadLocation(a.getSnapshot().config.Agent.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// lock takes the cycle lock without waiting
func (a *Agent) lock() (func(), error) {
	if !a.cycleMu.TryLock() {
		return nil, ErrBusy
	}
	a.busy.Store(true)
	return func() {
		a.busy.Store(false)
		a.cycleMu.Unlock()
	}, nil
}

// ApplySettings validates and saves a settings change, rebuilds the
// components and reschedules the loop when the cycle length changed.
func (a *Agent) ApplySettings(ctx context.Context, s config.Settings) (*config.Config, error) {
	current := a.getSnapshot()
	next, err := current.config.ApplySettings(s)
	if err != nil {
		return nil, err
	}

	comps := current.comps
	if a.build != nil {
		comps, err = a.build(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("failed to apply settings: %w", err)
		}
	}
	if err := a.save(next); err != nil {
		if a.build != nil {
			comps.close(a.log)
		}
		return nil, fmt.Errorf("failed to save config: %w", err)
	}

	a.mu.Lock()
	a.config = next
	a.comps = comps
	a.mu.Unlock()
	if a.build != nil {
		current.comps.close(a.log)
	}

	if a.scheduler != nil && next.Agent.CycleMinutes != current.config.Agent.CycleMinutes {
		if err := a.scheduler.Reschedule(CycleJob, next.Agent.CycleMinutes); err != nil {
			a.log.WithError(err).Warn("Failed to reschedule cycle")
		}
	}

	a.log.Info("Configuration updated")
	return next.Clone(), nil
}

// Close unregisters the cycle job, waits for pending failure alerts and
// releases component resources
func (a *Agent) Close() {
	if a.scheduler != nil {
		a.scheduler.RemoveJob(CycleJob)
	}
	a.alerts.Wait()
	a.getSnapshot().comps.close(a.log)
}
