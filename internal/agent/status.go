package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/trendpersona/internal/generator/providers"
	"github.com/ibeckermayer/trendpersona/internal/store"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// Status is the dashboard summary
type Status struct {
	Running      bool               `json:"running"`
	Sleeping     bool               `json:"sleeping"`
	Busy         bool               `json:"busy"`
	NextRun      *time.Time         `json:"next_run,omitempty"`
	LastResult   *types.CycleResult `json:"last_result,omitempty"`
	QuotaPaused  bool               `json:"quota_paused"`
	QuotaUntil   *time.Time         `json:"quota_until,omitempty"`
	Stats        *store.Stats       `json:"stats"`
	Timezone     string             `json:"timezone"`
	LocalTime    string             `json:"local_time"`
	CycleMinutes int                `json:"cycle_minutes"`
	SleepHours   []int              `json:"sleep_hours"`
	XConfigured  bool               `json:"x_configured"`
	Provider     string             `json:"ai_provider"`
	Model        string             `json:"ai_model"`
}

// Status collects the agent state and post counters
func (a *Agent) Status(ctx context.Context) (*Status, error) {
	s := a.getSnapshot()
	now := a.now()
	loc := a.location()

	stats, err := a.store.Stats(ctx, now, loc)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Running:      a.Running(),
		Sleeping:     a.Sleeping(now),
		Busy:         a.Busy(),
		LastResult:   a.LastResult(),
		Stats:        stats,
		Timezone:     loc.String(),
		LocalTime:    now.In(loc).Format("2006-01-02 15:04:05"),
		CycleMinutes: s.config.Agent.CycleMinutes,
		SleepHours:   append([]int(nil), s.config.Agent.SleepHours...),
		XConfigured:  s.config.XReady(),
		Provider:     s.config.LLM.Provider,
		Model:        s.config.LLM.Model,
	}

	if a.scheduler != nil {
		if next := a.scheduler.NextRun(CycleJob); !next.IsZero() {
			st.NextRun = &next
		}
	}
	if s.comps.Writer != nil {
		if paused, until := s.comps.Writer.QuotaPaused(); paused {
			st.QuotaPaused = true
			st.QuotaUntil = &until
		}
	}
	return st, nil
}

// ServiceCheck is the result of probing one dependency
type ServiceCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CheckServices probes X, the LLM, the trend source and the database
// concurrently. Individual failures are reported, not returned.
func (a *Agent) CheckServices(ctx context.Context) ([]ServiceCheck, error) {
	s := a.getSnapshot()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	probes := map[string]func(ctx context.Context) (string, error){
		"database": func(ctx context.Context) (string, error) {
			return "sqlite", a.store.Ping(ctx)
		},
		"trends": func(ctx context.Context) (string, error) {
			if s.comps.Trends == nil {
				return "", errors.New("not configured")
			}
			list, err := s.comps.Trends.Top(ctx)
			return fmt.Sprintf("%d trends", len(list)), err
		},
		"x": func(ctx context.Context) (string, error) {
			if !s.config.XReady() {
				return "", errors.New("credentials not configured")
			}
			user, err := s.comps.Publisher.Verify(ctx)
			if err != nil {
				return "", err
			}
			return "@" + user.Username, nil
		},
		"llm": func(ctx context.Context) (string, error) {
			if s.comps.LLM == nil {
				return "", errors.New("not configured")
			}
			_, err := s.comps.LLM.Complete(ctx, providers.Request{
				Kind:        "ping",
				Prompt:      "Reply with OK.",
				Temperature: 0,
				MaxTokens:   8,
			})
			return s.comps.LLM.Name() + "/" + s.comps.LLM.Model(), err
		},
	}

	var (
		mu      sync.Mutex
		results []ServiceCheck
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, probe := range probes {
		g.Go(func() error {
			start := time.Now()
			detail, err := probe(gctx)
			check := ServiceCheck{
				Name:      name,
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
				Detail:    detail,
			}
			if err != nil {
				check.Error = err.Error()
			}
			mu.Lock()
			results = append(results, check)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// Analytics aggregates the last days of history in the configured timezone
func (a *Agent) Analytics(ctx context.Context, days int) (*store.Analytics, error) {
	return a.store.Analytics(ctx, a.now(), a.location(), days)
}
