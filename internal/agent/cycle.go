package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/generator"
	"github.com/ibeckermayer/trendpersona/internal/metrics"
	"github.com/ibeckermayer/trendpersona/internal/retry"
	"github.com/ibeckermayer/trendpersona/internal/store"
	"github.com/ibeckermayer/trendpersona/internal/trends"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// RunCycle is the scheduled cycle: it does nothing while stopped, during
// sleep hours or while generation is paused for quota.
func (a *Agent) RunCycle(ctx context.Context) (*types.CycleResult, error) {
	if !a.Running() {
		return nil, ErrStopped
	}
	if a.Sleeping(a.now()) {
		metrics.Cycles.WithLabelValues("skipped").Inc()
		return nil, ErrSleeping
	}
	if paused, until := a.getSnapshot().comps.Writer.QuotaPaused(); paused {
		metrics.Cycles.WithLabelValues("skipped").Inc()
		return nil, fmt.Errorf("%w until %s", generator.ErrQuotaPaused, until.Format(time.RFC3339))
	}
	return a.cycle(ctx, types.OriginAuto)
}

// ForcePost runs a cycle immediately, ignoring the run flag and sleep hours
func (a *Agent) ForcePost(ctx context.Context) (*types.CycleResult, error) {
	return a.cycle(ctx, types.OriginForced)
}

// Trends returns the current filtered trend list
func (a *Agent) Trends(ctx context.Context) ([]types.Trend, error) {
	return a.getSnapshot().comps.Trends.Top(ctx)
}

func (a *Agent) cycle(ctx context.Context, origin types.Origin) (*types.CycleResult, error) {
	unlock, err := a.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.stateMu.Lock()
	a.cancelCycle = cancel
	a.stateMu.Unlock()
	defer func() {
		cancel()
		a.stateMu.Lock()
		a.cancelCycle = nil
		a.stateMu.Unlock()
	}()

	s := a.getSnapshot()
	res := &types.CycleResult{
		CycleID:   uuid.NewString(),
		Origin:    origin,
		StartedAt: a.now(),
	}
	log := a.log.WithFields(logrus.Fields{"cycle_id": res.CycleID, "origin": origin})
	log.Info("Cycle started")

	err = a.runSteps(ctx, s, res, log)

	res.Duration = a.now().Sub(res.StartedAt)
	if err != nil {
		res.Error = err.Error()
	}
	a.finish(res, s.config.Debug.SaveArtifacts, log)
	return res, err
}

func (a *Agent) runSteps(ctx context.Context, s snapshot, res *types.CycleResult, log *logrus.Entry) error {
	// Step 1: pick a topic
	res.Topic = a.pickTopic(ctx, s, log)

	// Step 2: classify and generate
	gen, err := s.comps.Writer.Generate(ctx, res.Topic)
	if err != nil {
		log.WithError(err).Error("Generation failed")
		return err
	}
	res.Persona = gen.Persona
	res.Text = gen.Text

	// Step 3: post and record
	rec, postErr := a.send(ctx, s, gen.Text, res.Topic, string(gen.Persona), res.Origin)
	if rec != nil {
		res.RecordID = rec.ID
	}
	if postErr != nil {
		return postErr
	}
	res.Sent = true
	res.RemoteID = rec.RemoteID
	return nil
}

// pickTopic returns a random current trend, or the fallback topic when
// the trend source fails or is empty.
func (a *Agent) pickTopic(ctx context.Context, s snapshot, log *logrus.Entry) string {
	list, err := s.comps.Trends.Top(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch trends, using fallback topic")
	} else if s.config.Debug.SaveArtifacts {
		if path, err := store.SaveArtifact(store.StepTrends, list); err != nil {
			log.WithError(err).Warn("Failed to cache trends")
		} else {
			log.WithField("path", path).Debug("Cached trends")
		}
	}

	a.rngMu.Lock()
	trend, ok := trends.Pick(list, a.rng)
	a.rngMu.Unlock()
	if !ok {
		log.Info("No trends available, using fallback topic")
		return s.config.Agent.FallbackTopic
	}

	log.WithFields(logrus.Fields{"rank": trend.Rank, "topic": trend.Name}).Info("Picked trend")
	return trend.Name
}

// send posts text and records the outcome. The record is returned even
// when posting failed.
func (a *Agent) send(ctx context.Context, s snapshot, text, topic, persona string, origin types.Origin) (*types.PostRecord, error) {
	remoteID, postErr := s.comps.Publisher.Post(ctx, text)
	if errors.Is(postErr, ErrNotConfigured) {
		return nil, postErr
	}
	metrics.Posts.WithLabelValues(string(origin), metrics.Outcome(postErr)).Inc()

	rec := &types.PostRecord{
		Text:     text,
		Topic:    topic,
		Persona:  persona,
		Origin:   origin,
		Sent:     postErr == nil,
		RemoteID: remoteID,
	}
	if postErr != nil {
		rec.Error = postErr.Error()
	}

	// record even if the caller's context was cancelled mid-post
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.store.SavePost(saveCtx, rec); err != nil {
		a.log.WithError(err).Error("Failed to record post")
		if postErr != nil {
			return nil, postErr
		}
		return nil, fmt.Errorf("posted %s but failed to record it: %w", remoteID, err)
	}

	log := a.log.WithFields(logrus.Fields{"record_id": rec.ID, "origin": origin})
	if postErr != nil {
		log.WithError(postErr).WithField("kind", retry.KindOf(postErr).String()).Error("Post failed")
		a.notify(rec)
		return rec, postErr
	}
	log.WithField("remote_id", remoteID).Info("Post sent")
	return rec, nil
}

// notify sends the failure alert in the background. The caller may hold
// the cycle lock; the alert never does.
func (a *Agent) notify(rec *types.PostRecord) {
	if a.notifier == nil {
		return
	}
	cp := *rec
	log := a.log.WithField("record_id", cp.ID)

	a.alerts.Add(1)
	go func() {
		defer a.alerts.Done()
		done := make(chan error, 1)
		go func() { done <- a.notifier.NotifyFailure(&cp) }()

		select {
		case err := <-done:
			if err != nil {
				log.WithError(err).Warn("Failed to send failure notification")
			}
		case <-time.After(notifyTimeout):
			log.WithField("timeout", notifyTimeout.String()).Warn("Failure notification timed out")
		}
	}()
}

func (a *Agent) finish(res *types.CycleResult, saveArtifact bool, log *logrus.Entry) {
	outcome := "posted"
	if !res.Sent {
		outcome = "failed"
	}
	metrics.Cycles.WithLabelValues(outcome).Inc()
	metrics.CycleDuration.Observe(res.Duration.Seconds())

	a.stateMu.Lock()
	a.lastResult = res
	a.stateMu.Unlock()

	if saveArtifact {
		if path, err := store.SaveArtifact(store.StepCycle, res); err != nil {
			log.WithError(err).Warn("Failed to cache cycle result")
		} else {
			log.WithField("path", path).Debug("Cached cycle result")
		}
	}

	log.WithFields(logrus.Fields{
		"topic":    res.Topic,
		"persona":  res.Persona,
		"sent":     res.Sent,
		"duration": res.Duration.String(),
	}).Info("Cycle finished")
}

// LastResult returns the most recent cycle result, if any
func (a *Agent) LastResult() *types.CycleResult {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.lastResult == nil {
		return nil
	}
	cp := *a.lastResult
	return &cp
}
