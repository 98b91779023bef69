package agent

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/generator"
	"github.com/ibeckermayer/trendpersona/internal/metrics"
	"github.com/ibeckermayer/trendpersona/internal/poster"
	"github.com/ibeckermayer/trendpersona/internal/retry"
	"github.com/ibeckermayer/trendpersona/internal/tweet"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// ManualPersona labels operator-written records
const ManualPersona = "manual"

// ManualPost sanitizes, validates, posts and records operator text. A
// validation failure creates no record; a send failure does.
func (a *Agent) ManualPost(ctx context.Context, text string) (*types.PostRecord, error) {
	s := a.getSnapshot()
	text = tweet.Sanitize(text)
	if err := tweet.Validate(text, s.config.X.MaxLength); err != nil {
		return nil, err
	}

	unlock, err := a.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return a.send(ctx, s, text, "", ManualPersona, types.OriginManual)
}

// Enhance rewrites draft text in a persona's voice without posting it
func (a *Agent) Enhance(ctx context.Context, text string, persona types.Category) (*generator.Result, error) {
	if err := tweet.Validate(tweet.Sanitize(text), tweet.MaxRawLength); err != nil {
		return nil, err
	}
	return a.getSnapshot().comps.Writer.Enhance(ctx, text, persona)
}

// Retry re-posts the stored text of an unsent record and updates its retry
// fields. The post error, if any, is returned with the updated record.
func (a *Agent) Retry(ctx context.Context, id int64) (*types.PostRecord, error) {
	unlock, err := a.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return a.retryLocked(ctx, a.getSnapshot(), id)
}

func (a *Agent) retryLocked(ctx context.Context, s snapshot, id int64) (*types.PostRecord, error) {
	rec, err := a.store.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Sent {
		return rec, ErrAlreadySent
	}

	remoteID, postErr := s.comps.Publisher.Post(ctx, rec.Text)
	if errors.Is(postErr, ErrNotConfigured) {
		return nil, postErr
	}
	metrics.Posts.WithLabelValues("retry", metrics.Outcome(postErr)).Inc()
	if err := a.store.MarkRetried(context.WithoutCancel(ctx), id, remoteID, postErr); err != nil {
		return nil, err
	}

	updated, err := a.store.GetPost(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, err
	}

	log := a.log.WithFields(logrus.Fields{"record_id": id, "retry_count": updated.RetryCount})
	if postErr != nil {
		log.WithError(postErr).Warn("Retry failed")
		return updated, postErr
	}
	log.WithField("remote_id", remoteID).Info("Retry sent")
	return updated, nil
}

// BulkResult summarizes a BulkRetry
type BulkResult struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	Aborted   bool     `json:"aborted,omitempty"`
}

// stopsBulk reports whether a retry error will repeat for every remaining
// record. Duplicate content is specific to one record.
func stopsBulk(err error) bool {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return true
	case errors.Is(err, poster.ErrDuplicate):
		return false
	}
	return retry.IsPermanent(err) || retry.KindOf(err) == retry.KindRateLimited
}

// BulkRetry retries up to limit failed records, oldest first, waiting gap
// between sends. It stops early when ctx is done or when an error would
// fail every remaining record too.
func (a *Agent) BulkRetry(ctx context.Context, limit int, gap time.Duration) (*BulkResult, error) {
	unlock, err := a.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	failed, err := a.store.FailedPosts(ctx, limit)
	if err != nil {
		return nil, err
	}

	s := a.getSnapshot()
	out := &BulkResult{}
	for i, rec := range failed {
		if i > 0 && gap > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(gap):
			}
		}

		out.Attempted++
		if _, err := a.retryLocked(ctx, s, rec.ID); err != nil {
			out.Failed++
			out.Errors = append(out.Errors, err.Error())
			if stopsBulk(err) {
				a.log.WithError(err).Warn("Bulk retry aborted")
				out.Aborted = true
				break
			}
			continue
		}
		out.Succeeded++
	}

	a.log.WithFields(logrus.Fields{
		"attempted": out.Attempted,
		"succeeded": out.Succeeded,
	}).Info("Bulk retry finished")
	return out, nil
}
