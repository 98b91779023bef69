// Package trends scrapes the trending topic listing and picks a topic for a cycle.
package trends

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

// Fetcher turns a Source into a short, filtered trend list
type Fetcher struct {
	source Source
	scan   int
	limit  int
	log    *logrus.Entry
}

// New creates a Fetcher that scans `scan` rows and keeps `limit` trends
func New(source Source, scan, limit int, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		scan:   scan,
		limit:  limit,
		log:    logger.WithField("component", "trends"),
	}
}

// Source returns the underlying page source
func (f *Fetcher) Source() Source { return f.source }

// Top fetches the listing and returns up to limit Latin-script trends,
// renumbered from 1.
func (f *Fetcher) Top(ctx context.Context) ([]types.Trend, error) {
	page, err := f.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	all, err := Parse(bytes.NewReader(page), f.scan)
	if err != nil {
		return nil, err
	}

	var out []types.Trend
	for _, t := range all {
		if !LatinScript(t.Name) {
			f.log.WithField("trend", t.Name).Debug("Skipping non-Latin trend")
			continue
		}
		t.Rank = len(out) + 1
		out = append(out, t)
		if len(out) == f.limit {
			break
		}
	}

	f.log.WithFields(logrus.Fields{
		"url":     f.source.URL(),
		"scanned": len(all),
		"kept":    len(out),
	}).Info("Fetched trends")
	return out, nil
}

// Pick chooses one trend uniformly at random
func Pick(trends []types.Trend, rng *rand.Rand) (types.Trend, bool) {
	if len(trends) == 0 {
		return types.Trend{}, false
	}
	return trends[rng.IntN(len(trends))], true
}

// Format renders trends one per line
func Format(trends []types.Trend) string {
	lines := make([]string, len(trends))
	for i, t := range trends {
		lines[i] = t.String()
	}
	return strings.Join(lines, "\n")
}
