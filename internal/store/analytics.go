package store

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DailyRate is the send outcome for one local calendar day
type DailyRate struct {
	Date  string  `json:"date"`
	Total int     `json:"total"`
	Sent  int     `json:"sent"`
	Rate  float64 `json:"rate"`
}

// Bucket is a labelled count
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Analytics summarizes recent activity for the dashboard
type Analytics struct {
	Days        []DailyRate `json:"days"`
	SuccessRate float64     `json:"success_rate"`
	Personas    []Bucket    `json:"personas"`
	Hourly      [24]int     `json:"hourly"`
	Topics      []Bucket    `json:"topics"`
}

const maxTopicBuckets = 10

// Analytics aggregates the last `days` local days ending today. Bucketing is
// done here rather than in SQL so hours and dates follow loc.
func (s *Store) Analytics(ctx context.Context, now time.Time, loc *time.Location, days int) (*Analytics, error) {
	if days < 1 {
		days = 1
	}
	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -(days - 1))

	end := first.AddDate(0, 0, days)

	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, sent, persona, topic FROM posts
		WHERE created_at >= ? AND created_at < ?
	`, formatTime(first), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	a := &Analytics{Days: make([]DailyRate, days)}
	index := make(map[string]int, days)
	for i := range a.Days {
		date := first.AddDate(0, 0, i).Format("2006-01-02")
		a.Days[i].Date = date
		index[date] = i
	}
	personas := map[string]int{}
	topics := map[string]int{}
	var total, sent int

	for rows.Next() {
		var (
			createdAt, persona, topic string
			ok                        bool
		)
		if err := rows.Scan(&createdAt, &ok, &persona, &topic); err != nil {
			return nil, err
		}
		t := parseTime(createdAt).In(loc)
		if i, found := index[t.Format("2006-01-02")]; found {
			a.Days[i].Total++
			if ok {
				a.Days[i].Sent++
			}
		}
		a.Hourly[t.Hour()]++
		total++
		if ok {
			sent++
		}
		if persona != "" {
			personas[persona]++
		}
		if topic != "" {
			topics[topic]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range a.Days {
		if a.Days[i].Total > 0 {
			a.Days[i].Rate = float64(a.Days[i].Sent) / float64(a.Days[i].Total)
		}
	}
	if total > 0 {
		a.SuccessRate = float64(sent) / float64(total)
	}
	a.Personas = sortedBuckets(personas, 0)
	a.Topics = sortedBuckets(topics, maxTopicBuckets)
	return a, nil
}

// sortedBuckets orders by count descending then label; limit 0 keeps all.
func sortedBuckets(counts map[string]int, limit int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for label, n := range counts {
		out = append(out, Bucket{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
