package types

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Category is the persona label a topic is classified into
type Category string

const (
	CategoryTech   Category = "tech"
	CategoryCasual Category = "casual"
	CategorySad    Category = "sad"
)

// DefaultCategory is used whenever classification fails or is ambiguous.
const DefaultCategory = CategoryCasual

// Categories lists every classification target in prompt order.
var Categories = []Category{CategoryTech, CategoryCasual, CategorySad}

// ParseCategory reads the first word of an LLM answer and maps it to a Category.
func ParseCategory(s string) (Category, bool) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return "", false
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, c := range Categories {
		if word == string(c) {
			return c, true
		}
	}
	return "", false
}

// Origin records what created a post record
type Origin string

const (
	OriginAuto   Origin = "auto"
	OriginManual Origin = "manual"
	OriginForced Origin = "forced"
)

// Trend is one row of the trend listing
type Trend struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count string `json:"count"`
}

func (t Trend) String() string {
	return fmt.Sprintf("%d. %s (%s Tweets) URL: %s", t.Rank, t.Name, t.Count, t.URL)
}

// PostRecord is a persisted outcome of one post attempt
type PostRecord struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	Topic      string    `json:"topic"`
	Persona    string    `json:"persona"`
	Origin     Origin    `json:"origin"`
	Sent       bool      `json:"sent"`
	RemoteID   string    `json:"remote_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// PromptTemplate is a persona's generation prompt
type PromptTemplate struct {
	Persona     string    `json:"persona"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PersonaSetting is a key/value used to fill prompt placeholders
type PersonaSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CycleResult summarizes one fetch-classify-generate-post-record iteration
type CycleResult struct {
	CycleID   string        `json:"cycle_id"`
	Origin    Origin        `json:"origin"`
	Topic     string        `json:"topic"`
	Persona   Category      `json:"persona"`
	Text      string        `json:"text"`
	Sent      bool          `json:"sent"`
	RemoteID  string        `json:"remote_id,omitempty"`
	RecordID  int64         `json:"record_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
