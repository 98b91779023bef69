package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

// Alert is a rendered failure notification
type Alert struct {
	Subject   string
	HTMLBody  string
	PlainBody string
}

// alertData is the template data structure
type alertData struct {
	ID         int64
	Topic      string
	Persona    string
	Origin     string
	Text       string
	Error      string
	RetryCount int
	Time       string
}

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #b42318;">Post #{{.ID}} was not sent</h2>
  <p style="color: #666;">{{.Time}} &middot; {{.Origin}} &middot; {{.Persona}}</p>
  {{if .Topic}}<p><strong>Topic:</strong> {{.Topic}}</p>{{end}}
  <blockquote style="border-left: 3px solid #ddd; margin: 0; padding-left: 12px;">{{.Text}}</blockquote>
  <p><strong>Error:</strong> {{.Error}}</p>
  {{if .RetryCount}}<p>Retried {{.RetryCount}} time(s).</p>{{end}}
  <p style="color: #999; font-size: 12px;">Retry or delete it from the dashboard.</p>
</body>
</html>`))

// BuildAlert renders the notification for a failed post record
func BuildAlert(rec *types.PostRecord, loc *time.Location) (*Alert, error) {
	if loc == nil {
		loc = time.UTC
	}
	data := alertData{
		ID:         rec.ID,
		Topic:      rec.Topic,
		Persona:    rec.Persona,
		Origin:     string(rec.Origin),
		Text:       rec.Text,
		Error:      rec.Error,
		RetryCount: rec.RetryCount,
		Time:       rec.CreatedAt.In(loc).Format("2006-01-02 15:04 MST"),
	}

	var html bytes.Buffer
	if err := alertTemplate.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render alert: %w", err)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "Post #%d was not sent (%s, %s, %s)\n\n", data.ID, data.Time, data.Origin, data.Persona)
	if data.Topic != "" {
		fmt.Fprintf(&plain, "Topic: %s\n", data.Topic)
	}
	fmt.Fprintf(&plain, "Text: %s\n", data.Text)
	fmt.Fprintf(&plain, "Error: %s\n", data.Error)

	subject := "[trendpersona] Post failed"
	if data.Topic != "" {
		subject += ": " + data.Topic
	}

	return &Alert{
		Subject:   subject,
		HTMLBody:  html.String(),
		PlainBody: plain.String(),
	}, nil
}
