package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

type captureSender struct {
	to, subject, html, plain string
}

func (c *captureSender) Send(to, subject, htmlBody, plainBody string) error {
	c.to, c.subject, c.html, c.plain = to, subject, htmlBody, plainBody
	return nil
}

func failedRecord() *types.PostRecord {
	return &types.PostRecord{
		ID:        12,
		Text:      "<b>bold</b> claim",
		Topic:     "Galatasaray",
		Persona:   "casual",
		Origin:    types.OriginAuto,
		Error:     "permanent (status 403): X API 403 Forbidden",
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestNotifyFailure(t *testing.T) {
	sender := &captureSender{}
	loc, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)

	n := New(sender, "ops@example.com", loc)
	require.NoError(t, n.NotifyFailure(failedRecord()))

	assert.Equal(t, "ops@example.com", sender.to)
	assert.Equal(t, "[trendpersona] Post failed: Galatasaray", sender.subject)
	assert.Contains(t, sender.plain, "Post #12 was not sent (2026-03-01 12:30 +03, auto, casual)")
	assert.Contains(t, sender.plain, "Error: permanent (status 403)")
	assert.Contains(t, sender.html, "&lt;b&gt;bold&lt;/b&gt; claim", "record text is escaped")
}

func TestNewFromConfigDisabled(t *testing.T) {
	n, err := NewFromConfig(config.EmailConfig{}, time.UTC)
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = NewFromConfig(config.EmailConfig{Provider: "pigeon", SMTPHost: "h", ToAddr: "a@b"}, time.UTC)
	assert.Error(t, err)
}

func TestBuildAlertWithoutTopic(t *testing.T) {
	rec := failedRecord()
	rec.Topic = ""
	alert, err := BuildAlert(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, "[trendpersona] Post failed", alert.Subject)
	assert.False(t, strings.Contains(alert.PlainBody, "Topic:"))
}
