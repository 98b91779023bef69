// Package notifier emails the operator when a post fails permanently.
package notifier

import (
	"fmt"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/notifier/providers"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

// Notifier handles sending failure notifications
type Notifier struct {
	sender Sender
	to     string
	loc    *time.Location
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a new notifier with the given sender
func New(sender Sender, to string, loc *time.Location) *Notifier {
	return &Notifier{sender: sender, to: to, loc: loc}
}

// NewFromConfig creates a notifier based on configuration. It returns nil
// without error when email is not configured.
func NewFromConfig(cfg config.EmailConfig, loc *time.Location) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var sender Sender
	switch cfg.Provider {
	case "smtp", "":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddr, loc), nil
}

// NotifyFailure sends an alert for a record that was not sent
func (n *Notifier) NotifyFailure(rec *types.PostRecord) error {
	alert, err := BuildAlert(rec, n.loc)
	if err != nil {
		return err
	}
	return n.sender.Send(n.to, alert.Subject, alert.HTMLBody, alert.PlainBody)
}
