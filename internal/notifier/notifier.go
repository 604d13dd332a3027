// Package notifier delivers idea digests.
package notifier

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/ideaminer/internal/config"
	"github.com/ibeckermayer/ideaminer/internal/digest"
	"github.com/ibeckermayer/ideaminer/internal/notifier/providers"
)

// ErrNotConfigured means the email section lacks a host or recipient.
var ErrNotConfigured = errors.New("email is not configured")

// Notifier handles sending digest notifications
type Notifier struct {
	sender Sender
	to     string
}

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// New creates a notifier that sends to one recipient.
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	if cfg.SMTPHost == "" || cfg.ToAddr == "" {
		return nil, ErrNotConfigured
	}

	var sender Sender
	switch cfg.Provider {
	case "", "smtp":
		from := cfg.FromAddr
		if from == "" {
			from = cfg.SMTPUser
		}
		sender = providers.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, from)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddr), nil
}

// SendDigest sends a digest email
func (n *Notifier) SendDigest(d *digest.Digest) error {
	if d == nil {
		return digest.ErrNoIdeas
	}
	return n.sender.Send(n.to, d.Subject, d.HTMLBody, d.PlainBody)
}
