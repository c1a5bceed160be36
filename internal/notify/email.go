package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lambda-janitor/internal/janitor"
	"lambda-janitor/internal/shared/telemetry"
)

// Email is a rendered message ready for delivery.
type Email struct {
	From     string
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers a rendered email.
type Mailer interface {
	SendEmail(ctx context.Context, email Email) (messageID string, err error)
}

// Emailer renders notification batches and hands them to a Mailer.
type Emailer struct {
	mailer Mailer
}

// NewEmailer wraps a Mailer.
func NewEmailer(mailer Mailer) *Emailer {
	return &Emailer{mailer: mailer}
}

// Notify sends one email for the batch. Batches without warned versions are ignored.
func (e *Emailer) Notify(ctx context.Context, batch janitor.NotificationBatch) error {
	if len(batch.Warned) == 0 {
		return nil
	}
	if e.mailer == nil {
		return errors.New("notify: mailer is not configured")
	}
	if strings.TrimSpace(batch.Sender) == "" || len(batch.Recipients) == 0 {
		return errors.New("notify: sender and recipients are required")
	}

	email, err := Render(batch)
	if err != nil {
		return err
	}

	messageID, err := e.mailer.SendEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("send cleanup email: %w", err)
	}
	telemetry.Info("notify.email.sent", map[string]any{
		"message_id": messageID,
		"recipients": strings.Join(email.To, ","),
		"warned":     len(batch.Warned),
		"deleted":    len(batch.Deleted),
	})
	return nil
}

var _ janitor.Notifier = (*Emailer)(nil)
