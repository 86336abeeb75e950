package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/policy"
)

// Notifier delivers an e-mail.
type Notifier interface {
	Send(ctx context.Context, msg model.EmailRequest) error
}

// LogNotifier records e-mails in the log instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, msg model.EmailRequest) error {
	orDiscard(n.Logger).Info("email queued", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.Text))
	return nil
}

// NotifyService is the admin-only e-mail entry point.
type NotifyService struct {
	notifier Notifier
}

func NewNotifyService(n Notifier) *NotifyService {
	return &NotifyService{notifier: n}
}

// SendEmail validates msg and hands it to the notifier.
func (s *NotifyService) SendEmail(ctx context.Context, actor model.Actor, msg model.EmailRequest) error {
	if err := policy.Require(actor, policy.SendEmail, policy.Resource{}); err != nil {
		return err
	}
	msg.To = strings.TrimSpace(msg.To)
	if !isValidEmail(msg.To) {
		return apperr.Invalid("to", "a valid recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return apperr.Invalid("subject", "subject is required")
	}
	return s.notifier.Send(ctx, msg)
}
