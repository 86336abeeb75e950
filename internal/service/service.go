// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Transactor runs fn inside a database transaction carried by ctx. Nested
// calls join the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventFilter narrows event listings. Zero values match everything.
type EventFilter struct {
	Status    model.EventStatus
	CreatedBy string
}

// EventRepository persists events. It is the only writer of remaining slots.
type EventRepository interface {
	Create(ctx context.Context, ev *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// GetForUpdate locks the event row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, filter EventFilter) ([]model.Event, error)
	// SaveTransition writes status, audit stamps and updated_at in one statement.
	SaveTransition(ctx context.Context, ev *model.Event) error
	// SaveDetails writes editable fields together with total and remaining slots.
	SaveDetails(ctx context.Context, ev *model.Event) error
	// AdjustRemaining adds delta to remaining slots only if the result stays
	// within [0, total]. It reports false when the guard rejected the change.
	AdjustRemaining(ctx context.Context, id string, delta int) (bool, error)
}

// RegistrationRepository persists registrations and their payment sub-state.
type RegistrationRepository interface {
	// Insert fails with ALREADY_REGISTERED when a confirmed row exists for the pair.
	Insert(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	GetForUpdate(ctx context.Context, id string) (*model.Registration, error)
	// FindActive returns nil, nil when no confirmed registration exists.
	FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error)
	CountActive(ctx context.Context, eventID string) (int, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	SetPayment(ctx context.Context, id string, payment model.Payment, at time.Time) error
	// ResolvePayment moves a pending payment to status. applied is false when
	// the payment was already terminal; the stored registration is returned
	// either way.
	ResolvePayment(ctx context.Context, chargeKey string, status model.PaymentStatus, at time.Time) (reg *model.Registration, applied bool, err error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SetRole(ctx context.Context, id string, role model.Role) (*model.User, error)
}

// ChatRepository persists the append-only chat log.
type ChatRepository interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	GetByID(ctx context.Context, id string) (*model.ChatMessage, error)
	History(ctx context.Context, eventID string, limit int) ([]model.ChatMessage, error)
	MarkRemoved(ctx context.Context, id string) error
}

const (
	maxAttempts  = 3
	retryBackoff = 25 * time.Millisecond
)

// retryConflicts reruns fn while it fails with a retryable code.
func retryConflicts(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperr.CodeOf(err).Retryable() {
			return err
		}
		logger.Warn("retrying after storage conflict", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

func newID() string {
	return uuid.NewString()
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
