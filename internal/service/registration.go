package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/clock"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/policy"
)

// RegistrationService owns the capacity ledger: every change to an event's
// remaining slots caused by a registration goes through here.
type RegistrationService struct {
	tx            Transactor
	events        EventRepository
	registrations RegistrationRepository
	clock         clock.Clock
	logger        *slog.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	tx Transactor,
	events EventRepository,
	registrations RegistrationRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		tx:            tx,
		events:        events,
		registrations: registrations,
		clock:         clk,
		logger:        orDiscard(logger),
	}
}

// Register reserves one slot of eventID for actor.
//
// Everything happens in one transaction that holds the event row lock, so
// concurrent registrations for the same event are serialized while other
// events proceed in parallel.
func (s *RegistrationService) Register(ctx context.Context, actor model.Actor, eventID string) (*model.Registration, error) {
	if eventID == "" {
		return nil, apperr.Invalid("eventId", "eventId is required")
	}

	var reg *model.Registration
	err := retryConflicts(ctx, s.logger, "registration.register", func() error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			ev, err := s.events.GetForUpdate(txCtx, eventID)
			if err != nil {
				return err
			}
			if err := policy.Require(actor, policy.Register, policy.Resource{OwnerID: actor.ID, EventStatus: ev.Status}); err != nil {
				return err
			}
			if ev.Status != model.EventPublished {
				return apperr.WithMetadata(apperr.CodeInvalidState,
					"event is not open for registration",
					map[string]string{"Status": string(ev.Status)},
				)
			}

			existing, err := s.registrations.FindActive(txCtx, ev.ID, actor.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperr.New(apperr.CodeAlreadyRegistered, "user already registered for this event")
			}
			if ev.IsFull() {
				return apperr.New(apperr.CodeCapacityExceeded, "no slots available")
			}

			now := s.clock.Now()
			r := &model.Registration{
				ID:        newID(),
				EventID:   ev.ID,
				UserID:    actor.ID,
				Status:    model.RegistrationConfirmed,
				Payment:   model.Payment{Status: model.PaymentNone},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.registrations.Insert(txCtx, r); err != nil {
				return err
			}
			ok, err := s.events.AdjustRemaining(txCtx, ev.ID, -1)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.New(apperr.CodeCapacityExceeded, "no slots available")
			}
			reg = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration confirmed", "registration_id", reg.ID, "event_id", reg.EventID, "user_id", reg.UserID)
	return reg, nil
}

// Cancel cancels a confirmed registration and returns its slot. The event
// row is locked before the registration row, the same order Register uses.
// A registration whose event no longer exists is still cancelled.
func (s *RegistrationService) Cancel(ctx context.Context, actor model.Actor, registrationID string) (*model.Registration, error) {
	if registrationID == "" {
		return nil, apperr.Invalid("id", "registration id is required")
	}

	var (
		cancelled *model.Registration
		released  bool
	)
	err := retryConflicts(ctx, s.logger, "registration.cancel", func() error {
		released = false
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			current, err := s.registrations.GetByID(txCtx, registrationID)
			if err != nil {
				return err
			}
			if err := policy.Require(actor, policy.CancelRegistration, policy.Resource{OwnerID: current.UserID}); err != nil {
				return err
			}

			eventExists := true
			if _, err := s.events.GetForUpdate(txCtx, current.EventID); err != nil {
				if !errors.Is(err, apperr.ErrNotFound) {
					return err
				}
				eventExists = false
			}

			reg, err := s.registrations.GetForUpdate(txCtx, registrationID)
			if err != nil {
				return err
			}
			if reg.Status == model.RegistrationCancelled {
				return apperr.New(apperr.CodeAlreadyCancelled, "registration already cancelled")
			}

			now := s.clock.Now()
			if err := s.registrations.MarkCancelled(txCtx, reg.ID, now); err != nil {
				return err
			}
			reg.Status = model.RegistrationCancelled
			reg.CancelledAt = &now
			reg.UpdatedAt = now

			if eventExists {
				ok, err := s.events.AdjustRemaining(txCtx, reg.EventID, 1)
				if err != nil {
					return err
				}
				released = ok
			}
			cancelled = reg
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration cancelled",
		"registration_id", cancelled.ID,
		"event_id", cancelled.EventID,
		"actor", actor.ID,
		"slot_released", released,
	)
	return cancelled, nil
}

// ListMine returns every registration held by actor, newest first.
func (s *RegistrationService) ListMine(ctx context.Context, actor model.Actor) ([]model.Registration, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	return s.registrations.ListByUser(ctx, actor.ID)
}

// ListForEvent returns all registrations of an event to its owner or an admin.
func (s *RegistrationService) ListForEvent(ctx context.Context, actor model.Actor, eventID string) ([]model.Registration, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.ListEventRegistrations, eventResource(ev)); err != nil {
		return nil, err
	}
	return s.registrations.ListByEvent(ctx, ev.ID)
}
