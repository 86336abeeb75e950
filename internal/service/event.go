package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/clock"
	"github.com/Shivanand-hulikatti/campus-events/internal/lifecycle"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/policy"
)

const maxSlots = 100_000

// EventService orchestrates event creation, edits and lifecycle transitions.
type EventService struct {
	tx            Transactor
	events        EventRepository
	registrations RegistrationRepository
	clock         clock.Clock
	logger        *slog.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	tx Transactor,
	events EventRepository,
	registrations RegistrationRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		tx:            tx,
		events:        events,
		registrations: registrations,
		clock:         clk,
		logger:        orDiscard(logger),
	}
}

// CreateEvent validates the request and stores a new draft owned by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor model.Actor, req model.CreateEventRequest) (*model.Event, error) {
	if err := policy.Require(actor, policy.CreateEvent, policy.Resource{}); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	ev := &model.Event{
		ID:          newID(),
		Title:       req.Title,
		Description: req.Description,
		Schedule:    req.Schedule,
		Location:    req.Location,
		TotalSlots:  req.TotalSlots,
		CreatedBy:   actor.ID,
		Status:      model.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := normalizeEvent(ev); err != nil {
		return nil, err
	}
	ev.RemainingSlots = ev.TotalSlots

	if err := s.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", ev.ID, "created_by", actor.ID, "total_slots", ev.TotalSlots)
	return ev, nil
}

// GetEvent returns a single event when actor may see it.
func (s *EventService) GetEvent(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	if id == "" {
		return nil, apperr.Invalid("id", "event id is required")
	}
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.ReadEvent, eventResource(ev)); err != nil {
		// Hidden events are reported as missing.
		return nil, apperr.New(apperr.CodeNotFound, "event not found")
	}
	return ev, nil
}

// ListEvents returns events in status; the empty status lists the public
// published catalogue. Any other status is an admin view.
func (s *EventService) ListEvents(ctx context.Context, actor model.Actor, status model.EventStatus) ([]model.Event, error) {
	if status == "" {
		status = model.EventPublished
	}
	if !status.Valid() {
		return nil, apperr.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	if status != model.EventPublished {
		if err := policy.Require(actor, policy.ListAllEvents, policy.Resource{}); err != nil {
			return nil, err
		}
	}
	return s.events.List(ctx, EventFilter{Status: status})
}

// ListMine returns every event actor created.
func (s *EventService) ListMine(ctx context.Context, actor model.Actor) ([]model.Event, error) {
	if err := policy.Require(actor, policy.CreateEvent, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.events.List(ctx, EventFilter{CreatedBy: actor.ID})
}

// UpdateEvent edits a draft or approved event. Remaining slots are
// recomputed from the active registration count under the event row lock,
// and shrinking total slots below that count is rejected.
func (s *EventService) UpdateEvent(ctx context.Context, actor model.Actor, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var updated *model.Event
	err := retryConflicts(ctx, s.logger, "event.update", func() error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			ev, err := s.events.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			if err := policy.Require(actor, policy.EditEvent, eventResource(ev)); err != nil {
				return err
			}
			if err := lifecycle.Apply(ev, lifecycle.Edit, actor.ID, s.clock.Now(), ""); err != nil {
				return err
			}

			applyUpdate(ev, req)
			if err := normalizeEvent(ev); err != nil {
				return err
			}
			active, err := s.registrations.CountActive(txCtx, ev.ID)
			if err != nil {
				return err
			}
			if ev.TotalSlots < active {
				return apperr.WithMetadata(apperr.CodeInvalidArgument,
					fmt.Sprintf("totalSlots %d is below the %d active registrations", ev.TotalSlots, active),
					map[string]string{"Field": "totalSlots"},
				)
			}
			ev.RemainingSlots = ev.TotalSlots - active

			if err := s.events.SaveDetails(txCtx, ev); err != nil {
				return err
			}
			updated = ev
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event updated", "event_id", updated.ID, "actor", actor.ID, "remaining_slots", updated.RemainingSlots)
	return updated, nil
}

// Submit moves a draft to submitted.
func (s *EventService) Submit(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Submit, "")
}

// Approve moves a submitted event to approved.
func (s *EventService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Approve, "")
}

// Reject moves a submitted event to rejected with reason.
func (s *EventService) Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Reject, reason)
}

// Publish opens an approved event for registration.
func (s *EventService) Publish(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Publish, "")
}

// Close ends an approved or published event.
func (s *EventService) Close(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	return s.transition(ctx, actor, id, lifecycle.Close, "")
}

var transitionPolicy = map[lifecycle.Action]policy.Action{
	lifecycle.Submit:  policy.SubmitEvent,
	lifecycle.Approve: policy.ApproveEvent,
	lifecycle.Reject:  policy.RejectEvent,
	lifecycle.Publish: policy.PublishEvent,
	lifecycle.Close:   policy.CloseEvent,
}

func (s *EventService) transition(ctx context.Context, actor model.Actor, id string, action lifecycle.Action, reason string) (*model.Event, error) {
	if id == "" {
		return nil, apperr.Invalid("id", "event id is required")
	}
	var result *model.Event
	var from model.EventStatus
	err := retryConflicts(ctx, s.logger, "event."+string(action), func() error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			ev, err := s.events.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			if err := policy.Require(actor, transitionPolicy[action], eventResource(ev)); err != nil {
				return err
			}
			from = ev.Status
			if err := lifecycle.Apply(ev, action, actor.ID, s.clock.Now(), reason); err != nil {
				return err
			}
			if err := s.events.SaveTransition(txCtx, ev); err != nil {
				return err
			}
			result = ev
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event transitioned",
		"event_id", result.ID,
		"action", string(action),
		"from", string(from),
		"to", string(result.Status),
		"actor", actor.ID,
	)
	return result, nil
}

func eventResource(ev *model.Event) policy.Resource {
	return policy.Resource{OwnerID: ev.CreatedBy, EventStatus: ev.Status}
}

func applyUpdate(ev *model.Event, req model.UpdateEventRequest) {
	if req.Title != nil {
		ev.Title = *req.Title
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.Schedule != nil {
		ev.Schedule = *req.Schedule
	}
	if req.Location != nil {
		ev.Location = *req.Location
	}
	if req.TotalSlots != nil {
		ev.TotalSlots = *req.TotalSlots
	}
}

func normalizeEvent(ev *model.Event) error {
	ev.Title = strings.TrimSpace(ev.Title)
	if ev.Title == "" {
		return apperr.Invalid("title", "event title is required")
	}
	if ev.TotalSlots < 0 {
		return apperr.Invalid("totalSlots", "totalSlots cannot be negative")
	}
	if ev.TotalSlots > maxSlots {
		return apperr.Invalid("totalSlots", "totalSlots cannot exceed 100,000")
	}
	sch := ev.Schedule
	if sch.Start != nil && sch.End != nil && sch.End.Before(*sch.Start) {
		return apperr.Invalid("schedule", "schedule end is before start")
	}
	switch ev.Location.Kind {
	case "":
		ev.Location.Kind = model.LocationVenue
	case model.LocationVenue, model.LocationOnline:
	default:
		return apperr.Invalid("location", fmt.Sprintf("unknown location type %q", ev.Location.Kind))
	}
	return nil
}
