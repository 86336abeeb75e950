package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
)

const eventColumns = `id, title, description,
	schedule_start, schedule_end, schedule_timezone,
	location_kind, location_address, location_url,
	total_slots, remaining_slots, created_by, status,
	submitted_at, approved_at, approved_by, rejected_at, reject_reason, published_at, closed_at,
	created_at, updated_at`

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, ev *model.Event) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO events (id, title, description,
			schedule_start, schedule_end, schedule_timezone,
			location_kind, location_address, location_url,
			total_slots, remaining_slots, created_by, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		ev.ID, ev.Title, ev.Description,
		ev.Schedule.Start, ev.Schedule.End, ev.Schedule.Timezone,
		string(ev.Location.Kind), ev.Location.Address, ev.Location.URL,
		ev.TotalSlots, ev.RemainingSlots, ev.CreatedBy, string(ev.Status), ev.CreatedAt, ev.UpdatedAt,
	)
	return mapError(err, "insert event")
}

// GetByID returns a single event or NOT_FOUND.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, mapError(err, "get event")
	}
	return ev, nil
}

// GetForUpdate reads an event and takes a row-level exclusive lock on it.
// Any other transaction that asks for the same lock blocks until this one
// commits or rolls back, which serializes every read-then-write of the
// slot counter for that event. It must run inside WithTx.
func (r *EventRepository) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	if txFromContext(ctx) == nil {
		return nil, apperr.New(apperr.CodeInternal, "GetForUpdate requires a transaction")
	}
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, mapError(err, "lock event")
	}
	return ev, nil
}

// List returns events matching filter ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context, filter service.EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		where = append(where, "created_by = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list events")
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, mapError(err, "scan event")
		}
		events = append(events, *ev)
	}
	return events, mapError(rows.Err(), "list events")
}

// SaveTransition writes the status and every audit stamp in one statement.
func (r *EventRepository) SaveTransition(ctx context.Context, ev *model.Event) error {
	a := ev.Audit
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE events SET status = $2,
			submitted_at = $3, approved_at = $4, approved_by = $5,
			rejected_at = $6, reject_reason = $7, published_at = $8, closed_at = $9,
			updated_at = $10
		 WHERE id = $1`,
		ev.ID, string(ev.Status),
		a.SubmittedAt, a.ApprovedAt, a.ApprovedBy,
		a.RejectedAt, a.RejectReason, a.PublishedAt, a.ClosedAt,
		ev.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "save event transition")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "event not found")
	}
	return nil
}

// SaveDetails writes the editable fields and both slot counters.
func (r *EventRepository) SaveDetails(ctx context.Context, ev *model.Event) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE events SET title = $2, description = $3,
			schedule_start = $4, schedule_end = $5, schedule_timezone = $6,
			location_kind = $7, location_address = $8, location_url = $9,
			total_slots = $10, remaining_slots = $11, updated_at = $12
		 WHERE id = $1`,
		ev.ID, ev.Title, ev.Description,
		ev.Schedule.Start, ev.Schedule.End, ev.Schedule.Timezone,
		string(ev.Location.Kind), ev.Location.Address, ev.Location.URL,
		ev.TotalSlots, ev.RemainingSlots, ev.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "save event details")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "event not found")
	}
	return nil
}

// AdjustRemaining moves remaining_slots by delta. The WHERE clause keeps the
// counter inside [0, total_slots]; zero affected rows means the guard held.
func (r *EventRepository) AdjustRemaining(ctx context.Context, id string, delta int) (bool, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE events SET remaining_slots = remaining_slots + $2, updated_at = NOW()
		 WHERE id = $1
		   AND remaining_slots + $2 >= 0
		   AND remaining_slots + $2 <= total_slots`,
		id, delta,
	)
	if err != nil {
		return false, mapError(err, "adjust remaining slots")
	}
	return tag.RowsAffected() == 1, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		ev           model.Event
		locationKind string
		status       string
	)
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Description,
		&ev.Schedule.Start, &ev.Schedule.End, &ev.Schedule.Timezone,
		&locationKind, &ev.Location.Address, &ev.Location.URL,
		&ev.TotalSlots, &ev.RemainingSlots, &ev.CreatedBy, &status,
		&ev.Audit.SubmittedAt, &ev.Audit.ApprovedAt, &ev.Audit.ApprovedBy,
		&ev.Audit.RejectedAt, &ev.Audit.RejectReason, &ev.Audit.PublishedAt, &ev.Audit.ClosedAt,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ev.Location.Kind = model.LocationKind(locationKind)
	ev.Status = model.EventStatus(status)
	return &ev, nil
}
