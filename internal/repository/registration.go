package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const registrationColumns = `id, event_id, user_id, status,
	payment_status, payment_provider, payment_charge_key, payment_amount, payment_currency,
	created_at, updated_at, cancelled_at`

// RegistrationRepository handles persistence for registrations and their
// payment sub-state.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Insert stores a new registration. The partial unique index on
// (event_id, user_id) for confirmed rows turns a lost race into
// ALREADY_REGISTERED.
func (r *RegistrationRepository) Insert(ctx context.Context, reg *model.Registration) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO registrations (id, event_id, user_id, status, payment_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reg.ID, reg.EventID, reg.UserID, string(reg.Status), string(reg.Payment.Status), reg.CreatedAt, reg.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Wrap(apperr.CodeAlreadyRegistered, "user already registered for this event", err)
	}
	return mapError(err, "insert registration")
}

// GetByID returns a single registration or NOT_FOUND.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, mapError(err, "get registration")
	}
	return reg, nil
}

// GetForUpdate reads a registration and locks its row.
func (r *RegistrationRepository) GetForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	if txFromContext(ctx) == nil {
		return nil, apperr.New(apperr.CodeInternal, "GetForUpdate requires a transaction")
	}
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, mapError(err, "lock registration")
	}
	return reg, nil
}

// FindActive returns the confirmed registration of userID for eventID, or
// nil when there is none.
func (r *RegistrationRepository) FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status = 'confirmed'`,
		eventID, userID,
	)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "find active registration")
	}
	return reg, nil
}

// CountActive counts confirmed registrations for eventID.
func (r *RegistrationRepository) CountActive(ctx context.Context, eventID string) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'confirmed'`,
		eventID,
	).Scan(&n)
	return n, mapError(err, "count registrations")
}

// MarkCancelled flips a confirmed registration to cancelled.
func (r *RegistrationRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE registrations SET status = 'cancelled', cancelled_at = $2, updated_at = $2
		 WHERE id = $1 AND status = 'confirmed'`,
		id, at,
	)
	if err != nil {
		return mapError(err, "cancel registration")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeAlreadyCancelled, "registration already cancelled")
	}
	return nil
}

// ListByUser returns userID's registrations, newest first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	return r.list(ctx, "list user registrations",
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

// ListByEvent returns all registrations for an event in sign-up order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.list(ctx, "list event registrations",
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at ASC`,
		eventID,
	)
}

func (r *RegistrationRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Registration, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()

	regs := []model.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, mapError(err, op)
		}
		regs = append(regs, *reg)
	}
	return regs, mapError(rows.Err(), op)
}

// SetPayment replaces the payment sub-state of a registration.
func (r *RegistrationRepository) SetPayment(ctx context.Context, id string, p model.Payment, at time.Time) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE registrations SET payment_status = $2, payment_provider = $3, payment_charge_key = $4,
			payment_amount = $5, payment_currency = $6, updated_at = $7
		 WHERE id = $1`,
		id, string(p.Status), p.Provider, nullable(p.ChargeKey), p.Amount, p.Currency, at,
	)
	if err != nil {
		return mapError(err, "set payment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "registration not found")
	}
	return nil
}

// ResolvePayment moves a pending payment to status with a single conditional
// update. When the row is no longer pending the stored registration is
// returned unchanged with applied=false.
func (r *RegistrationRepository) ResolvePayment(ctx context.Context, chargeKey string, status model.PaymentStatus, at time.Time) (*model.Registration, bool, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`UPDATE registrations SET payment_status = $2, updated_at = $3
		 WHERE payment_charge_key = $1 AND payment_status = 'pending'
		 RETURNING `+registrationColumns,
		chargeKey, string(status), at,
	)
	reg, err := scanRegistration(row)
	if err == nil {
		return reg, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, mapError(err, "resolve payment")
	}

	row = conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE payment_charge_key = $1`,
		chargeKey,
	)
	reg, err = scanRegistration(row)
	if err != nil {
		return nil, false, mapError(err, "find payment")
	}
	return reg, false, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		reg       model.Registration
		status    string
		payStatus string
		chargeKey *string
	)
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &status,
		&payStatus, &reg.Payment.Provider, &chargeKey, &reg.Payment.Amount, &reg.Payment.Currency,
		&reg.CreatedAt, &reg.UpdatedAt, &reg.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	reg.Status = model.RegistrationStatus(status)
	reg.Payment.Status = model.PaymentStatus(payStatus)
	if chargeKey != nil {
		reg.Payment.ChargeKey = *chargeKey
	}
	return &reg, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
