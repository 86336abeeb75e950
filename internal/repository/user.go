package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const userColumns = `id, name, email, password_hash, role, created_at`

// UserRepository handles persistence for accounts.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A taken email surfaces as CONFLICT.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	return mapError(err, "insert user")
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail expects an already lower-cased email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	return r.get(ctx, `UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns, id, string(role))
}

func (r *UserRepository) get(ctx context.Context, query string, args ...any) (*model.User, error) {
	u, err := scanUser(conn(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
