package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/clock"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const minPasswordLen = 8

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user model.User) (string, error)
}

// AuthService manages accounts, logins and the admin bootstrap path.
type AuthService struct {
	users        UserRepository
	tokens       TokenIssuer
	clock        clock.Clock
	bootstrapKey string
	bcryptCost   int
	logger       *slog.Logger
}

// NewAuthService constructs an AuthService. An empty bootstrapKey disables
// SetRole.
func NewAuthService(users UserRepository, tokens TokenIssuer, clk clock.Clock, bootstrapKey string, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		clock:        clk,
		bootstrapKey: bootstrapKey,
		bcryptCost:   bcrypt.DefaultCost,
		logger:       orDiscard(logger),
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

// Signup creates a student account.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, apperr.Invalid("name", "name is required")
	}
	if !isValidEmail(email) {
		return nil, apperr.Invalid("email", "a valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrAlreadyRegistered) {
			return nil, apperr.WithMetadata(apperr.CodeConflict, "email already in use", map[string]string{"Field": "email"})
		}
		return nil, err
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and returns the user with a fresh session token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, "", apperr.Invalid("email", "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, "", apperr.New(apperr.CodeUnauthenticated, "invalid credentials")
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", apperr.New(apperr.CodeUnauthenticated, "invalid credentials")
	}

	token, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Me returns the account behind actor.
func (s *AuthService) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, "authentication required")
	}
	return s.users.GetByID(ctx, actor.ID)
}

// SetRole assigns role to a user when key matches the configured bootstrap
// key. It is independent of any session.
func (s *AuthService) SetRole(ctx context.Context, key, userID, role string) (*model.User, error) {
	if s.bootstrapKey == "" {
		return nil, apperr.New(apperr.CodeForbidden, "admin bootstrap is disabled")
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.bootstrapKey)) != 1 {
		return nil, apperr.New(apperr.CodeForbidden, "invalid admin key")
	}
	r, ok := model.ParseRole(role)
	if !ok {
		return nil, apperr.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	user, err := s.users.SetRole(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("user role changed via bootstrap key", "user_id", user.ID, "role", string(r))
	return user, nil
}
