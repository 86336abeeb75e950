package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

type txMarker struct{}

// memStore is an in-memory implementation of every repository interface.
// WithTx serializes transactions on a single lock and restores a snapshot
// when fn fails, which is enough to observe rollback and capacity behaviour.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events        map[string]model.Event
	registrations map[string]model.Registration
	users         map[string]model.User
	chat          map[string]model.ChatMessage

	// adjustHook, when set, runs before every AdjustRemaining.
	adjustHook func() error
}

func newMemStore() *memStore {
	return &memStore{
		events:        map[string]model.Event{},
		registrations: map[string]model.Registration{},
		users:         map[string]model.User{},
		chat:          map[string]model.ChatMessage{},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	events        map[string]model.Event
	registrations map[string]model.Registration
	users         map[string]model.User
	chat          map[string]model.ChatMessage
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		events:        cloneMap(s.events),
		registrations: cloneMap(s.registrations),
		users:         cloneMap(s.users),
		chat:          cloneMap(s.chat),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.events = snap.events
	s.registrations = snap.registrations
	s.users = snap.users
	s.chat = snap.chat
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func notFound(what string) error {
	return apperr.New(apperr.CodeNotFound, what+" not found")
}

// --- events ---

type memEvents struct{ *memStore }

func (s memEvents) Create(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = *ev
	return nil
}

func (s memEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, notFound("event")
	}
	return &ev, nil
}

func (s memEvents) GetForUpdate(ctx context.Context, id string) (*model.Event, error) {
	return s.GetByID(ctx, id)
}

func (s memEvents) List(_ context.Context, f EventFilter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Event{}
	for _, ev := range s.events {
		if f.Status != "" && ev.Status != f.Status {
			continue
		}
		if f.CreatedBy != "" && ev.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s memEvents) SaveTransition(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[ev.ID]
	if !ok {
		return notFound("event")
	}
	cur.Status = ev.Status
	cur.Audit = ev.Audit
	cur.UpdatedAt = ev.UpdatedAt
	s.events[ev.ID] = cur
	return nil
}

func (s memEvents) SaveDetails(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok {
		return notFound("event")
	}
	s.events[ev.ID] = *ev
	return nil
}

func (s memEvents) AdjustRemaining(_ context.Context, id string, delta int) (bool, error) {
	if s.adjustHook != nil {
		if err := s.adjustHook(); err != nil {
			return false, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return false, notFound("event")
	}
	next := ev.RemainingSlots + delta
	if next < 0 || next > ev.TotalSlots {
		return false, nil
	}
	ev.RemainingSlots = next
	s.events[id] = ev
	return true, nil
}

// --- registrations ---

type memRegistrations struct{ *memStore }

func (s memRegistrations) Insert(_ context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.EventID == reg.EventID && r.UserID == reg.UserID && r.Status == model.RegistrationConfirmed {
			return apperr.New(apperr.CodeAlreadyRegistered, "user already registered for this event")
		}
	}
	s.registrations[reg.ID] = *reg
	return nil
}

func (s memRegistrations) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, notFound("registration")
	}
	return &r, nil
}

func (s memRegistrations) GetForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	return s.GetByID(ctx, id)
}

func (s memRegistrations) FindActive(_ context.Context, eventID, userID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.EventID == eventID && r.UserID == userID && r.Status == model.RegistrationConfirmed {
			return &r, nil
		}
	}
	return nil, nil
}

func (s memRegistrations) CountActive(_ context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.registrations {
		if r.EventID == eventID && r.Status == model.RegistrationConfirmed {
			n++
		}
	}
	return n, nil
}

func (s memRegistrations) MarkCancelled(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return notFound("registration")
	}
	r.Status = model.RegistrationCancelled
	r.CancelledAt = &at
	r.UpdatedAt = at
	s.registrations[id] = r
	return nil
}

func (s memRegistrations) list(keep func(model.Registration) bool) []model.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Registration{}
	for _, r := range s.registrations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s memRegistrations) ListByUser(_ context.Context, userID string) ([]model.Registration, error) {
	return s.list(func(r model.Registration) bool { return r.UserID == userID }), nil
}

func (s memRegistrations) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	return s.list(func(r model.Registration) bool { return r.EventID == eventID }), nil
}

func (s memRegistrations) SetPayment(_ context.Context, id string, p model.Payment, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return notFound("registration")
	}
	r.Payment = p
	r.UpdatedAt = at
	s.registrations[id] = r
	return nil
}

func (s memRegistrations) ResolvePayment(_ context.Context, key string, status model.PaymentStatus, at time.Time) (*model.Registration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.registrations {
		if r.Payment.ChargeKey != key {
			continue
		}
		if r.Payment.Status != model.PaymentPending {
			return &r, false, nil
		}
		r.Payment.Status = status
		r.UpdatedAt = at
		s.registrations[id] = r
		return &r, true, nil
	}
	return nil, false, notFound("payment")
}

// --- users ---

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apperr.New(apperr.CodeConflict, "duplicate email")
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("user")
}

func (s memUsers) SetRole(_ context.Context, id string, role model.Role) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	u.Role = role
	s.users[id] = u
	return &u, nil
}

// --- chat ---

type memChat struct{ *memStore }

func (s memChat) Append(_ context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat[msg.ID] = *msg
	return nil
}

func (s memChat) GetByID(_ context.Context, id string) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.chat[id]
	if !ok {
		return nil, notFound("message")
	}
	return &m, nil
}

func (s memChat) History(_ context.Context, eventID string, limit int) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ChatMessage{}
	for _, m := range s.chat {
		if m.EventID == eventID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memChat) MarkRemoved(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.chat[id]
	if !ok {
		return notFound("message")
	}
	m.Removed = true
	s.chat[id] = m
	return nil
}

// --- fixtures ---

var (
	admin     = model.Actor{ID: "admin-1", Role: model.RoleAdmin}
	organizer = model.Actor{ID: "org-1", Role: model.RoleOrganizer}
	otherOrg  = model.Actor{ID: "org-2", Role: model.RoleOrganizer}
)

func student(id string) model.Actor {
	return model.Actor{ID: id, Role: model.RoleStudent}
}

// seedEvent stores an event owned by organizer directly in status.
func (s *memStore) seedEvent(id string, status model.EventStatus, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.events[id] = model.Event{
		ID:             id,
		Title:          "Event " + id,
		Location:       model.Location{Kind: model.LocationVenue},
		TotalSlots:     total,
		RemainingSlots: total,
		CreatedBy:      organizer.ID,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *memStore) event(id string) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}
