package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// EventService is the event API the handlers need.
type EventService interface {
	CreateEvent(ctx context.Context, actor model.Actor, req model.CreateEventRequest) (*model.Event, error)
	GetEvent(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	ListEvents(ctx context.Context, actor model.Actor, status model.EventStatus) ([]model.Event, error)
	ListMine(ctx context.Context, actor model.Actor) ([]model.Event, error)
	UpdateEvent(ctx context.Context, actor model.Actor, id string, req model.UpdateEventRequest) (*model.Event, error)
	Submit(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	Approve(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Event, error)
	Publish(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	Close(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
}

// RegistrationService is the registration API the handlers need.
type RegistrationService interface {
	Register(ctx context.Context, actor model.Actor, eventID string) (*model.Registration, error)
	Cancel(ctx context.Context, actor model.Actor, registrationID string) (*model.Registration, error)
	ListMine(ctx context.Context, actor model.Actor) ([]model.Registration, error)
	ListForEvent(ctx context.Context, actor model.Actor, eventID string) ([]model.Registration, error)
}

// PaymentService is the mock payment API the handlers need.
type PaymentService interface {
	Checkout(ctx context.Context, actor model.Actor, req model.CheckoutRequest) (*model.CheckoutResult, error)
	Webhook(ctx context.Context, req model.WebhookRequest) (*model.WebhookResult, error)
	Status(ctx context.Context, actor model.Actor, registrationID string) (*model.Payment, error)
}

// AccountService is the account API the handlers need.
type AccountService interface {
	Signup(ctx context.Context, req model.SignupRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.User, string, error)
	Me(ctx context.Context, actor model.Actor) (*model.User, error)
	SetRole(ctx context.Context, key, userID, role string) (*model.User, error)
}

// ReportService exports registration reports.
type ReportService interface {
	RegistrationsCSV(ctx context.Context, actor model.Actor, eventID string, w io.Writer) error
}

// ChatService validates and stores chat traffic.
type ChatService interface {
	Join(ctx context.Context, actor model.Actor, eventID string) (*model.Event, error)
	Post(ctx context.Context, actor model.Actor, eventID string, kind model.ChatKind, body string) (*model.ChatMessage, error)
	History(ctx context.Context, actor model.Actor, eventID string) ([]model.ChatMessage, error)
	Remove(ctx context.Context, actor model.Actor, messageID string) (*model.ChatMessage, error)
}

// NotifyService sends e-mails.
type NotifyService interface {
	SendEmail(ctx context.Context, actor model.Actor, msg model.EmailRequest) error
}

// Deps wires the router.
type Deps struct {
	Events        EventService
	Registrations RegistrationService
	Payments      PaymentService
	Accounts      AccountService
	Reports       ReportService
	Chat          ChatService
	Notify        NotifyService

	Tokens     TokenVerifier
	Translator Translator
	Logger     *slog.Logger

	SessionTTL    time.Duration
	CookieSecure  bool
	CORSOrigins   []string
	WebhookSecret string
}

// API holds every HTTP handler of the service.
type API struct {
	Deps
	errs errorWriter
	hub  *chatHub
}

// NewAPI builds the handler set from d.
func NewAPI(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = time.Hour
	}
	return &API{
		Deps: d,
		errs: newErrorWriter(d.Translator, d.Logger),
		hub:  newChatHub(),
	}
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(d Deps) http.Handler {
	api := NewAPI(d)
	authn := Authenticate(d.Tokens, api.errs)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(api.Logger))
	r.Use(CORS(d.CORSOrigins))

	r.Get("/health", HealthCheck)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", api.Signup)
		r.Post("/login", api.Login)
		r.Post("/logout", api.Logout)
		r.With(authn).Get("/me", api.Me)
	})

	r.Route("/events", func(r chi.Router) {
		r.With(OptionalActor(d.Tokens)).Get("/", api.ListEvents)
		r.With(authn).Get("/mine", api.ListMyEvents)
		r.With(OptionalActor(d.Tokens)).Get("/{id}", api.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/", api.CreateEvent)
			r.Patch("/{id}/update", api.UpdateEvent)
			r.Post("/{id}/submit", api.SubmitEvent)
			r.Patch("/{id}/close", api.CloseEvent)
			r.Get("/{id}/registrations", api.ListEventRegistrations)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Patch("/users/{id}/role", api.SetUserRole)
		r.Group(func(r chi.Router) {
			r.Use(authn, RequireRole(model.RoleAdmin, api.errs))
			r.Patch("/events/{id}/approve", api.ApproveEvent)
			r.Patch("/events/{id}/reject", api.RejectEvent)
			r.Patch("/events/{id}/publish", api.PublishEvent)
			r.Patch("/events/{id}/close", api.CloseEvent)
		})
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", api.Register)
		r.Get("/me", api.ListMyRegistrations)
		r.Delete("/{id}", api.CancelRegistration)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/webhook", api.PaymentWebhook)
		r.With(authn).Post("/checkout", api.Checkout)
		r.With(authn).Get("/{registrationId}/status", api.PaymentStatus)
	})

	r.With(authn).Get("/reports/registrations", api.RegistrationsReport)

	r.Route("/chat", func(r chi.Router) {
		r.Use(authn)
		r.Get("/ws", api.ChatSocket)
		r.Get("/{eventId}", api.ChatHistory)
		r.Delete("/messages/{messageId}", api.RemoveChatMessage)
	})

	r.With(authn).Post("/notify/email", api.SendEmail)

	return r
}
