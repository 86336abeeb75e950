package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/i18n"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const (
	testSecret     = "handler-test-secret-0123"
	testOrigin     = "http://localhost:5173"
	testWebhookKey = "whsec-test"
)

// Stubs embed the interface so unimplemented methods panic when reached.

type stubEvents struct {
	EventService
	reject func(actor model.Actor, id, reason string) (*model.Event, error)
	close  func(actor model.Actor, id string) (*model.Event, error)
}

func (s stubEvents) Close(_ context.Context, actor model.Actor, id string) (*model.Event, error) {
	return s.close(actor, id)
}

func (s stubEvents) Reject(_ context.Context, actor model.Actor, id, reason string) (*model.Event, error) {
	return s.reject(actor, id, reason)
}

func (s stubEvents) ListEvents(_ context.Context, _ model.Actor, _ model.EventStatus) ([]model.Event, error) {
	return nil, nil
}

type stubRegistrations struct {
	RegistrationService
	register func(actor model.Actor, eventID string) (*model.Registration, error)
}

func (s stubRegistrations) Register(_ context.Context, actor model.Actor, eventID string) (*model.Registration, error) {
	return s.register(actor, eventID)
}

type stubPayments struct {
	PaymentService
	webhook func(req model.WebhookRequest) (*model.WebhookResult, error)
}

func (s stubPayments) Webhook(_ context.Context, req model.WebhookRequest) (*model.WebhookResult, error) {
	return s.webhook(req)
}

type stubAccounts struct {
	AccountService
}

func (stubAccounts) Login(_ context.Context, req model.LoginRequest) (*model.User, string, error) {
	if req.Password != "secret-pass" {
		return nil, "", apperr.New(apperr.CodeUnauthenticated, "invalid credentials")
	}
	return &model.User{ID: "u1", Email: req.Email, Role: model.RoleStudent}, "signed-token", nil
}

func (stubAccounts) SetRole(_ context.Context, key, userID, role string) (*model.User, error) {
	if key != "bootstrap" {
		return nil, apperr.New(apperr.CodeForbidden, "invalid admin key")
	}
	return &model.User{ID: userID, Role: model.Role(role)}, nil
}

type stubReports struct{ ReportService }

func (stubReports) RegistrationsCSV(_ context.Context, actor model.Actor, eventID string, w io.Writer) error {
	if actor.Role == model.RoleStudent {
		return apperr.New(apperr.CodeForbidden, "no")
	}
	_, err := io.WriteString(w, "id,userId,eventId,status,paymentStatus,createdAt\n")
	return err
}

type stubChat struct{ ChatService }

func (stubChat) Join(_ context.Context, _ model.Actor, eventID string) (*model.Event, error) {
	if eventID != "ev" {
		return nil, apperr.New(apperr.CodeNotFound, "event not found")
	}
	return &model.Event{ID: eventID, Status: model.EventPublished}, nil
}

func (stubChat) Post(_ context.Context, actor model.Actor, eventID string, kind model.ChatKind, body string) (*model.ChatMessage, error) {
	return &model.ChatMessage{ID: "m1", EventID: eventID, UserID: actor.ID, Kind: kind, Body: body}, nil
}

type fixture struct {
	router http.Handler
	tokens *auth.Tokens
}

func newFixture(t *testing.T, d Deps) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokens(testSecret, time.Hour, nil)
	d.Tokens = tokens
	d.Logger = logger
	d.Translator = i18n.NewTranslator("en", logger)
	d.CORSOrigins = []string{testOrigin}
	return fixture{router: NewRouter(d), tokens: tokens}
}

func (f fixture) cookie(t *testing.T, id string, role model.Role) *http.Cookie {
	t.Helper()
	token, err := f.tokens.Issue(model.User{ID: id, Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var body model.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{})
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{})
	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/registrations/me"},
		{http.MethodPost, "/events"},
		{http.MethodPost, "/payments/checkout"},
		{http.MethodGet, "/chat/ev"},
		{http.MethodPatch, "/admin/events/x/approve"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "forged"})
			rec := f.do(req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if body := decodeError(t, rec); body.Code != string(apperr.CodeUnauthenticated) {
				t.Fatalf("expected UNAUTHENTICATED, got %+v", body)
			}
		})
	}
}

func TestRegisterMapsErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{Registrations: stubRegistrations{
		register: func(actor model.Actor, eventID string) (*model.Registration, error) {
			if eventID == "full" {
				return nil, apperr.New(apperr.CodeCapacityExceeded, "no slots available")
			}
			return &model.Registration{ID: "r1", EventID: eventID, UserID: actor.ID, Status: model.RegistrationConfirmed}, nil
		},
	}})
	cookie := f.cookie(t, "s1", model.RoleStudent)

	req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(`{"eventId":"ev"}`))
	req.AddCookie(cookie)
	rec := f.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var reg model.Registration
	if err := json.NewDecoder(rec.Body).Decode(&reg); err != nil || reg.UserID != "s1" {
		t.Fatalf("unexpected registration %+v %v", reg, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(`{"eventId":"full"}`))
	req.AddCookie(cookie)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	rec = f.do(req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Code != string(apperr.CodeCapacityExceeded) || body.Error == "" || body.Error == "no slots available" {
		t.Fatalf("expected localized CAPACITY_EXCEEDED, got %+v", body)
	}

	req = httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(`{"eventId":"ev","extra":1}`))
	req.AddCookie(cookie)
	if rec = f.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); !strings.Contains(body.Error, `unknown field "extra"`) {
		t.Fatalf("expected unknown field in message, got %q", body.Error)
	}
}

func TestMalformedBodyMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{})
	cookie := f.cookie(t, "s1", model.RoleStudent)

	tests := []struct {
		name   string
		path   string
		body   string
		lang   string
		substr string
	}{
		{"syntax error", "/payments/checkout", `{"registrationId":`, "", "Invalid value for body: request body is not valid JSON"},
		{"empty body", "/registrations", ``, "", "Invalid value for body: request body is required"},
		{"french", "/payments/checkout", `not json`, "fr", "Valeur invalide pour body"},
		{"empty webhook", "/payments/webhook", ``, "", "request body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.AddCookie(cookie)
			if tt.lang != "" {
				req.Header.Set("Accept-Language", tt.lang)
			}
			rec := f.do(req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			body := decodeError(t, rec)
			if body.Code != string(apperr.CodeInvalidArgument) || body.Details["Field"] != "body" {
				t.Fatalf("unexpected error envelope %+v", body)
			}
			if strings.Contains(body.Error, "<no value>") || !strings.Contains(body.Error, tt.substr) {
				t.Fatalf("expected %q in message, got %q", tt.substr, body.Error)
			}
		})
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var closedBy []string
	f := newFixture(t, Deps{Events: stubEvents{
		close: func(actor model.Actor, id string) (*model.Event, error) {
			mu.Lock()
			closedBy = append(closedBy, actor.ID)
			mu.Unlock()
			return &model.Event{ID: id, Status: model.EventClosed}, nil
		},
	}})

	req := httptest.NewRequest(http.MethodPatch, "/admin/events/e1/close", nil)
	req.AddCookie(f.cookie(t, "o1", model.RoleOrganizer))
	rec := f.do(req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("organizer on admin route: expected 403, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != string(apperr.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %+v", body)
	}

	req = httptest.NewRequest(http.MethodPatch, "/events/e1/close", nil)
	req.AddCookie(f.cookie(t, "o1", model.RoleOrganizer))
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("organizer on owner route: expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/admin/events/e1/close", nil)
	req.AddCookie(f.cookie(t, "a1", model.RoleAdmin))
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rec.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(closedBy) != 2 || closedBy[0] != "o1" || closedBy[1] != "a1" {
		t.Fatalf("unexpected service calls %v", closedBy)
	}
}

func TestRejectAcceptsEmptyBody(t *testing.T) {
	t.Parallel()

	var gotReason string
	f := newFixture(t, Deps{Events: stubEvents{
		reject: func(_ model.Actor, id, reason string) (*model.Event, error) {
			gotReason = reason
			return &model.Event{ID: id, Status: model.EventRejected}, nil
		},
	}})

	req := httptest.NewRequest(http.MethodPatch, "/admin/events/e1/reject", nil)
	req.AddCookie(f.cookie(t, "a1", model.RoleAdmin))
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if gotReason != "" {
		t.Fatalf("expected empty reason, got %q", gotReason)
	}

	req = httptest.NewRequest(http.MethodPatch, "/admin/events/e1/reject", strings.NewReader(`{"reason":"duplicate"}`))
	req.AddCookie(f.cookie(t, "a1", model.RoleAdmin))
	if rec := f.do(req); rec.Code != http.StatusOK || gotReason != "duplicate" {
		t.Fatalf("expected reason to be forwarded, got %d %q", rec.Code, gotReason)
	}
}

func TestWebhookSignature(t *testing.T) {
	t.Parallel()

	calls := 0
	f := newFixture(t, Deps{
		WebhookSecret: testWebhookKey,
		Payments: stubPayments{webhook: func(req model.WebhookRequest) (*model.WebhookResult, error) {
			calls++
			return &model.WebhookResult{OK: true, Status: model.PaymentPaid}, nil
		}},
	})
	body := []byte(`{"chargeId":"pi_1","status":"paid","amount":500,"type":"charge.succeeded"}`)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "sha256=00")
	if rec := f.do(req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, SignWebhook([]byte(testWebhookKey), body))
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good signature: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("expected service to be called once, got %d", calls)
	}
}

func TestLoginAndLogoutCookies(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{Accounts: stubAccounts{}})

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.co","password":"secret-pass"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != auth.CookieName || c.Value != "signed-token" || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 3600 {
		t.Fatalf("unexpected session cookie %+v", c)
	}

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("logout must expire the cookie, got %+v", cookies)
	}
}

func TestSetUserRoleUsesAdminKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{Accounts: stubAccounts{}})

	req := httptest.NewRequest(http.MethodPatch, "/admin/users/u9/role", strings.NewReader(`{"role":"organizer"}`))
	if rec := f.do(req); rec.Code != http.StatusForbidden {
		t.Fatalf("missing key: expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/admin/users/u9/role", strings.NewReader(`{"role":"organizer"}`))
	req.Header.Set("X-Admin-Key", "bootstrap")
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var user model.User
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil || user.ID != "u9" || user.Role != model.RoleOrganizer {
		t.Fatalf("unexpected user %+v %v", user, err)
	}
}

func TestRegistrationsReport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{Reports: stubReports{}})

	req := httptest.NewRequest(http.MethodGet, "/reports/registrations?eventId=e1", nil)
	req.AddCookie(f.cookie(t, "o1", model.RoleOrganizer))
	rec := f.do(req)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected report response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "id,userId,eventId") {
		t.Fatalf("unexpected csv %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/reports/registrations?eventId=e1", nil)
	req.AddCookie(f.cookie(t, "s1", model.RoleStudent))
	rec = f.do(req)
	if rec.Code != http.StatusForbidden || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("forbidden export must be a JSON error, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{Events: stubEvents{}})

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := f.do(req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != testOrigin {
		t.Fatalf("unexpected preflight %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = f.do(req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unlisted origin must not be allowed")
	}
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestChatSocket(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{Chat: stubChat{}})
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	cfg, err := websocket.NewConfig("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws?eventId=ev", testOrigin)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Header.Set("Cookie", f.cookie(t, "s1", model.RoleStudent).String())
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	var frame chatFrame
	if err := dec.Decode(&frame); err != nil || frame.Type != "joined" || frame.EventID != "ev" {
		t.Fatalf("expected joined frame, got %+v %v", frame, err)
	}

	if err := enc.Encode(chatFrame{Type: "message", EventID: "ev", Body: "hello"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	frame = chatFrame{}
	if err := dec.Decode(&frame); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if frame.Type != "message" || frame.Message == nil || frame.Message.Body != "hello" || frame.Message.UserID != "s1" {
		t.Fatalf("unexpected broadcast %+v", frame)
	}

	if err := enc.Encode(chatFrame{Type: "message", EventID: "other", Body: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	frame = chatFrame{}
	if err := dec.Decode(&frame); err != nil || frame.Type != "error" || frame.Code != string(apperr.CodeInvalidState) {
		t.Fatalf("expected error frame for unjoined channel, got %+v %v", frame, err)
	}
}
