package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// TokenVerifier resolves a session token to the actor it names.
type TokenVerifier interface {
	Verify(token string) (model.Actor, error)
}

// Logger returns a structured access log middleware.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", requestID(r),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}

// CORS allows credentialed requests from the listed origins only.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok && origin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Accept-Language, X-Admin-Key")
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionActor reads and verifies the session cookie.
func sessionActor(tokens TokenVerifier, r *http.Request) (model.Actor, error) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil {
		return model.Actor{}, apperr.New(apperr.CodeUnauthenticated, "no token cookie")
	}
	return tokens.Verify(strings.TrimSpace(cookie.Value))
}

// Authenticate rejects requests without a valid session with 401.
func Authenticate(tokens TokenVerifier, errs errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := sessionActor(tokens, r)
			if err != nil {
				errs.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// OptionalActor attaches the session actor when the cookie is valid and
// lets anonymous requests through otherwise.
func OptionalActor(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor, err := sessionActor(tokens, r); err == nil {
				r = r.WithContext(withActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects authenticated callers whose role is not role.
// It must run after Authenticate.
func RequireRole(role model.Role, errs errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actorFrom(r.Context()).Role != role {
				errs.fail(w, r, apperr.New(apperr.CodeForbidden, string(role)+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
