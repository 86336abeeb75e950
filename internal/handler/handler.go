// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty body")

// Translator renders a localized message for an error code.
type Translator interface {
	Translate(acceptLanguage, key string, data map[string]string, fallback string) string
}

type noTranslation struct{}

func (noTranslation) Translate(_, _ string, _ map[string]string, fallback string) string {
	return fallback
}

// errorWriter renders domain errors as the JSON error envelope.
type errorWriter struct {
	translator Translator
	logger     *slog.Logger
}

func newErrorWriter(t Translator, logger *slog.Logger) errorWriter {
	if t == nil {
		t = noTranslation{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return errorWriter{translator: t, logger: logger}
}

// fail maps err to a status code and a localized message. Internal
// failures are logged and never leak their cause.
func (e errorWriter) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()

	fallback := http.StatusText(status)
	var details map[string]string
	var data map[string]string
	if ae, ok := apperr.As(err); ok && code != apperr.CodeInternal {
		fallback = ae.Message
		details = ae.Metadata
		data = make(map[string]string, len(details)+1)
		for k, v := range details {
			data[k] = v
		}
		data["Detail"] = ae.Message
	}
	if status >= http.StatusInternalServerError {
		e.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err,
		)
	}

	msg := e.translator.Translate(r.Header.Get("Accept-Language"), string(code), data, fallback)
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: string(code), Details: details})
}

// badRequest reports an undecodable body.
func (e errorWriter) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	msg := "request body is not valid JSON"
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, errEmptyBody):
		msg = "request body is required"
	case errors.As(err, &maxErr):
		msg = "request body is too large"
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		msg = strings.TrimPrefix(err.Error(), "json: ")
	}
	e.fail(w, r, &apperr.Error{
		Code:     apperr.CodeInvalidArgument,
		Message:  msg,
		Metadata: map[string]string{"Field": "body"},
		Cause:    err,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type actorKey struct{}

func withActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// actorFrom returns the caller, or the zero Actor for anonymous requests.
func actorFrom(ctx context.Context) model.Actor {
	a, _ := ctx.Value(actorKey{}).(model.Actor)
	return a
}
