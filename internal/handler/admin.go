package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// ApproveEvent handles PATCH /admin/events/{id}/approve
func (a *API) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.Events.Approve)
}

// PublishEvent handles PATCH /admin/events/{id}/publish
func (a *API) PublishEvent(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.Events.Publish)
}

// RejectEvent handles PATCH /admin/events/{id}/reject
// The body {"reason": "..."} is optional.
func (a *API) RejectEvent(w http.ResponseWriter, r *http.Request) {
	var req model.RejectEventRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		a.errs.badRequest(w, r, err)
		return
	}

	event, err := a.Events.Reject(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// SetUserRole handles PATCH /admin/users/{id}/role
// Authorized by the X-Admin-Key header instead of a session.
func (a *API) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req model.SetRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}

	user, err := a.Accounts.SetRole(r.Context(), r.Header.Get("X-Admin-Key"), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
