package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// CreateEvent handles POST /events
// Creates a draft event owned by the caller.
func (a *API) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}

	event, err := a.Events.CreateEvent(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Lists published events; ?status= selects another status for admins.
func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	status := model.EventStatus(r.URL.Query().Get("status"))
	events, err := a.Events.ListEvents(r.Context(), actorFrom(r.Context()), status)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

// ListMyEvents handles GET /events/mine
func (a *API) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.Events.ListMine(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

// GetEvent handles GET /events/{id}
func (a *API) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := a.Events.GetEvent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /events/{id}/update
// Only draft and approved events can be edited.
func (a *API) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}

	event, err := a.Events.UpdateEvent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// SubmitEvent handles POST /events/{id}/submit
func (a *API) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.Events.Submit)
}

// CloseEvent handles PATCH /events/{id}/close and /admin/events/{id}/close
func (a *API) CloseEvent(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, a.Events.Close)
}

// ListEventRegistrations handles GET /events/{id}/registrations
func (a *API) ListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := a.Registrations.ListForEvent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(regs))
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, model.Actor, string) (*model.Event, error)) {
	event, err := fn(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// nonNil returns an empty slice rather than null for better client compatibility.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
