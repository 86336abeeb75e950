package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Register handles POST /registrations
// Reserves one slot of a published event for the caller.
//
// Returns 201 on success, 404 if the event doesn't exist, 400 if it is not
// open, and 409 when it is full or the caller is already registered.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}

	reg, err := a.Registrations.Register(r.Context(), actorFrom(r.Context()), req.EventID)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// CancelRegistration handles DELETE /registrations/{id}
func (a *API) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := a.Registrations.Cancel(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ListMyRegistrations handles GET /registrations/me
func (a *API) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := a.Registrations.ListMine(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(regs))
}
