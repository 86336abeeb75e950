package handler

import (
	"bytes"
	"net/http"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// RegistrationsReport handles GET /reports/registrations?eventId=
// The CSV is rendered fully before the response starts so a failure still
// produces a JSON error.
func (a *API) RegistrationsReport(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	var buf bytes.Buffer
	if err := a.Reports.RegistrationsCSV(r.Context(), actorFrom(r.Context()), eventID, &buf); err != nil {
		a.errs.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="registrations-`+eventID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// SendEmail handles POST /notify/email
func (a *API) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}
	if err := a.Notify.SendEmail(r.Context(), actorFrom(r.Context()), req); err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, model.MessageResponse{Message: "queued"})
}
