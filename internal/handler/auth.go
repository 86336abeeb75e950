package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

type sessionResponse struct {
	User *model.User `json:"user"`
}

// Signup handles POST /auth/register
func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}
	user, err := a.Accounts.Signup(r.Context(), req)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{User: user})
}

// Login handles POST /auth/login and sets the session cookie.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}
	user, token, err := a.Accounts.Login(r.Context(), req)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	http.SetCookie(w, a.sessionCookie(token, int(a.SessionTTL.Seconds())))
	writeJSON(w, http.StatusOK, sessionResponse{User: user})
}

// Logout handles POST /auth/logout by expiring the cookie.
func (a *API) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, a.sessionCookie("", -1))
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "logged out"})
}

// Me handles GET /auth/me
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.Accounts.Me(r.Context(), actorFrom(r.Context()))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: user})
}

func (a *API) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
