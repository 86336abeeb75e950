package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// SignatureHeader carries the optional webhook HMAC.
const SignatureHeader = "X-Mock-Signature"

// Checkout handles POST /payments/checkout
func (a *API) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.errs.badRequest(w, r, err)
		return
	}
	res, err := a.Payments.Checkout(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PaymentWebhook handles POST /payments/webhook
// Unauthenticated; when a webhook secret is configured the raw body must
// carry a matching HMAC-SHA256 signature.
func (a *API) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		a.errs.badRequest(w, r, err)
		return
	}

	if a.WebhookSecret != "" {
		if err := verifySignature([]byte(a.WebhookSecret), body, r.Header.Get(SignatureHeader)); err != nil {
			a.Logger.Warn("payment webhook signature rejected", "error", err, "remote_addr", r.RemoteAddr)
			a.errs.fail(w, r, apperr.Wrap(apperr.CodeUnauthenticated, "invalid webhook signature", err))
			return
		}
	}

	// Provider payloads carry extra fields such as amount; they are ignored.
	var req model.WebhookRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
		a.errs.badRequest(w, r, err)
		return
	}

	res, err := a.Payments.Webhook(r.Context(), req)
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PaymentStatus handles GET /payments/{registrationId}/status
func (a *API) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := a.Payments.Status(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "registrationId"))
	if err != nil {
		a.errs.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// verifySignature checks a "sha256=<hex>" HMAC of body.
func verifySignature(secret, body []byte, signature string) error {
	if signature == "" {
		return errors.New("signature is empty")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return errors.New("signature is not hex")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if subtle.ConstantTimeCompare(mac.Sum(nil), got) != 1 {
		return errors.New("signature mismatch")
	}
	return nil
}

// SignWebhook returns the signature header value for body.
func SignWebhook(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
