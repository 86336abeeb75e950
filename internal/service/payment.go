package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/clock"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/policy"
)

const (
	mockProvider    = "mock"
	defaultCurrency = "INR"
)

// PaymentService drives the two-state mock payment attached to a registration.
type PaymentService struct {
	tx            Transactor
	registrations RegistrationRepository
	clock         clock.Clock
	checkoutBase  string
	logger        *slog.Logger
}

// NewPaymentService constructs a PaymentService. checkoutBase is the prefix
// of the URL returned by Checkout, without a trailing slash.
func NewPaymentService(
	tx Transactor,
	registrations RegistrationRepository,
	clk clock.Clock,
	checkoutBase string,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		tx:            tx,
		registrations: registrations,
		clock:         clk,
		checkoutBase:  strings.TrimRight(checkoutBase, "/"),
		logger:        orDiscard(logger),
	}
}

// Checkout marks a confirmed registration's payment pending under a fresh
// charge key.
func (s *PaymentService) Checkout(ctx context.Context, actor model.Actor, req model.CheckoutRequest) (*model.CheckoutResult, error) {
	if req.RegistrationID == "" {
		return nil, apperr.Invalid("registrationId", "registrationId is required")
	}
	if req.Amount <= 0 {
		return nil, apperr.Invalid("amount", "amount must be positive")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	key := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	err = retryConflicts(ctx, s.logger, "payment.checkout", func() error {
		return s.tx.WithTx(ctx, func(txCtx context.Context) error {
			reg, err := s.registrations.GetForUpdate(txCtx, req.RegistrationID)
			if err != nil {
				return err
			}
			if err := policy.Require(actor, policy.Checkout, policy.Resource{OwnerID: reg.UserID}); err != nil {
				return err
			}
			if reg.Status != model.RegistrationConfirmed {
				return apperr.WithMetadata(apperr.CodeInvalidState,
					"registration is not confirmed",
					map[string]string{"Status": string(reg.Status)},
				)
			}
			if reg.Payment.Status == model.PaymentPaid {
				return apperr.WithMetadata(apperr.CodeInvalidState,
					"registration is already paid",
					map[string]string{"Status": string(reg.Payment.Status)},
				)
			}
			payment := model.Payment{
				Status:    model.PaymentPending,
				Provider:  mockProvider,
				ChargeKey: key,
				Amount:    req.Amount,
				Currency:  currency,
			}
			return s.registrations.SetPayment(txCtx, reg.ID, payment, s.clock.Now())
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout started",
		"registration_id", req.RegistrationID,
		"charge_key", key,
		"amount", req.Amount,
		"currency", currency,
	)
	return &model.CheckoutResult{ChargeKey: key, CheckoutURL: s.checkoutBase + "/" + key}, nil
}

// Webhook applies a provider callback. Only a pending payment is ever
// updated; later deliveries for the same key are acknowledged as duplicates.
func (s *PaymentService) Webhook(ctx context.Context, req model.WebhookRequest) (*model.WebhookResult, error) {
	key := strings.TrimSpace(req.Key())
	if key == "" {
		return nil, apperr.Invalid("chargeId", "chargeId is required")
	}
	outcome := model.PaymentFailed
	if strings.EqualFold(strings.TrimSpace(req.Status), string(model.PaymentPaid)) {
		outcome = model.PaymentPaid
	}

	reg, applied, err := s.registrations.ResolvePayment(ctx, key, outcome, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !applied {
		s.logger.Warn("duplicate payment webhook ignored",
			"charge_key", key,
			"stored_status", string(reg.Payment.Status),
			"delivered_status", req.Status,
		)
		return &model.WebhookResult{OK: true, Status: reg.Payment.Status, Duplicate: true}, nil
	}

	s.logger.Info("payment resolved", "charge_key", key, "registration_id", reg.ID, "status", string(outcome))
	return &model.WebhookResult{OK: true, Status: outcome}, nil
}

// Status returns the payment sub-state of a registration to its owner or an admin.
func (s *PaymentService) Status(ctx context.Context, actor model.Actor, registrationID string) (*model.Payment, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := policy.Require(actor, policy.ReadRegistration, policy.Resource{OwnerID: reg.UserID}); err != nil {
		return nil, err
	}
	p := reg.Payment
	return &p, nil
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return defaultCurrency, nil
	}
	if len(c) != 3 {
		return "", apperr.Invalid("currency", "currency must be a 3-letter code")
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", apperr.Invalid("currency", "currency must be a 3-letter code")
		}
	}
	return c, nil
}
