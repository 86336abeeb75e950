package model

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Schedule    Schedule `json:"schedule"`
	Location    Location `json:"location"`
	TotalSlots  int      `json:"totalSlots"`
}

// UpdateEventRequest is the payload for editing a draft or approved event.
// Nil fields are left unchanged.
type UpdateEventRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Schedule    *Schedule `json:"schedule,omitempty"`
	Location    *Location `json:"location,omitempty"`
	TotalSlots  *int      `json:"totalSlots,omitempty"`
}

// RejectEventRequest carries the optional admin rejection reason.
type RejectEventRequest struct {
	Reason string `json:"reason"`
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	EventID string `json:"eventId"`
}

// CheckoutRequest starts a mock payment for a registration.
type CheckoutRequest struct {
	RegistrationID string `json:"registrationId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// CheckoutResult is returned by checkout.
type CheckoutResult struct {
	ChargeKey   string `json:"paymentIntentId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// WebhookRequest is the provider callback. Both chargeId and chargeKey are
// accepted as the correlation field.
type WebhookRequest struct {
	ChargeID  string `json:"chargeId"`
	ChargeKey string `json:"chargeKey"`
	Status    string `json:"status"`
}

// Key returns whichever correlation field was supplied.
func (w WebhookRequest) Key() string {
	if w.ChargeKey != "" {
		return w.ChargeKey
	}
	return w.ChargeID
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	OK        bool          `json:"ok"`
	Status    PaymentStatus `json:"status"`
	Duplicate bool          `json:"duplicate"`
}

// SignupRequest creates a user account.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates a user.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SetRoleRequest is the bootstrap role assignment payload.
type SetRoleRequest struct {
	Role string `json:"role"`
}

// EmailRequest is the notification stub payload.
type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
