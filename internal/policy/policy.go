// Package policy decides whether an actor may perform an action on a
// resource. It is a pure function of its inputs: callers load the resource
// owner and status first and pass them in.
package policy

import (
	"fmt"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Action is an operation subject to authorization.
type Action string

const (
	CreateEvent            Action = "event.create"
	ReadEvent              Action = "event.read"
	ListAllEvents          Action = "event.list_all"
	EditEvent              Action = "event.edit"
	SubmitEvent            Action = "event.submit"
	ApproveEvent           Action = "event.approve"
	RejectEvent            Action = "event.reject"
	PublishEvent           Action = "event.publish"
	CloseEvent             Action = "event.close"
	ListEventRegistrations Action = "event.registrations"
	ExportReport           Action = "report.export"

	Register           Action = "registration.create"
	CancelRegistration Action = "registration.cancel"
	ReadRegistration   Action = "registration.read"
	Checkout           Action = "payment.checkout"

	ReadChat          Action = "chat.read"
	PostChatMessage   Action = "chat.message"
	PostAnnouncement  Action = "chat.announcement"
	RemoveChatMessage Action = "chat.remove"

	SendEmail Action = "notify.email"
)

// Decision is the outcome of Authorize.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Resource describes what the action targets. OwnerID is the event creator
// for event and chat actions, and the registrant for registration actions.
// EventStatus is the status of the event involved, when there is one.
type Resource struct {
	OwnerID     string
	EventStatus model.EventStatus
}

// Authorize returns Allow or Deny. Admins bypass ownership checks; an
// anonymous actor (empty role) may only read public events.
func Authorize(actor model.Actor, action Action, res Resource) Decision {
	owner := actor.ID != "" && actor.ID == res.OwnerID
	public := res.EventStatus.Public()

	switch actor.Role {
	case model.RoleAdmin:
		return Allow

	case model.RoleOrganizer:
		switch action {
		case CreateEvent:
			return Allow
		case ReadEvent, ReadChat, PostChatMessage:
			return decide(public || owner)
		case EditEvent, SubmitEvent, CloseEvent, ListEventRegistrations, ExportReport,
			PostAnnouncement, RemoveChatMessage:
			return decide(owner)
		case Register, CancelRegistration, ReadRegistration, Checkout:
			return decide(owner)
		case ApproveEvent, RejectEvent, PublishEvent, ListAllEvents, SendEmail:
			return Deny
		}
		return Deny

	case model.RoleStudent:
		switch action {
		case ReadEvent, ReadChat, PostChatMessage:
			return decide(public)
		case Register, CancelRegistration, ReadRegistration, Checkout:
			return decide(owner)
		}
		return Deny

	default:
		if action == ReadEvent {
			return decide(public)
		}
		return Deny
	}
}

// Require is Authorize returning a FORBIDDEN error on Deny.
func Require(actor model.Actor, action Action, res Resource) error {
	if Authorize(actor, action, res) == Allow {
		return nil
	}
	return apperr.WithMetadata(
		apperr.CodeForbidden,
		fmt.Sprintf("role %q may not perform %s", actor.Role, action),
		map[string]string{"Action": string(action)},
	)
}

func decide(ok bool) Decision {
	if ok {
		return Allow
	}
	return Deny
}
