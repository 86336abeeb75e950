// Package lifecycle holds the event status state machine. Every entry point
// that changes an event's status consults the single transition table here.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Action is a lifecycle operation on an existing event.
type Action string

const (
	Submit  Action = "submit"
	Approve Action = "approve"
	Reject  Action = "reject"
	Publish Action = "publish"
	Close   Action = "close"
	Edit    Action = "edit"
)

// DefaultRejectReason is stored when an admin rejects without a reason.
const DefaultRejectReason = "Not specified"

type transition struct {
	from []model.EventStatus
	to   model.EventStatus // empty keeps the current status
}

var table = map[Action]transition{
	Submit:  {from: []model.EventStatus{model.EventDraft}, to: model.EventSubmitted},
	Approve: {from: []model.EventStatus{model.EventSubmitted}, to: model.EventApproved},
	Reject:  {from: []model.EventStatus{model.EventSubmitted}, to: model.EventRejected},
	Publish: {from: []model.EventStatus{model.EventApproved}, to: model.EventPublished},
	Close:   {from: []model.EventStatus{model.EventApproved, model.EventPublished}, to: model.EventClosed},
	Edit:    {from: []model.EventStatus{model.EventDraft, model.EventApproved}},
}

// Actions lists every known action.
func Actions() []Action {
	return []Action{Submit, Approve, Reject, Publish, Close, Edit}
}

// AllowedFrom returns the source states from which action may run.
func AllowedFrom(action Action) []model.EventStatus {
	t, ok := table[action]
	if !ok {
		return nil
	}
	return append([]model.EventStatus(nil), t.from...)
}

// Target returns the status an action leads to; for Edit it is current.
func Target(action Action, current model.EventStatus) model.EventStatus {
	if t, ok := table[action]; ok && t.to != "" {
		return t.to
	}
	return current
}

// Check validates that action may run from the event's current status.
func Check(current model.EventStatus, action Action) error {
	t, ok := table[action]
	if !ok {
		return apperr.Invalid("action", fmt.Sprintf("unknown lifecycle action %q", action))
	}
	for _, s := range t.from {
		if s == current {
			return nil
		}
	}
	allowed := joinStatuses(t.from)
	return apperr.WithMetadata(
		apperr.CodeInvalidTransition,
		fmt.Sprintf("cannot %s event in status %s; allowed from: %s", action, current, allowed),
		map[string]string{
			"Action":  string(action),
			"Status":  string(current),
			"Allowed": allowed,
		},
	)
}

// Apply validates the transition and mutates ev in place: status, the
// matching audit stamp and UpdatedAt. The caller persists all of them in one
// write. reason is only used by Reject.
func Apply(ev *model.Event, action Action, actorID string, now time.Time, reason string) error {
	if err := Check(ev.Status, action); err != nil {
		return err
	}
	stamp := now
	switch action {
	case Submit:
		ev.Audit.SubmittedAt = &stamp
	case Approve:
		ev.Audit.ApprovedAt = &stamp
		ev.Audit.ApprovedBy = actorID
	case Reject:
		ev.Audit.RejectedAt = &stamp
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = DefaultRejectReason
		}
		ev.Audit.RejectReason = reason
	case Publish:
		ev.Audit.PublishedAt = &stamp
	case Close:
		ev.Audit.ClosedAt = &stamp
	}
	ev.Status = Target(action, ev.Status)
	ev.UpdatedAt = now
	return nil
}

// Terminal reports whether no action can leave status.
func Terminal(status model.EventStatus) bool {
	for _, t := range table {
		for _, s := range t.from {
			if s == status {
				return false
			}
		}
	}
	return true
}

func joinStatuses(statuses []model.EventStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
