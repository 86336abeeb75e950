package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/policy"
)

var reportHeader = []string{"id", "userId", "eventId", "status", "paymentStatus", "createdAt"}

// ReportService exports registration listings.
type ReportService struct {
	events        EventRepository
	registrations RegistrationRepository
}

// NewReportService constructs a ReportService.
func NewReportService(events EventRepository, registrations RegistrationRepository) *ReportService {
	return &ReportService{events: events, registrations: registrations}
}

// RegistrationsCSV writes the registrations of eventID as CSV to w. The
// authorization check runs before anything is written.
func (s *ReportService) RegistrationsCSV(ctx context.Context, actor model.Actor, eventID string, w io.Writer) error {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if err := policy.Require(actor, policy.ExportReport, eventResource(ev)); err != nil {
		return err
	}
	regs, err := s.registrations.ListByEvent(ctx, ev.ID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, r := range regs {
		row := []string{
			r.ID,
			r.UserID,
			r.EventID,
			string(r.Status),
			string(r.Payment.Status),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
