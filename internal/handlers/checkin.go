package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"github.com/uniplus/uniplus-api/internal/notifier"
	"gorm.io/gorm"
)

type CheckInHandler struct {
	db          *gorm.DB
	notifier    notifier.Notifier
	authHandler *auth.AuthHandler
	displayLoc  *time.Location
}

func NewCheckInHandler(db *gorm.DB, notifier notifier.Notifier, authHandler *auth.AuthHandler, displayLoc *time.Location) *CheckInHandler {
	if displayLoc == nil {
		displayLoc = time.UTC
	}
	return &CheckInHandler{db: db, notifier: notifier, authHandler: authHandler, displayLoc: displayLoc}
}

type CheckInRequest struct {
	auth.AuthInput
	Body struct {
		QRCode    string `json:"qr_code" doc:"QR code, ticket number, or numeric ticket id" required:"true"`
		EventDate string `json:"event_date" doc:"Schedule date being checked in for (YYYY-MM-DD)" required:"true"`
		EventID   uint   `json:"event_id,omitempty" doc:"When set, the ticket must belong to this event"`
	}
}

type CheckInResponse struct {
	Body struct {
		Success          bool   `json:"success"`
		Message          string `json:"message"`
		TicketID         string `json:"ticket_id"`
		AttendeeName     string `json:"attendee_name"`
		EventTitle       string `json:"event_title"`
		EventDate        string `json:"event_date"`
		AlreadyCheckedIn bool   `json:"already_checked_in"`
		CheckedInAt      string `json:"checked_in_at"`
		ApprovalStatus   string `json:"approval_status"`
	}
}

// HandleCheckIn records an attendee's presence for one schedule day. A
// repeat scan for the same date reports the original check-in time instead
// of overwriting it. Resolve and record run in one transaction so two
// concurrent scans for different dates both keep their map entry.
func (h *CheckInHandler) HandleCheckIn(ctx context.Context, input *CheckInRequest) (*CheckInResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	res := &CheckInResponse{}
	var ticket *models.Ticket
	recorded := false
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		t, err := h.resolveTicket(tx, strings.TrimSpace(input.Body.QRCode))
		if err != nil {
			return err
		}
		ticket = t

		// Guards against scanning a ticket from the wrong event's screen.
		if input.Body.EventID != 0 && ticket.EventID != input.Body.EventID {
			return huma.Error400BadRequest(fmt.Sprintf(
				"This ticket belongs to %q, not the current event. Please scan the ticket from the correct event",
				ticket.EventTitle))
		}

		var event models.Event
		if err := tx.First(&event, ticket.EventID).Error; err != nil {
			return huma.Error500InternalServerError("Failed to load event")
		}
		if event.OrganizerID != user.ID {
			return huma.Error403Forbidden("You are not authorized to check in attendees for this event")
		}

		if ticket.ApprovalStatus != models.ApprovalApproved {
			return huma.Error400BadRequest(fmt.Sprintf(
				"Ticket is %s. Only approved tickets can be checked in.", ticket.ApprovalStatus))
		}

		parsedDate, err := time.Parse("2006-01-02", input.Body.EventDate)
		if err != nil {
			return huma.Error400BadRequest("Invalid date format. Use YYYY-MM-DD.")
		}
		dateStr := parsedDate.Format("2006-01-02")

		if !ticket.ValidForDate(dateStr) {
			return huma.Error400BadRequest(fmt.Sprintf(
				"This ticket is not valid for %s. Valid dates: %s",
				dateStr, strings.Join(ticket.SnapshotDates(), ", ")))
		}

		if ticket.CheckedInDates == nil {
			ticket.CheckedInDates = map[string]time.Time{}
		}

		res.Body.TicketID = ticket.QRCode
		res.Body.AttendeeName = ticket.UserName
		res.Body.EventTitle = ticket.EventTitle
		res.Body.EventDate = dateStr
		res.Body.ApprovalStatus = ticket.ApprovalStatus

		if existing, ok := ticket.CheckedInDates[dateStr]; ok {
			res.Body.Success = false
			res.Body.AlreadyCheckedIn = true
			res.Body.CheckedInAt = existing.UTC().Format(time.RFC3339)
			res.Body.Message = fmt.Sprintf("Already checked in for %s at %s",
				dateStr, existing.In(h.displayLoc).Format("02/01/2006 15:04"))
			return nil
		}

		now := time.Now().UTC()
		ticket.CheckedInDates[dateStr] = now
		ticket.CheckedInAt = &now
		ticket.Status = models.TicketPresent
		// Save, not a map Updates: the check-in map only passes through the
		// JSON serializer on full-record writes.
		if err := tx.Save(ticket).Error; err != nil {
			return err
		}

		recorded = true
		res.Body.Success = true
		res.Body.CheckedInAt = now.Format(time.RFC3339)
		res.Body.Message = "Check-in successful for " + dateStr
		return nil
	})
	if txErr != nil {
		var statusErr huma.StatusError
		if errors.As(txErr, &statusErr) {
			return nil, txErr
		}
		return nil, huma.Error500InternalServerError("Failed to record check-in")
	}

	if recorded {
		var attendee models.User
		if err := h.db.First(&attendee, ticket.AttendeeID).Error; err == nil {
			msg := fmt.Sprintf("You were checked in to %q for %s.", ticket.EventTitle, res.Body.EventDate)
			if err := h.notifier.Notify(attendee, msg, models.NotifyCheckIn, ticket, nil); err != nil {
				log.Error().Err(err).Uint("ticket_id", ticket.ID).Msg("failed to dispatch check-in notification")
			}
		}
	}

	return res, nil
}

// resolveTicket tries the indexed lookups in a fixed priority order:
// QR code for UUID-shaped refs, then ticket number, then raw numeric id
// (with or without the T prefix).
func (h *CheckInHandler) resolveTicket(db *gorm.DB, ref string) (*models.Ticket, error) {
	if ref == "" {
		return nil, huma.Error400BadRequest("Ticket reference is required")
	}

	var ticket models.Ticket

	if len(ref) > 20 && strings.Contains(ref, "-") {
		if err := db.Where("qr_code = ?", ref).First(&ticket).Error; err == nil {
			return &ticket, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error500InternalServerError("Failed to look up ticket")
		}
	}

	if err := db.Where("ticket_number = ?", ref).First(&ticket).Error; err == nil {
		return &ticket, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error500InternalServerError("Failed to look up ticket")
	}

	if id, err := strconv.ParseUint(strings.TrimPrefix(ref, "T"), 10, 64); err == nil {
		if err := db.First(&ticket, uint(id)).Error; err == nil {
			return &ticket, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error500InternalServerError("Failed to look up ticket")
		}
	}

	return nil, huma.Error404NotFound(fmt.Sprintf("Ticket %q not found", ref))
}
