package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"github.com/uniplus/uniplus-api/internal/notifier"
	"gorm.io/gorm"
)

type ApprovalHandler struct {
	db          *gorm.DB
	notifier    notifier.Notifier
	authHandler *auth.AuthHandler
}

func NewApprovalHandler(db *gorm.DB, notifier notifier.Notifier, authHandler *auth.AuthHandler) *ApprovalHandler {
	return &ApprovalHandler{db: db, notifier: notifier, authHandler: authHandler}
}

type ApprovalRequest struct {
	auth.AuthInput
	EventID  uint   `path:"event_id"`
	TicketID string `path:"ticket_id" doc:"Ticket number or QR code"`
}

type ApprovalResponse struct {
	Body struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		TicketID string `json:"ticket_id"`
		Status   string `json:"status"`
	}
}

func (h *ApprovalHandler) HandleApprove(ctx context.Context, input *ApprovalRequest) (*ApprovalResponse, error) {
	return h.applyAction(input, models.ApprovalApproved)
}

func (h *ApprovalHandler) HandleReject(ctx context.Context, input *ApprovalRequest) (*ApprovalResponse, error) {
	return h.applyAction(input, models.ApprovalRejected)
}

func (h *ApprovalHandler) applyAction(input *ApprovalRequest, newStatus string) (*ApprovalResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	var ticket models.Ticket
	changed := false
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, input.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return huma.Error404NotFound("Event not found")
			}
			return err
		}
		if event.OrganizerID != user.ID {
			return huma.Error403Forbidden("You are not authorized to perform this action")
		}

		t, err := resolveEventTicket(tx, event.ID, input.TicketID)
		if err != nil {
			return err
		}
		ticket = *t

		switch newStatus {
		case models.ApprovalApproved:
			if ticket.ApprovalStatus == models.ApprovalRejected {
				return huma.Error409Conflict("Ticket was already rejected and its spot released")
			}
			if ticket.ApprovalStatus == models.ApprovalApproved {
				return nil // idempotent re-approval
			}
			now := time.Now().UTC()
			ticket.ApprovalStatus = models.ApprovalApproved
			ticket.ApprovedAt = &now
			changed = true
			return tx.Model(&ticket).Updates(map[string]interface{}{
				"approval_status": ticket.ApprovalStatus,
				"approved_at":     ticket.ApprovedAt,
			}).Error

		case models.ApprovalRejected:
			// Remove from the roster regardless of prior status. Rejecting
			// a still-pending ticket must free its spot too; earlier
			// revisions only removed approved attendees and leaked seats.
			if event.RemoveAttendee(ticket.AttendeeID) {
				// Save so the roster goes through the JSON serializer.
				if err := tx.Save(&event).Error; err != nil {
					return err
				}
			}
			if ticket.ApprovalStatus == models.ApprovalRejected {
				return nil // idempotent re-rejection
			}
			now := time.Now().UTC()
			ticket.ApprovalStatus = models.ApprovalRejected
			ticket.RejectedAt = &now
			changed = true
			return tx.Model(&ticket).Updates(map[string]interface{}{
				"approval_status": ticket.ApprovalStatus,
				"rejected_at":     ticket.RejectedAt,
			}).Error
		}
		return huma.Error400BadRequest("Invalid action")
	})
	if txErr != nil {
		var statusErr huma.StatusError
		if errors.As(txErr, &statusErr) {
			return nil, txErr
		}
		return nil, huma.Error500InternalServerError("Failed to update registration: " + txErr.Error())
	}

	if changed {
		h.notifyDecision(&ticket, newStatus)
	}

	res := &ApprovalResponse{}
	res.Body.Success = true
	if newStatus == models.ApprovalApproved {
		res.Body.Message = "Registration approved"
	} else {
		res.Body.Message = "Registration rejected and spot freed"
	}
	res.Body.TicketID = input.TicketID
	res.Body.Status = newStatus
	return res, nil
}

type BulkActionRequest struct {
	auth.AuthInput
	EventID uint `path:"event_id"`
	Body    struct {
		TicketIDs []string `json:"ticket_ids" doc:"Ticket numbers or QR codes" required:"true"`
		Action    string   `json:"action" enum:"approve,reject" required:"true"`
	}
}

type BulkActionResponse struct {
	Body struct {
		Success        bool     `json:"success"`
		Message        string   `json:"message"`
		TicketIDs      []string `json:"ticket_ids"`
		Status         string   `json:"status"`
		ProcessedCount int      `json:"processed_count"`
	}
}

// HandleBulkAction approves or rejects a batch of registrations. Refs that
// resolve to nothing are skipped rather than failing the batch; the response
// counts only tickets actually mutated.
func (h *ApprovalHandler) HandleBulkAction(ctx context.Context, input *BulkActionRequest) (*BulkActionResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	newStatus := models.ApprovalApproved
	if input.Body.Action == "reject" {
		newStatus = models.ApprovalRejected
	}

	var processed []models.Ticket
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, input.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return huma.Error404NotFound("Event not found")
			}
			return err
		}
		if event.OrganizerID != user.ID {
			return huma.Error403Forbidden("You are not authorized to perform this action")
		}

		var tickets []models.Ticket
		if err := tx.Where("event_id = ? AND ticket_number IN ?", event.ID, input.Body.TicketIDs).
			Find(&tickets).Error; err != nil {
			return err
		}
		if len(tickets) == 0 {
			if err := tx.Where("event_id = ? AND qr_code IN ?", event.ID, input.Body.TicketIDs).
				Find(&tickets).Error; err != nil {
				return err
			}
		}
		if len(tickets) == 0 {
			return huma.Error400BadRequest("No tickets found")
		}

		now := time.Now().UTC()
		rosterChanged := false
		for i := range tickets {
			t := &tickets[i]
			if newStatus == models.ApprovalRejected {
				if event.RemoveAttendee(t.AttendeeID) {
					rosterChanged = true
				}
				if t.ApprovalStatus == models.ApprovalRejected {
					continue
				}
				t.ApprovalStatus = models.ApprovalRejected
				t.RejectedAt = &now
				if err := tx.Model(t).Updates(map[string]interface{}{
					"approval_status": t.ApprovalStatus,
					"rejected_at":     t.RejectedAt,
				}).Error; err != nil {
					return err
				}
			} else {
				// Rejected tickets are terminal; skip silently in batch mode.
				if t.ApprovalStatus != models.ApprovalPending {
					continue
				}
				t.ApprovalStatus = models.ApprovalApproved
				t.ApprovedAt = &now
				if err := tx.Model(t).Updates(map[string]interface{}{
					"approval_status": t.ApprovalStatus,
					"approved_at":     t.ApprovedAt,
				}).Error; err != nil {
					return err
				}
			}
			processed = append(processed, *t)
		}

		if rosterChanged {
			if err := tx.Save(&event).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		var statusErr huma.StatusError
		if errors.As(txErr, &statusErr) {
			return nil, txErr
		}
		return nil, huma.Error500InternalServerError("Failed to process bulk action: " + txErr.Error())
	}

	for i := range processed {
		h.notifyDecision(&processed[i], newStatus)
	}

	res := &BulkActionResponse{}
	res.Body.Success = true
	res.Body.Message = fmt.Sprintf("%d registration(s) %s", len(processed), newStatus)
	res.Body.TicketIDs = input.Body.TicketIDs
	res.Body.Status = newStatus
	res.Body.ProcessedCount = len(processed)
	return res, nil
}

type ListRegistrationsRequest struct {
	auth.AuthInput
	EventID uint   `path:"event_id"`
	Status  string `query:"status" enum:"pending,approved,rejected,"`
}

type RegistrationEntry struct {
	TicketID       uint                 `json:"ticket_id"`
	TicketNumber   string               `json:"ticket_number"`
	QRCode         string               `json:"qr_code"`
	UserName       string               `json:"user_name"`
	UserEmail      string               `json:"user_email"`
	ApprovalStatus string               `json:"approval_status"`
	PurchaseDate   time.Time            `json:"purchase_date"`
	CheckedInDates map[string]time.Time `json:"checked_in_dates"`
	Status         string               `json:"status"`
}

type ListRegistrationsResponse struct {
	Body struct {
		Registrations []RegistrationEntry `json:"registrations"`
		TotalCount    int                 `json:"total_count"`
		PendingCount  int64               `json:"pending_count"`
		ApprovedCount int64               `json:"approved_count"`
		RejectedCount int64               `json:"rejected_count"`
	}
}

// HandleListRegistrations feeds the organizer approval dashboard.
func (h *ApprovalHandler) HandleListRegistrations(ctx context.Context, input *ListRegistrationsRequest) (*ListRegistrationsResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	var event models.Event
	if err := h.db.First(&event, input.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Event not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load event")
	}
	if event.OrganizerID != user.ID && !user.IsAdmin() {
		return nil, huma.Error403Forbidden("You are not authorized to view registrations for this event")
	}

	query := h.db.Where("event_id = ?", event.ID)
	if input.Status != "" {
		query = query.Where("approval_status = ?", input.Status)
	}

	var tickets []models.Ticket
	if err := query.Order("created_at desc").Find(&tickets).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to load registrations")
	}

	res := &ListRegistrationsResponse{}
	for _, t := range tickets {
		res.Body.Registrations = append(res.Body.Registrations, RegistrationEntry{
			TicketID:       t.ID,
			TicketNumber:   t.TicketNumber,
			QRCode:         t.QRCode,
			UserName:       t.UserName,
			UserEmail:      t.UserEmail,
			ApprovalStatus: t.ApprovalStatus,
			PurchaseDate:   t.CreatedAt,
			CheckedInDates: t.CheckedInDates,
			Status:         t.Status,
		})
	}
	res.Body.TotalCount = len(res.Body.Registrations)
	h.db.Model(&models.Ticket{}).Where("event_id = ? AND approval_status = ?", event.ID, models.ApprovalPending).Count(&res.Body.PendingCount)
	h.db.Model(&models.Ticket{}).Where("event_id = ? AND approval_status = ?", event.ID, models.ApprovalApproved).Count(&res.Body.ApprovedCount)
	h.db.Model(&models.Ticket{}).Where("event_id = ? AND approval_status = ?", event.ID, models.ApprovalRejected).Count(&res.Body.RejectedCount)
	return res, nil
}

func (h *ApprovalHandler) notifyDecision(ticket *models.Ticket, newStatus string) {
	var attendee models.User
	if err := h.db.First(&attendee, ticket.AttendeeID).Error; err != nil {
		log.Error().Err(err).Uint("ticket_id", ticket.ID).Msg("failed to load attendee for notification")
		return
	}

	msg := notifier.ApprovalMessage(ticket)
	notifyType := models.NotifyApproval
	if newStatus == models.ApprovalRejected {
		msg = notifier.RejectionMessage(ticket)
		notifyType = models.NotifyRejection
	}
	if err := h.notifier.Notify(attendee, msg, notifyType, ticket, nil); err != nil {
		log.Error().Err(err).Uint("ticket_id", ticket.ID).Msg("failed to dispatch decision notification")
	}
}

// resolveEventTicket looks a ticket up within one event, by ticket number
// first, then by QR code.
func resolveEventTicket(tx *gorm.DB, eventID uint, ref string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := tx.Where("event_id = ? AND ticket_number = ?", eventID, ref).First(&ticket).Error
	if err == nil {
		return &ticket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = tx.Where("event_id = ? AND qr_code = ?", eventID, ref).First(&ticket).Error
	if err == nil {
		return &ticket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, huma.Error404NotFound("Ticket not found")
}
