package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"github.com/uniplus/uniplus-api/internal/notifier"
	"gorm.io/gorm"
)

type RegistrationHandler struct {
	db          *gorm.DB
	notifier    notifier.Notifier
	authHandler *auth.AuthHandler
}

func NewRegistrationHandler(db *gorm.DB, notifier notifier.Notifier, authHandler *auth.AuthHandler) *RegistrationHandler {
	return &RegistrationHandler{db: db, notifier: notifier, authHandler: authHandler}
}

type RegisterRequest struct {
	auth.AuthInput
	EventID uint `path:"event_id"`
}

type RegisterResponse struct {
	Body struct {
		Success      bool              `json:"success"`
		Message      string            `json:"message"`
		TicketID     uint              `json:"ticket_id"`
		TicketNumber string            `json:"ticket_number"`
		QRCode       string            `json:"qr_code"`
		EventDates   []models.EventDay `json:"event_dates"`
	}
}

// HandleRegister creates a pending ticket for the calling user and appends
// them to the event roster. The ticket write and the roster write commit in
// one transaction; the (event, attendee) unique index turns a concurrent
// double-register into ErrDuplicatedKey.
func (h *RegistrationHandler) HandleRegister(ctx context.Context, input *RegisterRequest) (*RegisterResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	var ticket models.Ticket
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, input.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return huma.Error404NotFound("Event not found")
			}
			return err
		}

		// Duplicate check comes before every other gate so a returning user
		// sees "already registered" rather than "full". The unique index
		// below stays the backstop for the concurrent case.
		var existing int64
		if err := tx.Model(&models.Ticket{}).
			Where("event_id = ? AND attendee_id = ?", event.ID, user.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return huma.Error409Conflict("You are already registered for this event")
		}

		if event.StatusRegistration != models.RegistrationOpen {
			return huma.Error409Conflict("Registration is not open for this event")
		}
		if time.Now().After(event.EndDateRegister) {
			return huma.Error409Conflict("Registration for this event has closed")
		}
		if event.IsFull() {
			return huma.Error409Conflict("This event is full")
		}

		schedule, err := buildSnapshot(tx, &event)
		if err != nil {
			return err
		}

		ticket = models.Ticket{
			EventID:        event.ID,
			AttendeeID:     user.ID,
			QRCode:         uuid.NewString(),
			ApprovalStatus: models.ApprovalPending,
			UserName:       user.DisplayName(),
			UserEmail:      user.Email,
			EventTitle:     event.Title,
			Location:       locationOrTBA(&event),
			IsOnline:       event.IsOnline,
			MeetingLink:    event.MeetingLink,
			EventDates:     schedule,
			CheckedInDates: map[string]time.Time{},
			Status:         models.TicketRegistered,
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}

		// Human-facing number, derived from the row id so the scanner's
		// numeric fallback lookup still resolves it.
		ticket.TicketNumber = fmt.Sprintf("T%06d", ticket.ID)
		if err := tx.Model(&ticket).Update("ticket_number", ticket.TicketNumber).Error; err != nil {
			return err
		}

		// Save, not a column Update: the roster only passes through the JSON
		// serializer on full-record writes.
		if event.AddAttendee(user.ID) {
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
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			return nil, huma.Error409Conflict("You are already registered for this event")
		}
		return nil, huma.Error500InternalServerError("Failed to process registration: " + txErr.Error())
	}

	if err := h.notifier.Notify(user, notifier.RegistrationMessage(&ticket), models.NotifyRegistration, &ticket, nil); err != nil {
		log.Error().Err(err).Uint("ticket_id", ticket.ID).Msg("failed to dispatch registration notification")
	}

	res := &RegisterResponse{}
	res.Body.Success = true
	res.Body.Message = "Successfully registered for the event. Awaiting organizer approval."
	res.Body.TicketID = ticket.ID
	res.Body.TicketNumber = ticket.TicketNumber
	res.Body.QRCode = ticket.QRCode
	res.Body.EventDates = ticket.EventDates
	return res, nil
}

// buildSnapshot copies the event's schedule days onto the ticket. Events
// created before multi-day schedules existed have no rows; those get a
// single synthesized day from the event start.
func buildSnapshot(tx *gorm.DB, event *models.Event) ([]models.EventDay, error) {
	var days []models.ScheduleDay
	if err := tx.Where("event_id = ?", event.ID).
		Order("date, start_time").Find(&days).Error; err != nil {
		return nil, err
	}

	location := locationOrTBA(event)

	schedule := make([]models.EventDay, 0, len(days))
	for _, d := range days {
		schedule = append(schedule, models.EventDay{
			Date:        d.Date,
			StartTime:   d.StartTime,
			EndTime:     d.EndTime,
			Location:    location,
			IsOnline:    event.IsOnline,
			MeetingLink: event.MeetingLink,
		})
	}

	if len(schedule) == 0 {
		start := event.StartDate
		if start.IsZero() {
			start = time.Now().UTC()
		}
		schedule = append(schedule, models.EventDay{
			Date:        start.Format("2006-01-02"),
			StartTime:   start.Format("15:04"),
			EndTime:     "23:59",
			Location:    location,
			IsOnline:    event.IsOnline,
			MeetingLink: event.MeetingLink,
		})
	}

	return schedule, nil
}

func locationOrTBA(event *models.Event) string {
	if event.Address != "" {
		return event.Address
	}
	return "TBA"
}
