package handlers

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"github.com/uniplus/uniplus-api/internal/notifier"
	"gorm.io/gorm"
)

type EventHandler struct {
	db          *gorm.DB
	notifier    notifier.Notifier
	authHandler *auth.AuthHandler
}

func NewEventHandler(db *gorm.DB, notifier notifier.Notifier, authHandler *auth.AuthHandler) *EventHandler {
	return &EventHandler{db: db, notifier: notifier, authHandler: authHandler}
}

type ScheduleDayInput struct {
	Date      string `json:"date" doc:"Calendar date (YYYY-MM-DD)" required:"true"`
	StartTime string `json:"start_time" doc:"Start time (HH:MM)" required:"true"`
	EndTime   string `json:"end_time" doc:"End time (HH:MM)" required:"true"`
}

type CreateEventRequest struct {
	auth.AuthInput
	Body struct {
		Title             string             `json:"title" required:"true"`
		Description       string             `json:"description"`
		StartDateRegister time.Time          `json:"start_date_register" required:"true"`
		EndDateRegister   time.Time          `json:"end_date_register" required:"true"`
		Address           string             `json:"address"`
		IsOnline          bool               `json:"is_online"`
		MeetingLink       string             `json:"meeting_link"`
		Category          string             `json:"category"`
		Tags              []string           `json:"tags"`
		Capacity          *uint              `json:"capacity" doc:"Omit for unlimited"`
		ScheduleDays      []ScheduleDayInput `json:"schedule_days" required:"true"`
	}
}

type CreateEventResponse struct {
	Body struct {
		Success       bool   `json:"success"`
		Message       string `json:"message"`
		EventID       uint   `json:"event_id"`
		ScheduleCount int    `json:"schedule_count"`
	}
}

func (h *EventHandler) HandleCreateEvent(ctx context.Context, input *CreateEventRequest) (*CreateEventResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleOrganizer && !user.IsAdmin() {
		return nil, huma.Error403Forbidden("Only organizers can create events")
	}

	if len(input.Body.ScheduleDays) == 0 {
		return nil, huma.Error400BadRequest("At least one schedule day is required")
	}
	if input.Body.EndDateRegister.Before(input.Body.StartDateRegister) {
		return nil, huma.Error400BadRequest("Registration close cannot be before registration open")
	}

	days := make([]models.ScheduleDay, 0, len(input.Body.ScheduleDays))
	for _, d := range input.Body.ScheduleDays {
		if _, err := time.Parse("2006-01-02", d.Date); err != nil {
			return nil, huma.Error400BadRequest("Invalid schedule date " + d.Date + ". Use YYYY-MM-DD.")
		}
		if !validTimeOfDay(d.StartTime) || !validTimeOfDay(d.EndTime) {
			return nil, huma.Error400BadRequest("Invalid schedule time on " + d.Date + ". Use HH:MM.")
		}
		days = append(days, models.ScheduleDay{
			Date:      d.Date,
			StartTime: d.StartTime,
			EndTime:   d.EndTime,
		})
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].Date != days[j].Date {
			return days[i].Date < days[j].Date
		}
		return days[i].StartTime < days[j].StartTime
	})

	firstStart, _ := time.Parse("2006-01-02 15:04", days[0].Date+" "+days[0].StartTime)
	lastEnd, _ := time.Parse("2006-01-02 15:04", days[len(days)-1].Date+" "+days[len(days)-1].EndTime)

	event := models.Event{
		OrganizerID:        user.ID,
		Title:              input.Body.Title,
		Description:        input.Body.Description,
		StartDateRegister:  input.Body.StartDateRegister,
		EndDateRegister:    input.Body.EndDateRegister,
		StartDate:          firstStart,
		EndDate:            lastEnd,
		Address:            input.Body.Address,
		IsOnline:           input.Body.IsOnline,
		MeetingLink:        input.Body.MeetingLink,
		Category:           input.Body.Category,
		Tags:               input.Body.Tags,
		Capacity:           input.Body.Capacity,
		StatusRegistration: models.RegistrationOpen,
		VerificationStatus: models.VerificationPending,
		AttendeeIDs:        []uint{},
		ScheduleDays:       days,
	}

	if err := h.db.Create(&event).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to create event")
	}

	if err := h.notifier.Notify(user, "Your event \""+event.Title+"\" was submitted and is awaiting admin verification.", models.NotifyEventPending, nil, &event); err != nil {
		log.Error().Err(err).Uint("event_id", event.ID).Msg("failed to dispatch event-pending notification")
	}

	res := &CreateEventResponse{}
	res.Body.Success = true
	res.Body.Message = "Event created successfully"
	res.Body.EventID = event.ID
	res.Body.ScheduleCount = len(days)
	return res, nil
}

type GetEventRequest struct {
	EventID uint `path:"event_id"`
}

type EventDetail struct {
	models.Event
	AttendeeCount int   `json:"attendee_count"`
	Available     *uint `json:"available"`
}

type GetEventResponse struct {
	Body EventDetail
}

func (h *EventHandler) HandleGetEvent(ctx context.Context, input *GetEventRequest) (*GetEventResponse, error) {
	var event models.Event
	err := h.db.Preload("ScheduleDays", func(db *gorm.DB) *gorm.DB {
		return db.Order("date, start_time")
	}).First(&event, input.EventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Event not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load event")
	}

	return &GetEventResponse{Body: EventDetail{
		Event:         event,
		AttendeeCount: len(event.AttendeeIDs),
		Available:     event.Available(),
	}}, nil
}

type ListEventsResponse struct {
	Body struct {
		Events     []EventDetail `json:"events"`
		TotalCount int           `json:"total_count"`
	}
}

// HandleListEvents lists publicly visible (admin-approved) events.
func (h *EventHandler) HandleListEvents(ctx context.Context, input *struct{}) (*ListEventsResponse, error) {
	var events []models.Event
	err := h.db.Preload("ScheduleDays", func(db *gorm.DB) *gorm.DB {
		return db.Order("date, start_time")
	}).Where("verification_status = ?", models.VerificationApproved).
		Order("start_date").Find(&events).Error
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list events")
	}

	res := &ListEventsResponse{}
	for i := range events {
		res.Body.Events = append(res.Body.Events, EventDetail{
			Event:         events[i],
			AttendeeCount: len(events[i].AttendeeIDs),
			Available:     events[i].Available(),
		})
	}
	res.Body.TotalCount = len(res.Body.Events)
	return res, nil
}

type VerifyEventRequest struct {
	auth.AuthInput
	EventID uint `path:"event_id"`
}

type VerifyEventResponse struct {
	Body struct {
		Success            bool   `json:"success"`
		Message            string `json:"message"`
		EventID            uint   `json:"event_id"`
		VerificationStatus string `json:"verification_status"`
	}
}

func (h *EventHandler) HandleVerifyEvent(ctx context.Context, input *VerifyEventRequest) (*VerifyEventResponse, error) {
	return h.setVerification(input, models.VerificationApproved)
}

func (h *EventHandler) HandleRejectEvent(ctx context.Context, input *VerifyEventRequest) (*VerifyEventResponse, error) {
	return h.setVerification(input, models.VerificationRejected)
}

func (h *EventHandler) setVerification(input *VerifyEventRequest, status string) (*VerifyEventResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, huma.Error403Forbidden("Only admins can verify events")
	}

	var event models.Event
	if err := h.db.Preload("Organizer").First(&event, input.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Event not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load event")
	}

	event.VerificationStatus = status
	if err := h.db.Model(&event).Update("verification_status", status).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to update event")
	}

	notifyType := models.NotifyEventApproved
	if status == models.VerificationRejected {
		notifyType = models.NotifyEventRejected
	}
	msg := notifier.EventVerifiedMessage(&event, status == models.VerificationApproved)
	if err := h.notifier.Notify(event.Organizer, msg, notifyType, nil, &event); err != nil {
		log.Error().Err(err).Uint("event_id", event.ID).Msg("failed to dispatch verification notification")
	}

	res := &VerifyEventResponse{}
	res.Body.Success = true
	res.Body.Message = "Event " + status
	res.Body.EventID = event.ID
	res.Body.VerificationStatus = status
	return res, nil
}

func validTimeOfDay(s string) bool {
	if _, err := time.Parse("15:04", s); err == nil {
		return true
	}
	_, err := time.Parse("15:04:05", s)
	return err == nil
}
