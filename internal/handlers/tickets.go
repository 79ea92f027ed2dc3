package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/models"
	"gorm.io/gorm"
)

type TicketHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
	displayLoc  *time.Location
}

func NewTicketHandler(db *gorm.DB, authHandler *auth.AuthHandler, displayLoc *time.Location) *TicketHandler {
	if displayLoc == nil {
		displayLoc = time.UTC
	}
	return &TicketHandler{db: db, authHandler: authHandler, displayLoc: displayLoc}
}

type MyTicketsRequest struct {
	auth.AuthInput
	Status string `query:"status" enum:"pending,approved,rejected,"`
}

type TicketSummary struct {
	TicketID       uint              `json:"ticket_id"`
	QRCode         string            `json:"qr_code"`
	TicketNumber   string            `json:"ticket_number"`
	EventID        uint              `json:"event_id"`
	EventTitle     string            `json:"event_title"`
	Date           string            `json:"date"`
	Time           string            `json:"time"`
	Location       string            `json:"location"`
	IsOnline       bool              `json:"is_online"`
	MeetingLink    string            `json:"meeting_link"`
	EventDates     []models.EventDay `json:"event_dates"`
	ApprovalStatus string            `json:"approval_status"`
	PurchaseDate   time.Time         `json:"purchase_date"`
	CheckedInAt    *string           `json:"checked_in_at"`
	Status         string            `json:"status"`
}

type MyTicketsResponse struct {
	Body struct {
		Tickets       []TicketSummary `json:"tickets"`
		TotalCount    int             `json:"total_count"`
		PendingCount  int64           `json:"pending_count"`
		ApprovedCount int64           `json:"approved_count"`
		RejectedCount int64           `json:"rejected_count"`
	}
}

// HandleMyTickets lists the caller's tickets. One malformed legacy row never
// breaks the listing; it is skipped and logged.
func (h *TicketHandler) HandleMyTickets(ctx context.Context, input *MyTicketsRequest) (*MyTicketsResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	query := h.db.Where("attendee_id = ?", user.ID)
	if input.Status != "" {
		query = query.Where("approval_status = ?", input.Status)
	}

	var tickets []models.Ticket
	if err := query.Order("created_at desc").Find(&tickets).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to load tickets")
	}

	res := &MyTicketsResponse{}
	for i := range tickets {
		summary, err := h.summarize(&tickets[i])
		if err != nil {
			log.Error().Err(err).Uint("ticket_id", tickets[i].ID).Msg("skipping malformed ticket")
			continue
		}
		res.Body.Tickets = append(res.Body.Tickets, summary)
	}
	res.Body.TotalCount = len(res.Body.Tickets)
	h.db.Model(&models.Ticket{}).Where("attendee_id = ? AND approval_status = ?", user.ID, models.ApprovalPending).Count(&res.Body.PendingCount)
	h.db.Model(&models.Ticket{}).Where("attendee_id = ? AND approval_status = ?", user.ID, models.ApprovalApproved).Count(&res.Body.ApprovedCount)
	h.db.Model(&models.Ticket{}).Where("attendee_id = ? AND approval_status = ?", user.ID, models.ApprovalRejected).Count(&res.Body.RejectedCount)
	return res, nil
}

func (h *TicketHandler) summarize(t *models.Ticket) (TicketSummary, error) {
	summary := TicketSummary{
		TicketID:       t.ID,
		QRCode:         t.QRCode,
		TicketNumber:   t.TicketNumber,
		EventID:        t.EventID,
		EventTitle:     t.EventTitle,
		Location:       t.Location,
		IsOnline:       t.IsOnline,
		MeetingLink:    t.MeetingLink,
		EventDates:     t.EventDates,
		ApprovalStatus: t.ApprovalStatus,
		PurchaseDate:   t.CreatedAt,
		Status:         t.Status,
	}

	if len(t.EventDates) > 0 {
		summary.Date = t.EventDates[0].Date
		summary.Time = t.EventDates[0].StartTime
	}

	if t.CheckedInAt != nil {
		formatted := t.CheckedInAt.In(h.displayLoc).Format(time.RFC3339)
		summary.CheckedInAt = &formatted
	}

	return summary, nil
}

type TicketDetailRequest struct {
	auth.AuthInput
	TicketID uint `path:"ticket_id"`
}

type TicketDetailResponse struct {
	Body struct {
		TicketSummary
		EventDescription string               `json:"event_description"`
		Organizer        string               `json:"organizer"`
		UserName         string               `json:"user_name"`
		UserEmail        string               `json:"user_email"`
		CheckedInDates   map[string]time.Time `json:"checked_in_dates"`
	}
}

func (h *TicketHandler) HandleTicketDetail(ctx context.Context, input *TicketDetailRequest) (*TicketDetailResponse, error) {
	user, err := h.authHandler.CurrentUser(input.AuthInput)
	if err != nil {
		return nil, err
	}

	var ticket models.Ticket
	err = h.db.Preload("Event.Organizer").
		Where("id = ? AND attendee_id = ?", input.TicketID, user.ID).
		First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Ticket not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load ticket")
	}

	summary, err := h.summarize(&ticket)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to render ticket")
	}

	res := &TicketDetailResponse{}
	res.Body.TicketSummary = summary
	res.Body.EventDescription = ticket.Event.Description
	res.Body.Organizer = ticket.Event.Organizer.Username
	res.Body.UserName = ticket.UserName
	res.Body.UserEmail = ticket.UserEmail
	res.Body.CheckedInDates = ticket.CheckedInDates
	return res, nil
}

// HandleTicketQR serves the ticket's QR payload as a PNG. Raw chi route
// behind JWTMiddleware since huma is JSON-only.
func (h *TicketHandler) HandleTicketQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(auth.UserIDKey).(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ticketID, err := strconv.ParseUint(chi.URLParam(r, "ticket_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ticket id", http.StatusBadRequest)
		return
	}

	var ticket models.Ticket
	if err := h.db.Where("id = ? AND attendee_id = ?", ticketID, userID).First(&ticket).Error; err != nil {
		http.Error(w, "Ticket not found", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(ticket.QRCode, qrcode.Medium, 256)
	if err != nil {
		log.Error().Err(err).Uint("ticket_id", ticket.ID).Msg("failed to encode QR code")
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
