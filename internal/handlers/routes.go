package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/uniplus/uniplus-api/internal/auth"
)

type Handlers struct {
	Auth          *auth.AuthHandler
	Events        *EventHandler
	Registrations *RegistrationHandler
	Approvals     *ApprovalHandler
	CheckIns      *CheckInHandler
	Tickets       *TicketHandler
	Notifications *NotificationHandler
	APIKeys       *APIKeyHandler
}

func RegisterRoutes(r *chi.Mux, h *Handlers) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	config := huma.DefaultConfig("UniPlus Event API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, config)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Auth
	huma.Post(api, "/auth/signup", h.Auth.HandleSignup)
	huma.Post(api, "/auth/login", h.Auth.HandleLogin)
	huma.Post(api, "/auth/logout", h.Auth.HandleLogout)
	huma.Get(api, "/me", h.Auth.HandleMe, secured)
	r.Get("/auth/discord/login", h.Auth.HandleDiscordLogin)
	r.Get("/auth/discord/callback", h.Auth.HandleDiscordCallback)

	// Events
	huma.Get(api, "/events", h.Events.HandleListEvents)
	huma.Post(api, "/events", h.Events.HandleCreateEvent, secured)
	huma.Get(api, "/events/{event_id}", h.Events.HandleGetEvent)
	huma.Post(api, "/admin/events/{event_id}/verify", h.Events.HandleVerifyEvent, secured)
	huma.Post(api, "/admin/events/{event_id}/reject", h.Events.HandleRejectEvent, secured)

	// Registration and approval
	huma.Post(api, "/events/{event_id}/register", h.Registrations.HandleRegister, secured)
	huma.Get(api, "/events/{event_id}/registrations", h.Approvals.HandleListRegistrations, secured)
	huma.Post(api, "/events/{event_id}/registrations/{ticket_id}/approve", h.Approvals.HandleApprove, secured)
	huma.Post(api, "/events/{event_id}/registrations/{ticket_id}/reject", h.Approvals.HandleReject, secured)
	huma.Post(api, "/events/{event_id}/registrations/bulk-action", h.Approvals.HandleBulkAction, secured)

	// Check-in
	huma.Post(api, "/checkin", h.CheckIns.HandleCheckIn, secured)

	// Tickets
	huma.Get(api, "/me/tickets", h.Tickets.HandleMyTickets, secured)
	huma.Get(api, "/tickets/{ticket_id}", h.Tickets.HandleTicketDetail, secured)

	// Notifications
	huma.Get(api, "/notifications", h.Notifications.HandleList, secured)
	huma.Post(api, "/notifications/{notification_id}/read", h.Notifications.HandleMarkRead, secured)

	// API keys for scanner devices
	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, secured)
	huma.Get(api, "/api-keys", h.APIKeys.HandleList, secured)
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, secured)

	// Binary responses stay on plain chi.
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.JWTMiddleware)
		r.Get("/tickets/{ticket_id}/qr", h.Tickets.HandleTicketQR)
	})
}

func secured(o *huma.Operation) {
	o.Security = []map[string][]string{{"cookieAuth": {}}, {"apiKeyAuth": {}}}
}
