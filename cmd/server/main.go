package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/config"
	"github.com/uniplus/uniplus-api/internal/database"
	"github.com/uniplus/uniplus-api/internal/handlers"
	"github.com/uniplus/uniplus-api/internal/notifier"
)

func main() {
	cfg := config.LoadConfig()

	db := database.Connect(cfg)

	displayLoc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.DisplayTimezone).Msg("unknown display timezone, falling back to UTC")
		displayLoc = time.UTC
	}

	// Notifications always land in the store; the Discord ops channel is
	// mirrored in when a bot token is configured.
	sinks := notifier.Multi{notifier.NewStoreNotifier(db)}
	if cfg.DiscordBotToken != "" && cfg.DiscordNotificationsChannelID != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
		if err != nil {
			log.Error().Err(err).Msg("discord notifier not initialized")
		} else {
			sinks = append(sinks, notifier.NewDiscordNotifier(session, cfg.DiscordNotificationsChannelID))
		}
	}

	authHandler := auth.NewAuthHandler(cfg, db)

	h := &handlers.Handlers{
		Auth:          authHandler,
		Events:        handlers.NewEventHandler(db, sinks, authHandler),
		Registrations: handlers.NewRegistrationHandler(db, sinks, authHandler),
		Approvals:     handlers.NewApprovalHandler(db, sinks, authHandler),
		CheckIns:      handlers.NewCheckInHandler(db, sinks, authHandler, displayLoc),
		Tickets:       handlers.NewTicketHandler(db, authHandler, displayLoc),
		Notifications: handlers.NewNotificationHandler(db, authHandler),
		APIKeys:       handlers.NewAPIKeyHandler(db, authHandler),
	}

	r := chi.NewRouter()
	handlers.RegisterRoutes(r, h)

	log.Info().Str("port", cfg.Port).Msg("starting server")
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
