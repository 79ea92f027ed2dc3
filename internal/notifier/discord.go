package notifier

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/models"
)

// DiscordNotifier mirrors lifecycle events into an ops channel so organizer
// teams see registrations and approvals without opening the dashboard.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}
}

func (n *DiscordNotifier) Notify(user models.User, message, notificationType string, ticket *models.Ticket, event *models.Event) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	var header string
	switch notificationType {
	case models.NotifyRegistration:
		header = "🎟️ **New Registration**"
	case models.NotifyApproval:
		header = "✅ **Registration Approved**"
	case models.NotifyRejection:
		header = "🚫 **Registration Rejected**"
	case models.NotifyCheckIn:
		header = "📋 **Check-in**"
	default:
		header = "🔔 **Notification**"
	}

	body := fmt.Sprintf("%s\n**User:** %s\n%s", header, user.DisplayName(), message)
	if ticket != nil {
		body += fmt.Sprintf("\n**Ticket:** %s", ticket.TicketNumber)
	}

	if _, err := n.session.ChannelMessageSend(n.channelID, body); err != nil {
		log.Error().Err(err).Msg("failed to send discord message")
		return err
	}

	return nil
}
