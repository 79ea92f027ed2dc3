// Package notifier is the fire-and-forget side effect sink for the ticket
// lifecycle. Core handlers call Notify after their transaction commits and
// only ever log a failure; a broken sink never rolls back a ticket.
package notifier

import (
	"errors"
	"fmt"

	"github.com/uniplus/uniplus-api/internal/models"
	"gorm.io/gorm"
)

type Notifier interface {
	Notify(user models.User, message, notificationType string, ticket *models.Ticket, event *models.Event) error
}

// StoreNotifier persists notifications so the frontend bell menu can list
// them.
type StoreNotifier struct {
	db *gorm.DB
}

func NewStoreNotifier(db *gorm.DB) *StoreNotifier {
	return &StoreNotifier{db: db}
}

func (n *StoreNotifier) Notify(user models.User, message, notificationType string, ticket *models.Ticket, event *models.Event) error {
	notification := models.Notification{
		UserID:           user.ID,
		Message:          message,
		NotificationType: notificationType,
	}
	if ticket != nil {
		notification.RelatedTicketID = &ticket.ID
	}
	if event != nil {
		notification.RelatedEventID = &event.ID
	}
	return n.db.Create(&notification).Error
}

// Multi fans a notification out to every configured sink.
type Multi []Notifier

func (m Multi) Notify(user models.User, message, notificationType string, ticket *models.Ticket, event *models.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(user, message, notificationType, ticket, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Message builders shared by the handlers.

func RegistrationMessage(t *models.Ticket) string {
	return fmt.Sprintf("Your registration for %q was received and is awaiting organizer approval. Ticket number: %s.", t.EventTitle, t.TicketNumber)
}

func ApprovalMessage(t *models.Ticket) string {
	return fmt.Sprintf("Your registration for %q was approved. See you there!", t.EventTitle)
}

func RejectionMessage(t *models.Ticket) string {
	return fmt.Sprintf("Your registration for %q was not approved.", t.EventTitle)
}

func EventVerifiedMessage(e *models.Event, approved bool) string {
	if approved {
		return fmt.Sprintf("Your event %q was approved and is now publicly listed.", e.Title)
	}
	return fmt.Sprintf("Your event %q was rejected by an administrator.", e.Title)
}
