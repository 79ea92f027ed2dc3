package models

import (
	"gorm.io/gorm"
)

const (
	NotifyRegistration  = "registration"
	NotifyApproval      = "approval"
	NotifyRejection     = "rejection"
	NotifyCheckIn       = "check_in"
	NotifyEventPending  = "event_pending_approval"
	NotifyEventApproved = "event_approved"
	NotifyEventRejected = "event_rejected"
)

type Notification struct {
	gorm.Model
	UserID           uint   `gorm:"index:idx_user_read" json:"user_id"`
	User             User   `json:"-"`
	Message          string `json:"message"`
	NotificationType string `json:"notification_type"`
	RelatedTicketID  *uint  `json:"related_ticket_id"`
	RelatedEventID   *uint  `json:"related_event_id"`
	IsRead           bool   `gorm:"index:idx_user_read" json:"is_read"`
}
