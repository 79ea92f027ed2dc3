package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"

	TicketRegistered = "registered"
	TicketPresent    = "present"
)

// EventDay is one entry of a ticket's schedule snapshot, copied from the
// event's schedule days at registration time.
type EventDay struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
	IsOnline    bool   `json:"is_online"`
	MeetingLink string `json:"meeting_link"`
}

// Ticket is one attendee's registration for one event. The (event, attendee)
// pair is unique at the database level so a concurrent double-register
// surfaces as a duplicate-key error rather than a second row.
type Ticket struct {
	gorm.Model
	EventID    uint  `gorm:"uniqueIndex:idx_event_attendee" json:"event_id"`
	Event      Event `json:"-"`
	AttendeeID uint  `gorm:"uniqueIndex:idx_event_attendee" json:"attendee_id"`
	Attendee   User  `json:"-"`

	QRCode       string `gorm:"uniqueIndex" json:"qr_code"`
	TicketNumber string `gorm:"uniqueIndex" json:"ticket_number"`

	ApprovalStatus string     `gorm:"default:pending" json:"approval_status"`
	ApprovedAt     *time.Time `json:"approved_at"`
	RejectedAt     *time.Time `json:"rejected_at"`

	// Point-in-time copies so later event edits never alter issued tickets.
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	EventTitle  string `json:"event_title"`
	Location    string `json:"location"`
	IsOnline    bool   `json:"is_online"`
	MeetingLink string `json:"meeting_link"`

	EventDates []EventDay `gorm:"serializer:json" json:"event_dates"`

	// CheckedInDates maps a snapshot date (2006-01-02) to the UTC check-in
	// time. Entries are append-only and never overwritten.
	CheckedInDates map[string]time.Time `gorm:"serializer:json" json:"checked_in_dates"`
	CheckedInAt    *time.Time           `json:"checked_in_at"`
	Status         string               `gorm:"default:registered" json:"status"`
}

// SnapshotDates returns the calendar dates of the ticket's snapshot,
// normalized to 2006-01-02. Longer stored values (legacy rows carried full
// timestamps) are truncated to the date part.
func (t *Ticket) SnapshotDates() []string {
	var dates []string
	for _, d := range t.EventDates {
		if len(d.Date) >= 10 {
			dates = append(dates, d.Date[:10])
		}
	}
	return dates
}

// ValidForDate reports whether date (2006-01-02) is covered by the snapshot.
// Tickets with an empty snapshot predate multi-day schedules and accept any
// date.
func (t *Ticket) ValidForDate(date string) bool {
	dates := t.SnapshotDates()
	if len(dates) == 0 {
		return true
	}
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}
