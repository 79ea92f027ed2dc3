package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RegistrationOpen   = "OPEN"
	RegistrationClosed = "CLOSED"

	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Event is an organizer-owned event spanning one or more schedule days.
//
// AttendeeIDs is a denormalized roster of everyone holding a non-rejected
// ticket. It is only ever mutated in the same transaction as the ticket
// write it reflects (register appends, reject removes).
type Event struct {
	gorm.Model
	OrganizerID       uint   `json:"organizer_id"`
	Organizer         User   `json:"-"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	StartDateRegister time.Time `json:"start_date_register"`
	EndDateRegister   time.Time `json:"end_date_register"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Address           string    `json:"address"`
	IsOnline          bool      `json:"is_online"`
	MeetingLink       string    `json:"meeting_link"`
	Category          string    `json:"category"`
	Tags              []string  `gorm:"serializer:json" json:"tags"`
	Capacity          *uint     `json:"capacity"` // nil means unlimited
	StatusRegistration string   `gorm:"default:OPEN" json:"status_registration"`
	VerificationStatus string   `gorm:"default:pending" json:"verification_status"`
	AttendeeIDs        []uint   `gorm:"serializer:json" json:"attendee_ids"`
	ScheduleDays       []ScheduleDay `json:"schedule_days"`
}

// ScheduleDay is one bookable calendar day of an event. Rows are created in
// bulk when the event is created and are immutable afterwards; tickets carry
// their own snapshot so later edits never reach issued tickets.
type ScheduleDay struct {
	gorm.Model
	EventID   uint   `gorm:"index" json:"event_id"`
	Date      string `json:"date"`       // 2006-01-02
	StartTime string `json:"start_time"` // 15:04
	EndTime   string `json:"end_time"`
}

func (e *Event) HasAttendee(userID uint) bool {
	for _, id := range e.AttendeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddAttendee appends userID to the roster if absent. Returns true when the
// roster changed.
func (e *Event) AddAttendee(userID uint) bool {
	if e.HasAttendee(userID) {
		return false
	}
	e.AttendeeIDs = append(e.AttendeeIDs, userID)
	return true
}

// RemoveAttendee drops userID from the roster. Returns true when the roster
// changed.
func (e *Event) RemoveAttendee(userID uint) bool {
	for i, id := range e.AttendeeIDs {
		if id == userID {
			e.AttendeeIDs = append(e.AttendeeIDs[:i], e.AttendeeIDs[i+1:]...)
			return true
		}
	}
	return false
}

// IsFull reports whether the roster has reached capacity. Events without a
// capacity are never full.
func (e *Event) IsFull() bool {
	return e.Capacity != nil && uint(len(e.AttendeeIDs)) >= *e.Capacity
}

// Available returns the remaining seats, or nil for unlimited events.
func (e *Event) Available() *uint {
	if e.Capacity == nil {
		return nil
	}
	var left uint
	if uint(len(e.AttendeeIDs)) < *e.Capacity {
		left = *e.Capacity - uint(len(e.AttendeeIDs))
	}
	return &left
}
