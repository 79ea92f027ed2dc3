package handlers

import (
	"testing"
	"time"

	"github.com/uniplus/uniplus-api/internal/auth"
	"github.com/uniplus/uniplus-api/internal/config"
	"github.com/uniplus/uniplus-api/internal/database"
	"github.com/uniplus/uniplus-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestAuth(db *gorm.DB) *auth.AuthHandler {
	return auth.NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db)
}

func createUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	user := models.User{Username: username, Email: username + "@example.com", Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func asUser(t *testing.T, a *auth.AuthHandler, user models.User) auth.AuthInput {
	t.Helper()
	token, err := a.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return auth.AuthInput{Cookie: auth.CookieName + "=" + token}
}

// createWorkshop seeds an event with two schedule days, owned by organizer.
func createWorkshop(t *testing.T, db *gorm.DB, organizer models.User, capacity *uint) models.Event {
	t.Helper()
	event := models.Event{
		OrganizerID:        organizer.ID,
		Title:              "Workshop",
		Description:        "Two-day workshop",
		StartDateRegister:  time.Now().Add(-24 * time.Hour),
		EndDateRegister:    time.Now().Add(24 * time.Hour),
		Address:            "Building 4, Room 101",
		Capacity:           capacity,
		StatusRegistration: models.RegistrationOpen,
		VerificationStatus: models.VerificationApproved,
		AttendeeIDs:        []uint{},
		ScheduleDays: []models.ScheduleDay{
			{Date: "2025-11-05", StartTime: "09:00", EndTime: "17:00"},
			{Date: "2025-11-06", StartTime: "09:00", EndTime: "12:00"},
		},
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}
	return event
}

func capOf(n uint) *uint { return &n }
