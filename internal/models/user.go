package models

import (
	"strings"

	"gorm.io/gorm"
)

const (
	RoleStudent   = "student"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex" json:"username"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PhoneNumber  string `json:"phone_number"`
	Role         string `gorm:"default:student" json:"role"`
	DiscordID    string `gorm:"index" json:"discord_id,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
}

// DisplayName falls back to the username when no real name is set.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
