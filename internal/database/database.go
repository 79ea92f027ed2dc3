package database

import (
	"github.com/rs/zerolog/log"
	"github.com/uniplus/uniplus-api/internal/config"
	"github.com/uniplus/uniplus-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Connect(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to auto migrate")
	}

	return db
}

// Migrate is shared with the test helpers so in-memory databases carry the
// same schema, including the (event, attendee) unique index on tickets.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.ScheduleDay{},
		&models.Ticket{},
		&models.Notification{},
		&models.APIKey{},
	)
}
