package repository

import (
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opendesk/chat-core/internal/domain"
)

// Open connects to MySQL and migrates the chat tables.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&domain.ChatUser{},
		&domain.Conversation{},
		&domain.Message{},
	); err != nil {
		return nil, err
	}

	log.Info().Msg("mysql connected")
	return db, nil
}
