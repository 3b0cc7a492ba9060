package data

import (
	"time"

	"gorm.io/gorm"
)

// Setting is a runtime override for a configuration value.
type Setting struct {
	ID     uint16 `gorm:"primaryKey"`
	Name   string `gorm:"size:64;not null;uniqueIndex"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null;default:1"`
}

// WebhookEvent is one notification received from the mini-app host.
type WebhookEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Event      string    `gorm:"size:64;index"`
	FID        uint64    `gorm:"column:fid;index"`
	Payload    string    `gorm:"type:mediumtext;not null"`
	ReceivedAt time.Time `gorm:"not null;index"`
}

var allModels = []any{&Setting{}, &WebhookEvent{}}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}

// SaveWebhookEvent stores a raw webhook body.
func SaveWebhookEvent(db *gorm.DB, ev *WebhookEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	return db.Create(ev).Error
}
