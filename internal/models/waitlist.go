package models

import (
	"time"

	"github.com/akeren/waitlist-edge/pkg/constants"
)

// WaitlistRecord is the canonical destination shape. The service does not
// depend on it at runtime; it only seeds --auto-migrate in development, where
// the table name comes from WAITLIST_TABLE rather than TableName.
type WaitlistRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"not null;uniqueIndex"`
	SubscribedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (WaitlistRecord) TableName() string { return constants.DefaultWaitlistTable }
