package models

import (
	"time"
)

// Command status values
const (
	StatusPending  = "pending"
	StatusExecuted = "executed"
	StatusFailed   = "failed"
)

// Command is the history record of one voice interaction.
// DeviceID is nil when no device was resolved or for an emergency stop.
type Command struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint64    `gorm:"not null;index" json:"user_id"`
	DeviceID       *uint64   `gorm:"index" json:"device_id"`
	CommandText    string    `gorm:"type:text;not null" json:"command_text"`
	RecognizedText *string   `gorm:"type:text" json:"recognized_text"`
	Action         *string   `gorm:"size:255" json:"action"`
	Status         string    `gorm:"size:50;not null;default:pending" json:"status"`
	Language       string    `gorm:"size:10;not null;default:ru-RU" json:"language"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`

	Device *Device `gorm:"foreignKey:DeviceID" json:"-"`
}

// TableName overrides the table name for Command
func (Command) TableName() string {
	return "commands"
}
