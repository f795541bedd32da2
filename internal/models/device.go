package models

import (
	"time"
)

// Device is a controllable appliance owned by a single user
type Device struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	DeviceType string     `gorm:"size:100;not null;index" json:"device_type"`
	Location   *string    `gorm:"size:255" json:"location"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	IsOn       bool       `gorm:"not null;default:false" json:"is_on"`
	OwnerID    uint64     `gorm:"not null;index" json:"owner_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`

	Commands []Command `gorm:"foreignKey:DeviceID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName overrides the table name for Device
func (Device) TableName() string {
	return "devices"
}
