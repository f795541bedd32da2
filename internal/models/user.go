package models

import (
	"time"
)

// User owns devices, command history, settings and uploaded audio
type User struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName  *string    `gorm:"size:255" json:"full_name"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`

	Devices  []Device      `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Commands []Command     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Settings *UserSettings `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Audio    []AudioData   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}
