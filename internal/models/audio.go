package models

import (
	"time"
)

// AudioData records metadata for an uploaded audio blob.
// The audio itself is never decoded into speech.
type AudioData struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint64    `gorm:"not null;index" json:"user_id"`
	FilePath   *string   `gorm:"size:500" json:"file_path"`
	SizeBytes  int64     `gorm:"not null;default:0" json:"size_bytes"`
	Duration   *float64  `json:"duration"`
	SampleRate *int      `json:"sample_rate"`
	NoiseLevel *float64  `json:"noise_level"`
	Processed  bool      `gorm:"not null;default:false" json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name for AudioData
func (AudioData) TableName() string {
	return "audio_data"
}
