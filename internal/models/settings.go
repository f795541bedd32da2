package models

import (
	"time"
)

// Settings defaults
const (
	DefaultVoiceTimbre = "female"
	DefaultSpeechSpeed = 100
	DefaultVolume      = 80
	DefaultVoicePitch  = 200
)

// UserSettings holds voice rendering preferences, one row per user.
// None of these fields influence command processing.
type UserSettings struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"uniqueIndex;not null" json:"user_id"`

	VoiceResponsesEnabled     bool `gorm:"not null;default:true" json:"voice_responses_enabled"`
	AutoConfirmation          bool `gorm:"not null;default:false" json:"auto_confirmation"`
	NoiseSuppression          bool `gorm:"not null;default:true" json:"noise_suppression"`
	EmergencyCommandsPriority bool `gorm:"not null;default:true" json:"emergency_commands_priority"`

	VoiceTimbre string `gorm:"size:20;not null;default:female" json:"voice_timbre"`
	SpeechSpeed int    `gorm:"not null;default:100" json:"speech_speed"`
	Volume      int    `gorm:"not null;default:80" json:"volume"`
	VoicePitch  int    `gorm:"not null;default:200" json:"voice_pitch"`

	CustomKeywords   JSON `json:"custom_keywords"`
	CommandSequences JSON `json:"command_sequences"`
	HotKeys          JSON `json:"hot_keys"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// NewDefaultSettings returns the settings a new user starts with.
// Boolean defaults are set explicitly because GORM skips zero values on insert.
func NewDefaultSettings(userID uint64) *UserSettings {
	return &UserSettings{
		UserID:                    userID,
		VoiceResponsesEnabled:     true,
		AutoConfirmation:          false,
		NoiseSuppression:          true,
		EmergencyCommandsPriority: true,
		VoiceTimbre:               DefaultVoiceTimbre,
		SpeechSpeed:               DefaultSpeechSpeed,
		Volume:                    DefaultVolume,
		VoicePitch:                DefaultVoicePitch,
		CustomKeywords:            EmptyJSONArray(),
		CommandSequences:          EmptyJSONArray(),
		HotKeys:                   EmptyJSONArray(),
	}
}

// TableName overrides the table name for UserSettings
func (UserSettings) TableName() string {
	return "user_settings"
}
