package services

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
	"github.com/localnerve/voicehome/internal/models"
	"github.com/localnerve/voicehome/internal/types"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SettingsUpdateInput is a partial settings update; nil fields are left alone
type SettingsUpdateInput struct {
	VoiceResponsesEnabled     *bool                     `json:"voice_responses_enabled"`
	AutoConfirmation          *bool                     `json:"auto_confirmation"`
	NoiseSuppression          *bool                     `json:"noise_suppression"`
	EmergencyCommandsPriority *bool                     `json:"emergency_commands_priority"`
	VoiceTimbre               *string                   `json:"voice_timbre" validate:"omitempty,oneof=male female neutral"`
	SpeechSpeed               *int                      `json:"speech_speed" validate:"omitempty,min=50,max=200"`
	Volume                    *int                      `json:"volume" validate:"omitempty,min=0,max=100"`
	VoicePitch                *int                      `json:"voice_pitch" validate:"omitempty,min=80,max=300"`
	CustomKeywords            *types.FlexList[string]   `json:"custom_keywords"`
	CommandSequences          *[]map[string]interface{} `json:"command_sequences"`
	HotKeys                   *[]map[string]interface{} `json:"hot_keys"`
}

func (in SettingsUpdateInput) changes() (map[string]interface{}, error) {
	changes := map[string]interface{}{}
	if in.VoiceResponsesEnabled != nil {
		changes["voice_responses_enabled"] = *in.VoiceResponsesEnabled
	}
	if in.AutoConfirmation != nil {
		changes["auto_confirmation"] = *in.AutoConfirmation
	}
	if in.NoiseSuppression != nil {
		changes["noise_suppression"] = *in.NoiseSuppression
	}
	if in.EmergencyCommandsPriority != nil {
		changes["emergency_commands_priority"] = *in.EmergencyCommandsPriority
	}
	if in.VoiceTimbre != nil {
		changes["voice_timbre"] = *in.VoiceTimbre
	}
	if in.SpeechSpeed != nil {
		changes["speech_speed"] = *in.SpeechSpeed
	}
	if in.Volume != nil {
		changes["volume"] = *in.Volume
	}
	if in.VoicePitch != nil {
		changes["voice_pitch"] = *in.VoicePitch
	}

	lists := []struct {
		column string
		value  interface{}
		set    bool
	}{
		{"custom_keywords", in.CustomKeywords, in.CustomKeywords != nil},
		{"command_sequences", in.CommandSequences, in.CommandSequences != nil},
		{"hot_keys", in.HotKeys, in.HotKeys != nil},
	}
	for _, list := range lists {
		if !list.set {
			continue
		}
		raw, err := json.Marshal(list.value)
		if err != nil {
			return nil, err
		}
		changes[list.column] = models.NewJSON(raw)
	}

	return changes, nil
}

// GetSettings returns the user's settings, creating defaults on first access
func GetSettings(db *gorm.DB, userID uint64) (*models.UserSettings, error) {
	var settings *models.UserSettings

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		settings, err = getOrCreateSettings(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings applies a partial update to the user's settings
func UpdateSettings(db *gorm.DB, userID uint64, input SettingsUpdateInput) (*models.UserSettings, error) {
	changes, err := input.changes()
	if err != nil {
		return nil, err
	}

	var settings *models.UserSettings
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		if settings, err = getOrCreateSettings(tx, userID); err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		if err := tx.Model(settings).Updates(changes).Error; err != nil {
			return err
		}

		settings = &models.UserSettings{}
		return tx.Where("user_id = ?", userID).First(settings).Error
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func getOrCreateSettings(tx *gorm.DB, userID uint64) (*models.UserSettings, error) {
	if _, err := GetUser(tx, userID); err != nil {
		return nil, err
	}

	var settings models.UserSettings
	err := tx.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := models.NewDefaultSettings(userID)
	if err := tx.Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}
