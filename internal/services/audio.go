package services

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/localnerve/voicehome/internal/models"
	"gorm.io/gorm"
)

// AudioPlaceholderText stands in for speech recognition, which is not performed
const AudioPlaceholderText = "распознанный текст из аудио"

// DecodeAudio decodes base64 audio, with or without a data URL prefix
func DecodeAudio(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, ErrInvalidAudio
		}
		encoded = encoded[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidAudio
	}
	return raw, nil
}

// StoreAudio records an uploaded audio blob. When dir is set the bytes are
// written there under a generated name; otherwise only metadata is kept.
func StoreAudio(tx *gorm.DB, userID uint64, encoded, dir string) (*models.AudioData, error) {
	raw, err := DecodeAudio(encoded)
	if err != nil {
		return nil, err
	}

	audio := &models.AudioData{
		UserID:    userID,
		SizeBytes: int64(len(raw)),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("audio storage: %w", err)
		}
		path := filepath.Join(dir, uuid.NewString()+".audio")
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			return nil, fmt.Errorf("audio storage: %w", err)
		}
		audio.FilePath = &path
	}

	if err := tx.Create(audio).Error; err != nil {
		removeAudioFile(audio)
		return nil, err
	}
	return audio, nil
}

func removeAudioFile(audio *models.AudioData) {
	if audio != nil && audio.FilePath != nil {
		_ = os.Remove(*audio.FilePath)
	}
}
