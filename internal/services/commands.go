package services

import (
	"errors"
	"fmt"

	"github.com/localnerve/voicehome/internal/models"
	"github.com/localnerve/voicehome/internal/types"
	"gorm.io/gorm"
)

// CommandCreateInput is the body for recording a command manually
type CommandCreateInput struct {
	CommandText string            `json:"command_text" validate:"required"`
	DeviceID    *types.FlexUint64 `json:"device_id"`
	Language    string            `json:"language" validate:"omitempty,max=10"`
}

// CreateCommand records a pending command. A referenced device must belong to the user.
func CreateCommand(db *gorm.DB, userID uint64, input CommandCreateInput, defaultLanguage string) (*models.Command, error) {
	command := &models.Command{
		UserID:      userID,
		CommandText: input.CommandText,
		Status:      models.StatusPending,
		Language:    input.Language,
	}
	if command.Language == "" {
		command.Language = defaultLanguage
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetUser(tx, userID); err != nil {
			return err
		}

		if input.DeviceID != nil {
			device, err := GetDevice(tx, userID, input.DeviceID.Uint64())
			if err != nil {
				return err
			}
			command.DeviceID = &device.ID
		}

		return tx.Create(command).Error
	})
	if err != nil {
		return nil, err
	}
	return command, nil
}

// ListCommands returns a page of the user's command history, newest first
func ListCommands(db *gorm.DB, userID uint64, page Page) ([]models.Command, error) {
	page = page.Normalize()

	commands := []models.Command{}
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&commands).Error
	return commands, err
}

// GetCommand retrieves one of the user's commands
func GetCommand(db *gorm.DB, userID, id uint64) (*models.Command, error) {
	var command models.Command
	if err := db.Where("user_id = ?", userID).First(&command, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("command %d: %w", id, ErrCommandNotFound)
		}
		return nil, err
	}
	return &command, nil
}
