package services

import (
	"errors"
	"fmt"

	"github.com/localnerve/voicehome/internal/models"
	"gorm.io/gorm"
)

// DeviceCreateInput is the body for registering a device
type DeviceCreateInput struct {
	Name       string  `json:"name" validate:"required,max=255"`
	DeviceType string  `json:"device_type" validate:"required,max=100"`
	Location   *string `json:"location" validate:"omitempty,max=255"`
}

// DeviceUpdateInput is a partial device update; nil fields are left alone
type DeviceUpdateInput struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	DeviceType *string `json:"device_type" validate:"omitempty,min=1,max=100"`
	Location   *string `json:"location" validate:"omitempty,max=255"`
	IsActive   *bool   `json:"is_active"`
	IsOn       *bool   `json:"is_on"`
}

func (in DeviceUpdateInput) changes() map[string]interface{} {
	changes := map[string]interface{}{}
	if in.Name != nil {
		changes["name"] = *in.Name
	}
	if in.DeviceType != nil {
		changes["device_type"] = *in.DeviceType
	}
	if in.Location != nil {
		changes["location"] = *in.Location
	}
	if in.IsActive != nil {
		changes["is_active"] = *in.IsActive
	}
	if in.IsOn != nil {
		changes["is_on"] = *in.IsOn
	}
	return changes
}

// CreateDevice registers a new device for the user. New devices are active and off.
func CreateDevice(db *gorm.DB, userID uint64, input DeviceCreateInput) (*models.Device, error) {
	if _, err := GetUser(db, userID); err != nil {
		return nil, err
	}

	device := &models.Device{
		Name:       input.Name,
		DeviceType: input.DeviceType,
		Location:   input.Location,
		IsActive:   true,
		IsOn:       false,
		OwnerID:    userID,
	}
	if err := db.Create(device).Error; err != nil {
		return nil, err
	}
	return device, nil
}

// ListDevices returns a page of the user's devices ordered by ID
func ListDevices(db *gorm.DB, userID uint64, page Page) ([]models.Device, error) {
	page = page.Normalize()

	devices := []models.Device{}
	err := db.Where("owner_id = ?", userID).
		Order("id").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&devices).Error
	return devices, err
}

// GetDevice retrieves one of the user's devices
func GetDevice(db *gorm.DB, userID, id uint64) (*models.Device, error) {
	var device models.Device
	if err := db.Where("owner_id = ?", userID).First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("device %d: %w", id, ErrDeviceNotFound)
		}
		return nil, err
	}
	return &device, nil
}

// UpdateDevice applies a partial update to one of the user's devices
func UpdateDevice(db *gorm.DB, userID, id uint64, input DeviceUpdateInput) (*models.Device, error) {
	var device *models.Device

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if device, err = GetDevice(tx, userID, id); err != nil {
			return err
		}

		changes := input.changes()
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(device).Updates(changes).Error; err != nil {
			return err
		}

		device, err = GetDevice(tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// ToggleDevice flips the power state of one of the user's devices
func ToggleDevice(db *gorm.DB, userID, id uint64) (*models.Device, error) {
	var device *models.Device

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if device, err = GetDevice(tx, userID, id); err != nil {
			return err
		}

		device.IsOn = !device.IsOn
		return tx.Model(device).Update("is_on", device.IsOn).Error
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// DeleteDevice removes one of the user's devices.
// Commands that referenced it are kept with a null device.
func DeleteDevice(db *gorm.DB, userID, id uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		device, err := GetDevice(tx, userID, id)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Command{}).
			Where("device_id = ?", device.ID).
			Update("device_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(device).Error
	})
}
