package services

import (
	"errors"
	"fmt"

	"github.com/localnerve/voicehome/internal/models"
	"gorm.io/gorm"
)

// UserCreateInput is the body for creating a user
type UserCreateInput struct {
	Username string  `json:"username" validate:"required,max=100"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
}

// CreateUser creates a user together with default settings.
// Duplicate usernames and emails are rejected.
func CreateUser(db *gorm.DB, input UserCreateInput) (*models.User, error) {
	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		FullName: input.FullName,
		IsActive: true,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", input.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}

		if err := tx.Model(&models.User{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return err
		}

		return tx.Create(models.NewDefaultSettings(user.ID)).Error
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser retrieves a user by ID
func GetUser(db *gorm.DB, id uint64) (*models.User, error) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func GetUserByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", email, ErrUserNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns a page of users ordered by ID
func ListUsers(db *gorm.DB, page Page) ([]models.User, error) {
	page = page.Normalize()

	users := []models.User{}
	err := db.Order("id").Offset(page.Skip).Limit(page.Limit).Find(&users).Error
	return users, err
}

// DeleteUser removes a user with their devices, commands, settings and audio records
func DeleteUser(db *gorm.DB, id uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := GetUser(tx, id); err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.AudioData{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Command{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&models.Device{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserSettings{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
}
