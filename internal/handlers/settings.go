package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/middleware"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/localnerve/voicehome/internal/types"
	"gorm.io/gorm"
)

// SettingsHandler handles user settings routes
type SettingsHandler struct {
	DB *gorm.DB

	// RequireOwner restricts access to the session user's own settings
	RequireOwner bool
}

// GetSettings handles GET /api/settings/:user_id
// @Summary Get user settings
// @Description Settings are created with defaults on first access
// @Tags Settings
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {object} models.UserSettings
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /settings/{user_id} [get]
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	userID, err := h.owner(c)
	if err != nil {
		return err
	}

	settings, err := services.GetSettings(h.DB.WithContext(c.UserContext()), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(settings)
}

// UpdateSettings handles PUT /api/settings/:user_id
// @Summary Update user settings
// @Description Partial update; omitted fields are unchanged
// @Tags Settings
// @Accept json
// @Produce json
// @Param user_id path int true "User ID"
// @Param settings body services.SettingsUpdateInput true "Changes"
// @Success 200 {object} models.UserSettings
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /settings/{user_id} [put]
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	userID, err := h.owner(c)
	if err != nil {
		return err
	}

	var input services.SettingsUpdateInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	settings, err := services.UpdateSettings(h.DB.WithContext(c.UserContext()), userID, input)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(settings)
}

func (h *SettingsHandler) owner(c *fiber.Ctx) (uint64, error) {
	userID, err := parseID(c, "user_id")
	if err != nil {
		return 0, err
	}

	if h.RequireOwner {
		current, ok := middleware.UserID(c)
		if !ok || current != userID {
			return 0, types.NewCustomError(fiber.StatusForbidden,
				"Settings belong to another user", types.ErrorTypeAuthorization)
		}
	}
	return userID, nil
}
