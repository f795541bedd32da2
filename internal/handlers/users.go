package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/localnerve/voicehome/internal/utils"
	"gorm.io/gorm"
)

// UserHandler handles user routes
type UserHandler struct {
	DB *gorm.DB
}

// CreateUser handles POST /api/users
// @Summary Create a user
// @Description Create a user with default settings
// @Tags Users
// @Accept json
// @Produce json
// @Param user body services.UserCreateInput true "User"
// @Success 201 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var input services.UserCreateInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	user, err := services.CreateUser(h.DB.WithContext(c.UserContext()), input)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// ListUsers handles GET /api/users
// @Summary List users
// @Tags Users
// @Produce json
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size" default(100)
// @Success 200 {array} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	users, err := services.ListUsers(h.DB.WithContext(c.UserContext()), page)
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GetUser handles GET /api/users/:id
// @Summary Get a user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	user, err := services.GetUser(h.DB.WithContext(c.UserContext()), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(user)
}

// DeleteUser handles DELETE /api/users/:id
// @Summary Delete a user
// @Description Delete a user with their devices, commands, settings and audio records
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.DeletedResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := services.DeleteUser(h.DB.WithContext(c.UserContext()), id); err != nil {
		return serviceError(c, err)
	}
	return utils.DeletedResponse(c, "User deleted successfully")
}
