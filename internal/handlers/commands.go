package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/services"
	"gorm.io/gorm"
)

// CommandHandler handles command history routes
type CommandHandler struct {
	DB              *gorm.DB
	DefaultLanguage string
}

// CreateCommand handles POST /api/commands
// @Summary Record a command
// @Description Record a pending command without running it
// @Tags Commands
// @Accept json
// @Produce json
// @Param user_id query int false "Acting user"
// @Param command body services.CommandCreateInput true "Command"
// @Success 201 {object} models.Command
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /commands [post]
func (h *CommandHandler) CreateCommand(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var input services.CommandCreateInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	command, err := services.CreateCommand(h.DB.WithContext(c.UserContext()), userID, input, h.DefaultLanguage)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(command)
}

// ListCommands handles GET /api/commands
// @Summary List command history
// @Description Newest first
// @Tags Commands
// @Produce json
// @Param user_id query int false "Acting user"
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size" default(100)
// @Success 200 {array} models.Command
// @Router /commands [get]
func (h *CommandHandler) ListCommands(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	commands, err := services.ListCommands(h.DB.WithContext(c.UserContext()), userID, page)
	if err != nil {
		return err
	}
	return c.JSON(commands)
}

// GetCommand handles GET /api/commands/:id
// @Summary Get a command
// @Tags Commands
// @Produce json
// @Param id path int true "Command ID"
// @Param user_id query int false "Acting user"
// @Success 200 {object} models.Command
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /commands/{id} [get]
func (h *CommandHandler) GetCommand(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	command, err := services.GetCommand(h.DB.WithContext(c.UserContext()), userID, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(command)
}
