package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/services"
)

// VoiceHandler handles voice command routes
type VoiceHandler struct {
	Pipeline *services.VoicePipeline
}

// ProcessVoiceCommand handles POST /api/voice/process
// @Summary Process a voice command
// @Description Classify a text or audio command, apply it to the user's devices and record it
// @Tags Voice
// @Accept json
// @Produce json
// @Param user_id query int false "Acting user (ignored when Authorizer is configured)"
// @Param command body services.VoiceCommandRequest true "Voice command"
// @Success 200 {object} services.VoiceCommandResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 429 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /voice/process [post]
func (h *VoiceHandler) ProcessVoiceCommand(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req services.VoiceCommandRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resp, err := h.Pipeline.Process(c.UserContext(), userID, req)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
