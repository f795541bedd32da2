package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/middleware"
	"github.com/localnerve/voicehome/internal/types"
	"github.com/localnerve/voicehome/internal/utils"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders every unhandled error as the standard error envelope
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"
		errorType := types.ErrorTypeInternal

		var customErr *types.CustomError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &customErr):
			code = customErr.Code
			message = customErr.Message
			errorType = customErr.Type
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
			if code == fiber.StatusNotFound {
				errorType = types.ErrorTypeNotFound
			} else if code < fiber.StatusInternalServerError {
				errorType = types.ErrorTypeValidation
			}
		}

		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"request_id": middleware.GetRequestID(c),
				"path":       c.Path(),
			}).Error("Request failed")
		}

		return utils.ErrorResponse(c, message, code, errorType)
	}
}

// NotFound is the catch-all for unmatched routes
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundResponse(c, "[404] Resource Not Found")
}
