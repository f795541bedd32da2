// common.go
//
// A smart-home voice command service with multi-database support
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of voicehome.
// voicehome is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// voicehome is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with voicehome.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/middleware"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/localnerve/voicehome/internal/types"
	"github.com/localnerve/voicehome/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the JSON body into out and validates it
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return types.NewCustomError(fiber.StatusBadRequest,
			fmt.Sprintf("Invalid request body: %v", err), types.ErrorTypeValidation)
	}
	if err := validate.Struct(out); err != nil {
		return types.NewCustomError(fiber.StatusBadRequest, validationMessage(err), types.ErrorTypeValidation)
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}

	parts := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

// parsePage reads the skip and limit query parameters
func parsePage(c *fiber.Ctx) (services.Page, error) {
	page := services.Page{Skip: c.QueryInt("skip", 0), Limit: c.QueryInt("limit", services.DefaultLimit)}
	if page.Skip < 0 || page.Limit < 1 {
		return page, types.NewCustomError(fiber.StatusBadRequest,
			"skip must be >= 0 and limit must be >= 1", types.ErrorTypeValidation)
	}
	return page.Normalize(), nil
}

// parseID reads a positive integer path parameter
func parseID(c *fiber.Ctx, name string) (uint64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, types.NewCustomError(fiber.StatusBadRequest,
			fmt.Sprintf("Invalid %s %q", name, raw), types.ErrorTypeValidation)
	}
	return id, nil
}

// currentUser returns the acting user resolved by the identity middleware
func currentUser(c *fiber.Ctx) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, types.NewCustomError(fiber.StatusForbidden, "No user for request", types.ErrorTypeAuthorization)
	}
	return id, nil
}

// serviceError maps service sentinel errors to responses.
// Anything unrecognized goes to the global error handler.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return utils.NotFoundResponse(c, "User not found")
	case errors.Is(err, services.ErrDeviceNotFound):
		return utils.NotFoundResponse(c, "Device not found")
	case errors.Is(err, services.ErrCommandNotFound):
		return utils.NotFoundResponse(c, "Command not found")
	case errors.Is(err, services.ErrUsernameTaken):
		return utils.ErrorResponse(c, "Username already registered", fiber.StatusBadRequest, types.ErrorTypeConflict)
	case errors.Is(err, services.ErrEmailTaken):
		return utils.ErrorResponse(c, "Email already registered", fiber.StatusBadRequest, types.ErrorTypeConflict)
	case errors.Is(err, services.ErrEmptyCommand):
		return utils.ErrorResponse(c, "Text or audio data is required", fiber.StatusBadRequest, types.ErrorTypeValidation)
	case errors.Is(err, services.ErrInvalidAudio):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, types.ErrorTypeValidation)
	}
	return err
}
