package middleware

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/localnerve/voicehome/internal/types"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const userIDKey = "userID"

// Identity resolves the acting user for the request.
//
// With an Authorizer configured the cookie_session cookie must hold a valid
// session with the "user" role, and the session is mapped to a local user by
// email. Otherwise the user_id query parameter is used, falling back to the
// configured default user.
func Identity(cfg *config.Config, db *gorm.DB, log *logrus.Logger) fiber.Handler {
	if cfg.AuthEnabled() {
		return func(c *fiber.Ctx) error {
			return authorize(c, cfg, db, log)
		}
	}

	return func(c *fiber.Ctx) error {
		userID := cfg.DefaultUserID
		if raw := c.Query("user_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return types.NewCustomError(fiber.StatusBadRequest,
					fmt.Sprintf("Invalid user_id %q", raw), types.ErrorTypeValidation)
			}
			userID = id
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

func authorize(c *fiber.Ctx, cfg *config.Config, db *gorm.DB, log *logrus.Logger) error {
	if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname(), log); err != nil {
		log.WithError(err).Error("Authorizer unavailable")
		return types.NewCustomError(fiber.StatusServiceUnavailable, "Authorizer unavailable", types.ErrorTypeAuthorization)
	}

	session := c.Cookies("cookie_session")
	if session == "" {
		return types.NewCustomError(fiber.StatusForbidden,
			"Authorizer cookie \"cookie_session\" not found", types.ErrorTypeAuthorization)
	}

	sessionUser, err := services.ValidateSession(session, []string{"user"})
	if err != nil {
		return types.NewCustomError(fiber.StatusForbidden,
			fmt.Sprintf("Invalid session: %v", err), types.ErrorTypeAuthorization)
	}

	user, err := services.ResolveSessionUser(db.WithContext(c.UserContext()), sessionUser)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) || errors.Is(err, services.ErrEmailTaken) {
			return types.NewCustomError(fiber.StatusConflict, err.Error(), types.ErrorTypeConflict)
		}
		return err
	}

	c.Locals("user", sessionUser)
	c.Locals(userIDKey, user.ID)
	return c.Next()
}

// UserID returns the acting user resolved by Identity
func UserID(c *fiber.Ctx) (uint64, bool) {
	id, ok := c.Locals(userIDKey).(uint64)
	return id, ok
}
