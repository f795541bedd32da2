package services

import (
	"errors"
	"fmt"
	"sync"

	"github.com/localnerve/authorizer-go"
	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/models"
	"github.com/localnerve/voicehome/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	authClient *authorizer.AuthorizerClient
	authOnce   sync.Once
	authErr    error
)

// SessionUser is the identity carried by a valid Authorizer session
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	return authClient != nil
}

// InitAuthorizer initializes the Authorizer client once; later calls return the first result
func InitAuthorizer(cfg *config.Config, requestProtocol, requestHost string, log *logrus.Logger) error {
	authOnce.Do(func() {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			authErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}

		redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
		log.WithFields(logrus.Fields{
			"authorizer_url": cfg.AuthzURL,
			"client_id":      cfg.AuthzClientID,
			"redirect_url":   redirectURL,
		}).Info("Initializing Authorizer")

		client, err := authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
		if err != nil {
			authErr = fmt.Errorf("failed to create authorizer client: %w", err)
			return
		}
		authClient = client
	})

	return authErr
}

// ValidateSession validates a session cookie for the given roles
func ValidateSession(cookie string, roles []string) (*SessionUser, error) {
	if authClient == nil {
		return nil, fmt.Errorf("authorizer client not initialized")
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := authClient.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid || res.User == nil {
		return nil, fmt.Errorf("session is not valid")
	}

	// Decode through JSON so only id and email are relied on
	raw, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("session user: %w", err)
	}
	var user SessionUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("session user: %w", err)
	}
	if user.Email == "" {
		return nil, fmt.Errorf("session user has no email")
	}

	return &user, nil
}

// ResolveSessionUser maps a session identity to a local user by email,
// provisioning the user on first sight
func ResolveSessionUser(db *gorm.DB, session *SessionUser) (*models.User, error) {
	user, err := GetUserByEmail(db, session.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	username := session.Email
	if len(username) > 100 {
		username = username[:100]
	}
	return CreateUser(db, UserCreateInput{Username: username, Email: session.Email})
}
