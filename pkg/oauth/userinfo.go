package oauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/mockidp/pkg/logging"
)

// Verifier checks a compact JWT and returns its claims. *keys.Manager
// implements it.
type Verifier interface {
	Verify(token string) (jwt.MapClaims, error)
}

// UserInfoService answers the OIDC user-info endpoint.
type UserInfoService struct {
	verifier Verifier
	users    UserRegistry
	logger   *slog.Logger
}

// NewUserInfoService creates the service.
func NewUserInfoService(verifier Verifier, users UserRegistry, logger *slog.Logger) (*UserInfoService, error) {
	if verifier == nil || users == nil {
		return nil, errors.New("user info requires a verifier and a user registry")
	}
	return &UserInfoService{
		verifier: verifier,
		users:    users,
		logger:   logging.Component(logger, "oauth"),
	}, nil
}

// UserInfo resolves the user behind an access token. The oid claim is
// preferred over sub. Any verification failure is ErrInvalidToken; a valid
// token for a user that no longer exists is ErrUserNotFound.
func (s *UserInfoService) UserInfo(ctx context.Context, token string) (*UserInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidToken.WithDescription("bearer token is required")
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("userinfo token rejected", "error", err)
		return nil, ErrInvalidToken
	}

	userID, _ := claims["oid"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	user, ok := s.users.FindByID(userID)
	if !ok {
		return nil, ErrUserNotFound.WithDescription("user not found")
	}

	return &UserInfo{
		Sub:               user.ID,
		Name:              user.DisplayName,
		GivenName:         user.GivenName,
		FamilyName:        user.Surname,
		PreferredUsername: user.UserPrincipalName,
		Email:             user.Email(),
	}, nil
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
