package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidruizdev/storefront-backend/internal/users"
	pkgauth "github.com/davidruizdev/storefront-backend/pkg/auth"
	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
)

type userAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type sessionRegistrar interface {
	Create(ctx context.Context, accessID, userID string) error
	Revoke(ctx context.Context, accessID string) error
}

// LoginResult carries the signed token and the authenticated account.
type LoginResult struct {
	Token string         `json:"token"`
	User  *users.UserDTO `json:"user"`
}

// Service ties credential checks, JWT minting, and the server-side session
// registry together.
type Service struct {
	users    userAuthenticator
	sessions sessionRegistrar
	jwt      config.JWTConfig
}

// NewService builds the auth service.
func NewService(users userAuthenticator, sessions sessionRegistrar, jwt config.JWTConfig) (*Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user authenticator required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session registrar required")
	}
	return &Service{users: users, sessions: sessions, jwt: jwt}, nil
}

// Login verifies credentials, mints a JWT, and registers its jti so the token
// can be revoked before expiry.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	jti := uuid.NewString()
	token, err := pkgauth.MintAccessToken(s.jwt, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if err := s.sessions.Create(ctx, jti, user.ID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register session")
	}

	return &LoginResult{Token: token, User: users.FromModel(user)}, nil
}

// Logout revokes the session behind the token's jti.
func (s *Service) Logout(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}
