package identity

import (
	"time"

	"github.com/google/uuid"
)

// LoginInput contains credentials for authentication
type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// UserInfo carries the public view of a user
type UserInfo struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// LoginResult is returned after successful authentication
type LoginResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
	ExpiresIn             int64     `json:"expires_in"`
	User                  UserInfo  `json:"user"`
}

// RefreshTokenInput contains the refresh token to exchange
type RefreshTokenInput struct {
	RefreshToken string
}

// RefreshTokenResult is returned after a successful refresh
type RefreshTokenResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
	ExpiresIn             int64     `json:"expires_in"`
}

// LogoutInput identifies the session to revoke
type LogoutInput struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	JTI      string
	TokenTTL time.Duration
}
