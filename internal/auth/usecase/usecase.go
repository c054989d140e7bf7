package usecase

import (
	"time"

	authdomain "voicetask-backend/internal/auth/domain"
	authdto "voicetask-backend/internal/auth/dto"
)

// AuthUsecase defines the interface for passwordless authentication
type AuthUsecase interface {
	// RequestMagicLink emails a single-use sign-in link. It succeeds
	// whether or not the address belongs to an existing user.
	RequestMagicLink(email, name string) error

	// VerifyMagicLink consumes a link token and signs the user in,
	// creating the account on first use
	VerifyMagicLink(token string) (*authdto.TokenResponse, error)

	// RefreshToken exchanges a valid refresh token for a fresh pair
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)

	// Logout revokes one refresh token
	Logout(refreshToken string) error

	// ValidateToken verifies an access token and loads its user
	ValidateToken(tokenString string) (*authdomain.User, error)
}

// LinkSender delivers the sign-in link to the user's inbox
type LinkSender interface {
	SendMagicLink(to, link string, expiry time.Duration) error
}
