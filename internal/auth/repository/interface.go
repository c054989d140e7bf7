package repository

import authdomain "voicetask-backend/internal/auth/domain"

// UserRepository defines the interface for user and token persistence
type UserRepository interface {
	Create(user *authdomain.User) error
	FindByEmail(email string) (*authdomain.User, error)
	FindByID(id string) (*authdomain.User, error)
	Update(user *authdomain.User) error

	SaveRefreshToken(token *authdomain.RefreshToken) error
	FindRefreshToken(token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(token string) error
	DeleteRefreshTokensByUser(userID string) error

	SaveMagicLinkToken(token *authdomain.MagicLinkToken) error
	// ConsumeMagicLinkToken atomically marks an unused, unexpired token
	// as used and returns it; nil means no such token
	ConsumeMagicLinkToken(tokenHash string) (*authdomain.MagicLinkToken, error)
	DeleteExpiredMagicLinkTokens() error
}
