package dto

import authdomain "voicetask-backend/internal/auth/domain"

type MagicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

type VerifyMagicLinkRequest struct {
	Token string `json:"token" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type TokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         *authdomain.User `json:"user"`
}
