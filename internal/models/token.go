package models

import "time"

// TokenPair is returned after a successful OTP verification or refresh.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Principal is the authenticated caller extracted from an access token.
type Principal struct {
	UserID    string
	Username  string
	UserType  UserType
	TokenID   string
	ExpiresAt time.Time
}
