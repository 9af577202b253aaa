package models

import "time"

// Credential is the login record of an account, 1:1 with Account and keyed by
// AccountID. It also carries the single active refresh token.
//
// RefreshToken and RefreshTokenExpiresAt are either both set or both nil.
type Credential struct {
	AccountID             string
	Login                 string
	PasswordHash          string `json:"-"`
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
}

// SetRefreshToken replaces the stored refresh token and its expiry.
func (c *Credential) SetRefreshToken(token string, expiresAt time.Time) {
	c.RefreshToken = &token
	c.RefreshTokenExpiresAt = &expiresAt
}

// HasRefreshToken reports whether a refresh token was ever issued.
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != nil && c.RefreshTokenExpiresAt != nil
}
