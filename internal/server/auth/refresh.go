package auth

import (
	"crypto/subtle"
	"time"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/server/models"
)

// RefreshTokenIssuer mints opaque refresh tokens and checks presented tokens
// against the one stored on a credential.
type RefreshTokenIssuer struct {
	lifetime time.Duration
	now      func() time.Time
}

func NewRefreshTokenIssuer(lifetime time.Duration) *RefreshTokenIssuer {
	return &RefreshTokenIssuer{lifetime: lifetime, now: time.Now}
}

// Generate returns 32 random bytes in standard base64 together with the
// moment the token stops being valid.
func (i *RefreshTokenIssuer) Generate() (string, time.Time, error) {
	token, err := common.MakeRandBase64String(common.RefreshTokenSize)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, i.now().Add(i.lifetime).UTC(), nil
}

// Check reports whether token is the refresh token stored on cred and has not
// expired yet. A token is expired from its expiry instant onwards.
func (i *RefreshTokenIssuer) Check(cred *models.Credential, token string) bool {
	if cred == nil || !cred.HasRefreshToken() || token == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*cred.RefreshToken), []byte(token)) != 1 {
		return false
	}
	return i.now().Before(*cred.RefreshTokenExpiresAt)
}
