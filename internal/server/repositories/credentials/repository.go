// Package credentials stores the login credential of each account together
// with its active refresh token.
package credentials

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tflic/internal/server/models"
)

// Repository is the credential store.
//
// LockByAccountID reads the row with SELECT ... FOR UPDATE and is meant to
// be called inside a transaction, so that concurrent token rotations for one
// account are serialized.
type Repository interface {
	Create(ctx context.Context, c *models.Credential) error
	ExistsByLogin(ctx context.Context, login string) (bool, error)
	GetByLogin(ctx context.Context, login string) (*models.Credential, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Credential, error)
	LockByAccountID(ctx context.Context, accountID string) (*models.Credential, error)
	UpdateRefreshToken(ctx context.Context, accountID string, token string, expiresAt time.Time) error
}
