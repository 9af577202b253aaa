// Package accounts stores Account rows.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/tflic/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, name string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	UpdateName(ctx context.Context, id string, name string) (*models.Account, error)
}
