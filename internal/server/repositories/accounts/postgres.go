package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/dbx"
	"github.com/dmitrijs2005/tflic/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX, so it works the
// same on *sql.DB and inside a transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account and returns it with the generated id.
func (r *PostgresRepository) Create(ctx context.Context, name string) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (name)
		 VALUES ($1)
		 RETURNING id, created_at
		 `

	account := &models.Account{Name: name}
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&account.ID, &account.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

// GetByID returns common.ErrorNotFound when no account has the id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT id, name, created_at FROM accounts
		 WHERE id = $1
		 `

	account := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&account.ID, &account.Name, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

// UpdateName renames an account and returns the stored row.
func (r *PostgresRepository) UpdateName(ctx context.Context, id string, name string) (*models.Account, error) {
	query :=
		`UPDATE accounts SET name = $2
		 WHERE id = $1
		 RETURNING id, name, created_at
		 `

	account := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, id, name).Scan(&account.ID, &account.Name, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}
