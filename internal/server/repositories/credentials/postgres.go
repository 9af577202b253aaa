package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/dbx"
	"github.com/dmitrijs2005/tflic/internal/server/models"
)

// loginConstraint is the unique constraint on credentials.login.
const loginConstraint = "credentials_login_key"

const selectColumns = `SELECT account_id, login, password_hash, refresh_token, refresh_token_expires_at
		 FROM credentials`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a credential. A duplicate login yields common.ErrLoginInUse.
func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) error {
	query :=
		`INSERT INTO credentials (account_id, login, password_hash, refresh_token, refresh_token_expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		c.AccountID, c.Login, c.PasswordHash, nullString(c.RefreshToken), nullTime(c.RefreshTokenExpiresAt))
	if err != nil {
		if dbx.IsUniqueViolation(err, loginConstraint) {
			return common.ErrLoginInUse
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE login = $1)
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, login).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*models.Credential, error) {
	return r.get(ctx, selectColumns+`
		 WHERE login = $1
		 `, login)
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Credential, error) {
	return r.get(ctx, selectColumns+`
		 WHERE account_id = $1
		 `, accountID)
}

func (r *PostgresRepository) LockByAccountID(ctx context.Context, accountID string) (*models.Credential, error) {
	return r.get(ctx, selectColumns+`
		 WHERE account_id = $1
		 FOR UPDATE
		 `, accountID)
}

// UpdateRefreshToken overwrites the refresh token and its expiry. It returns
// common.ErrorNotFound when the account has no credential.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, accountID string, token string, expiresAt time.Time) error {
	query :=
		`UPDATE credentials SET refresh_token = $2, refresh_token_expires_at = $3
		 WHERE account_id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg string) (*models.Credential, error) {
	var (
		c       models.Credential
		token   sql.NullString
		expires sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.AccountID, &c.Login, &c.PasswordHash, &token, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if token.Valid && expires.Valid {
		c.SetRefreshToken(token.String, expires.Time)
	}
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
