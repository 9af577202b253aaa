package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/dbx"
	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/models"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AccountService reads and updates accounts. Views never include the
// password hash.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	validate    *validator.Validate
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		validate:    validator.New(),
		logger:      logger.With("module", "account_service"),
	}
}

// GetByID returns the account view for id. Malformed ids are reported as
// common.ErrorNotFound.
func (s *AccountService) GetByID(ctx context.Context, id string) (*models.AccountView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	cred, err := s.repomanager.Credentials(s.db).GetByAccountID(ctx, id)
	if err != nil {
		return nil, err
	}
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewAccountView(account, cred.Login), nil
}

// GetByLogin returns the account view owning login.
func (s *AccountService) GetByLogin(ctx context.Context, login string) (*models.AccountView, error) {
	cred, err := s.repomanager.Credentials(s.db).GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, cred.AccountID)
	if err != nil {
		return nil, err
	}
	return models.NewAccountView(account, cred.Login), nil
}

// Update applies upd to account id. A non-empty requester must be the account
// itself, otherwise common.ErrorForbidden is returned. An empty requester means
// the caller was not authenticated because authentication is switched off.
func (s *AccountService) Update(ctx context.Context, requester, id string, upd models.AccountUpdate) (*models.AccountView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	if requester != "" && requester != id {
		return nil, common.ErrorForbidden
	}
	if err := s.validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	var view *models.AccountView

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cred, err := s.repomanager.Credentials(tx).GetByAccountID(ctx, id)
		if err != nil {
			return err
		}

		accounts := s.repomanager.Accounts(tx)
		current, err := accounts.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if upd.IsEmpty() {
			view = models.NewAccountView(current, cred.Login)
			return nil
		}

		merged := upd.Apply(*current)
		updated, err := accounts.UpdateName(ctx, id, merged.Name)
		if err != nil {
			return err
		}
		view = models.NewAccountView(updated, cred.Login)
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "account update failed", "account_id", id, "error", err)
		}
		return nil, err
	}

	s.logger.Info(ctx, "account updated", "account_id", id)
	return view, nil
}
