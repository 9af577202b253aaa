// Package services contains the server-side business logic. This file
// implements AuthService: registration, credential verification and
// issuance/rotation of access and refresh tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/dbx"
	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/auth"
	"github.com/dmitrijs2005/tflic/internal/server/config"
	"github.com/dmitrijs2005/tflic/internal/server/models"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and the refresh token that
// replaces it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by Authorize and Register.
type AuthResult struct {
	Account *models.AccountView `json:"account"`
	Tokens  TokenPair           `json:"tokens"`
}

// AuthService keeps at most one refresh token per account: every successful
// Authorize, Refresh or Register overwrites the stored one.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	tokens      *auth.TokenCodec
	refresh     *auth.RefreshTokenIssuer
	logger      logging.Logger

	// dummyHash is verified against when the login is unknown so both
	// failure paths cost the same.
	dummyHash string
}

// NewAuthService wires the token codec, refresh issuer and password hasher
// selected by cfg.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) (*AuthService, error) {
	codec, err := auth.NewTokenCodec(auth.TokenOptions{
		Issuer:          cfg.Issuer,
		SecurityKey:     cfg.SecurityKey,
		Lifetime:        cfg.TokenLifetime,
		ValidAlgorithms: cfg.ValidAlgorithms,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating token codec: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("error preparing hasher: %w", err)
	}

	return &AuthService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      codec,
		refresh:     auth.NewRefreshTokenIssuer(cfg.RefreshTokenLifetime),
		logger:      logger.With("module", "auth_service"),
		dummyHash:   dummy,
	}, nil
}

// Tokens exposes the codec so the transport layer can validate bearer tokens
// with the same settings.
func (s *AuthService) Tokens() *auth.TokenCodec {
	return s.tokens
}

// Authorize verifies login and password and issues a fresh token pair.
// An unknown login and a wrong password both yield common.ErrorNotFound.
//
// The password is checked against an unlocked read; the row lock is only
// held for the rotation, and the hash must still be the one verified.
func (s *AuthService) Authorize(ctx context.Context, login, password string) (*AuthResult, error) {
	verified, err := s.verifyPassword(ctx, login, password)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "authorization rejected", "login", login)
		}
		return nil, err
	}

	var result *AuthResult

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cred, err := s.repomanager.Credentials(tx).LockByAccountID(ctx, verified.AccountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("error loading credential: %w", err)
		}
		if cred.Login != verified.Login || cred.PasswordHash != verified.PasswordHash {
			return common.ErrorNotFound
		}

		account, err := s.repomanager.Accounts(tx).GetByID(ctx, cred.AccountID)
		if err != nil {
			return fmt.Errorf("error loading account: %w", err)
		}

		pair, err := s.rotate(ctx, tx, cred)
		if err != nil {
			return err
		}

		result = &AuthResult{Account: models.NewAccountView(account, cred.Login), Tokens: *pair}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "authorization rejected", "login", login)
		}
		return nil, err
	}

	s.logger.Info(ctx, "account authorized", "account_id", result.Account.ID)
	return result, nil
}

// verifyPassword loads the credential for login without locking it and
// checks password. An unknown login is verified against the dummy hash.
func (s *AuthService) verifyPassword(ctx context.Context, login, password string) (*models.Credential, error) {
	cred, err := s.repomanager.Credentials(s.db).GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading credential: %w", err)
	}
	if !s.hasher.Verify(password, cred.PasswordHash) {
		return nil, common.ErrorNotFound
	}
	return cred, nil
}

// Refresh exchanges a (possibly expired) access token plus the matching
// refresh token for a new pair. The access token only has to be authentic;
// its lifetime is not checked.
//
// An access token that does not resolve to a credential yields
// common.ErrorNotFound; a wrong or expired refresh token yields
// common.ErrorUnauthorized.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	accountID, err := s.accountFromToken(accessToken)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cred, err := s.repomanager.Credentials(tx).LockByAccountID(ctx, accountID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("error loading credential: %w", err)
		}

		if !s.refresh.Check(cred, refreshToken) {
			return common.ErrorUnauthorized
		}

		pair, err = s.rotate(ctx, tx, cred)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.logger.Warn(ctx, "refresh token rejected", "account_id", accountID)
		}
		return nil, err
	}

	s.logger.Info(ctx, "tokens refreshed", "account_id", accountID)
	return pair, nil
}

// Register creates an account with its credential and signs it in.
// A login that is already taken yields common.ErrLoginInUse.
func (s *AuthService) Register(ctx context.Context, login, name, password string) (*AuthResult, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var result *AuthResult

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		creds := s.repomanager.Credentials(tx)

		exists, err := creds.ExistsByLogin(ctx, login)
		if err != nil {
			return fmt.Errorf("error checking login: %w", err)
		}
		if exists {
			return common.ErrLoginInUse
		}

		account, err := s.repomanager.Accounts(tx).Create(ctx, name)
		if err != nil {
			return fmt.Errorf("error creating account: %w", err)
		}

		cred := &models.Credential{AccountID: account.ID, Login: login, PasswordHash: hash}
		pair, err := s.issue(cred)
		if err != nil {
			return err
		}

		if err := creds.Create(ctx, cred); err != nil {
			if errors.Is(err, common.ErrLoginInUse) {
				return err
			}
			return fmt.Errorf("error creating credential: %w", err)
		}

		result = &AuthResult{Account: models.NewAccountView(account, login), Tokens: *pair}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account registered", "account_id", result.Account.ID)
	return result, nil
}

// IsTokenValid reports whether token is the live refresh token of ownerID.
// Unknown owners are simply not valid; only store failures return an error.
func (s *AuthService) IsTokenValid(ctx context.Context, token, ownerID string) (bool, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return false, nil
	}

	cred, err := s.repomanager.Credentials(s.db).GetByAccountID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error loading credential: %w", err)
	}

	return s.refresh.Check(cred, token), nil
}

// IsAccessTokenValid reports whether token is an authentic access token
// within its lifetime.
func (s *AuthService) IsAccessTokenValid(token string) bool {
	_, err := s.tokens.Validate(token)
	return err == nil
}

func (s *AuthService) accountFromToken(accessToken string) (string, error) {
	principal, err := s.tokens.GetPrincipalFromToken(accessToken)
	if err != nil {
		return "", common.ErrorNotFound
	}
	accountID, ok := principal.AccountID()
	if !ok {
		return "", common.ErrorNotFound
	}
	if _, err := uuid.Parse(accountID); err != nil {
		return "", common.ErrorNotFound
	}
	return accountID, nil
}

// issue mints a token pair for cred and records the refresh token on it.
func (s *AuthService) issue(cred *models.Credential) (*TokenPair, error) {
	access, err := s.tokens.Generate(auth.AccountClaims(cred.AccountID, cred.Login))
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}
	refresh, expiresAt, err := s.refresh.Generate()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	cred.SetRefreshToken(refresh, expiresAt)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// rotate issues a new pair and persists the refresh token in tx.
func (s *AuthService) rotate(ctx context.Context, tx dbx.DBTX, cred *models.Credential) (*TokenPair, error) {
	pair, err := s.issue(cred)
	if err != nil {
		return nil, err
	}
	err = s.repomanager.Credentials(tx).UpdateRefreshToken(ctx, cred.AccountID, *cred.RefreshToken, *cred.RefreshTokenExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return pair, nil
}
