package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tflic/internal/client/api"
	"github.com/dmitrijs2005/tflic/internal/common"
)

var (
	promptLine        = PromptLine
	promptPassword    = PromptPassword
	promptNewPassword = PromptNewPassword
)

// Register prompts for login, name and password, creates the account and
// saves the returned session.
func (a *App) Register(ctx context.Context) error {
	login, err := promptLine(a.reader, "Enter login", a.out)
	if err != nil {
		return err
	}
	name, err := promptLine(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}

	password, err := promptNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.api.Register(ctx, login, name, string(password))
	if err != nil {
		return err
	}
	return a.signedIn(res)
}

// Authorize prompts for login and password and saves the returned session.
func (a *App) Authorize(ctx context.Context) error {
	login, err := promptLine(a.reader, "Enter login", a.out)
	if err != nil {
		return err
	}

	password, err := promptPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.api.Authorize(ctx, login, string(password))
	if err != nil {
		return err
	}
	return a.signedIn(res)
}

func (a *App) signedIn(res *api.AuthResult) error {
	if err := a.sessions.Save(&Session{Account: res.Account, Tokens: res.Tokens}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return a.printJSON(res.Tokens)
}

// Refresh rotates the saved token pair and prints the new one.
func (a *App) Refresh(ctx context.Context) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}
	if err := a.refresh(ctx, sess); err != nil {
		return err
	}
	return a.printJSON(sess.Tokens)
}

func (a *App) refresh(ctx context.Context, sess *Session) error {
	pair, err := a.api.Refresh(ctx, sess.Tokens)
	if err != nil {
		return err
	}
	sess.Tokens = *pair
	if err := a.sessions.Save(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// withSession runs fn with the saved access token. When the server reports
// the access token as expired, the pair is refreshed once and fn retried.
func (a *App) withSession(ctx context.Context, fn func(sess *Session) error) error {
	sess, err := a.sessions.Load()
	if err != nil {
		return err
	}

	err = fn(sess)
	if !api.IsCode(err, api.CodeTokenExpired) {
		return err
	}

	if err := a.refresh(ctx, sess); err != nil {
		return fmt.Errorf("session expired, authorize again: %w", err)
	}
	return fn(sess)
}

// Whoami prints the signed-in account.
func (a *App) Whoami(ctx context.Context) error {
	return a.withSession(ctx, func(sess *Session) error {
		view, err := a.api.GetAccount(ctx, sess.Tokens.AccessToken, sess.Account.ID)
		if err != nil {
			return err
		}
		return a.printJSON(view)
	})
}

// Rename prompts for a new display name for the signed-in account.
func (a *App) Rename(ctx context.Context) error {
	name, err := promptLine(a.reader, "Enter new name", a.out)
	if err != nil {
		return err
	}

	return a.withSession(ctx, func(sess *Session) error {
		view, err := a.api.UpdateName(ctx, sess.Tokens.AccessToken, sess.Account.ID, name)
		if err != nil {
			return err
		}
		sess.Account = *view
		if err := a.sessions.Save(sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return a.printJSON(view)
	})
}

// Logout forgets the saved session.
func (a *App) Logout() error {
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// Health prints the serving status reported by the gRPC health endpoint.
func (a *App) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	st, err := a.checkHealth(ctx, a.config.GRPCAddr, "")
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			fmt.Fprintln(a.out, "UNAVAILABLE")
		}
		return err
	}
	fmt.Fprintln(a.out, st)
	return nil
}
