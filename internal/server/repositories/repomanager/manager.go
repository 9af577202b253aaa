package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tflic/internal/dbx"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/credentials"
)

// RepositoryManager is the unit-of-work entry point handed to services.
// Each factory binds a repository to the given handle, so passing the *sql.Tx
// of dbx.WithTx makes every repository share that transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Credentials(db dbx.DBTX) credentials.Repository
}
