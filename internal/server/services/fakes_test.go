package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/dbx"
	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/auth"
	"github.com/dmitrijs2005/tflic/internal/server/config"
	"github.com/dmitrijs2005/tflic/internal/server/models"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/tflic/internal/server/repositories/credentials"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// memStore backs both fake repositories. The *sql.DB handed to the services
// only provides transactions; rows live here.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	creds    map[string]models.Credential // by account id

	// injected failures
	createCredErr error
	updateErr     error
	getAccountErr error

	// beforeLock runs when a credential row is locked.
	beforeLock func()
	events     []string
}

func (s *memStore) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]models.Account{},
		creds:    map[string]models.Credential{},
	}
}

func (s *memStore) credential(accountID string) (models.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[accountID]
	return c, ok
}

type fakeAccounts struct{ s *memStore }

func (f fakeAccounts) Create(_ context.Context, name string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a := models.Account{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	f.s.accounts[a.ID] = a
	return &a, nil
}

func (f fakeAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.getAccountErr != nil {
		return nil, f.s.getAccountErr
	}
	a, ok := f.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (f fakeAccounts) UpdateName(_ context.Context, id string, name string) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	a, ok := f.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	a.Name = name
	f.s.accounts[id] = a
	return &a, nil
}

type fakeCredentials struct{ s *memStore }

func (f fakeCredentials) Create(_ context.Context, c *models.Credential) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createCredErr != nil {
		return f.s.createCredErr
	}
	for _, existing := range f.s.creds {
		if existing.Login == c.Login {
			return common.ErrLoginInUse
		}
	}
	f.s.creds[c.AccountID] = *c
	return nil
}

func (f fakeCredentials) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	_, err := f.GetByLogin(ctx, login)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f fakeCredentials) GetByLogin(_ context.Context, login string) (*models.Credential, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range f.s.creds {
		if c.Login == login {
			c := c
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeCredentials) GetByAccountID(_ context.Context, accountID string) (*models.Credential, error) {
	c, ok := f.s.credential(accountID)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (f fakeCredentials) LockByAccountID(ctx context.Context, accountID string) (*models.Credential, error) {
	f.s.record("lock")
	if f.s.beforeLock != nil {
		f.s.beforeLock()
	}
	return f.GetByAccountID(ctx, accountID)
}

func (f fakeCredentials) UpdateRefreshToken(_ context.Context, accountID string, token string, expiresAt time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.updateErr != nil {
		return f.s.updateErr
	}
	c, ok := f.s.creds[accountID]
	if !ok {
		return common.ErrorNotFound
	}
	c.SetRefreshToken(token, expiresAt)
	f.s.creds[accountID] = c
	return nil
}

type fakeRepoManager struct{ s *memStore }

func (m fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository        { return fakeAccounts{m.s} }
func (m fakeRepoManager) Credentials(dbx.DBTX) credentials.Repository  { return fakeCredentials{m.s} }

// --- helpers ---

func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecurityKey = "test-key"
	cfg.PasswordHasher = config.HasherSHA256
	return cfg
}

func newAuthService(t *testing.T, db *sql.DB, store *memStore, mutate func(*config.Config)) *AuthService {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewAuthService(db, fakeRepoManager{store}, cfg, logging.Nop{})
	require.NoError(t, err)
	return s
}

func newStoredCredential(accountID, login string) models.Credential {
	return models.Credential{AccountID: accountID, Login: login, PasswordHash: "x"}
}

func newStoredAccount(id, name string) models.Account {
	return models.Account{ID: id, Name: name, CreatedAt: time.Now().UTC()}
}

// recordingHasher logs every Verify call into the store's event list.
type recordingHasher struct {
	auth.PasswordHasher
	s *memStore
}

func (h recordingHasher) Verify(password, encoded string) bool {
	h.s.record("verify")
	return h.PasswordHasher.Verify(password, encoded)
}
