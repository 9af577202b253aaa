package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/auth"
	"github.com/dmitrijs2005/tflic/internal/server/models"
	"github.com/dmitrijs2005/tflic/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccountID = "3f2b7c1a-9d4e-4a8b-b6c2-5e1f0a9d8c77"

type fakeAuth struct {
	authorizeErr error
	refreshErr   error
	registerErr  error

	gotLogin    string
	gotPassword string
	gotName     string
	gotAccess   string
	gotRefresh  string

	tokens TokenValidator
}

func (f *fakeAuth) IsAccessTokenValid(token string) bool {
	if f.tokens == nil {
		return false
	}
	_, err := f.tokens.Validate(token)
	return err == nil
}

func (f *fakeAuth) Authorize(_ context.Context, login, password string) (*services.AuthResult, error) {
	f.gotLogin, f.gotPassword = login, password
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	return &services.AuthResult{
		Account: &models.AccountView{ID: testAccountID, Login: login, Name: "Alice"},
		Tokens:  services.TokenPair{AccessToken: "at", RefreshToken: "rt"},
	}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, accessToken, refreshToken string) (*services.TokenPair, error) {
	f.gotAccess, f.gotRefresh = accessToken, refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}, nil
}

func (f *fakeAuth) Register(_ context.Context, login, name, password string) (*services.AuthResult, error) {
	f.gotLogin, f.gotName, f.gotPassword = login, name, password
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &services.AuthResult{
		Account: &models.AccountView{ID: testAccountID, Login: login, Name: name},
		Tokens:  services.TokenPair{AccessToken: "at", RefreshToken: "rt"},
	}, nil
}

type fakeAccounts struct {
	views        map[string]models.AccountView // by id
	gotRequester string
	updateErr    error
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (*models.AccountView, error) {
	v, ok := f.views[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &v, nil
}

func (f *fakeAccounts) GetByLogin(_ context.Context, login string) (*models.AccountView, error) {
	for _, v := range f.views {
		if v.Login == login {
			return &v, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeAccounts) Update(_ context.Context, requester, id string, upd models.AccountUpdate) (*models.AccountView, error) {
	f.gotRequester = requester
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	v, ok := f.views[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Name != nil {
		v.Name = *upd.Name
	}
	return &v, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type testEnv struct {
	router   http.Handler
	auth     *fakeAuth
	accounts *fakeAccounts
	codec    *auth.TokenCodec
}

func newTestEnv(t *testing.T, authRequired bool, rateLimit string) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(c *RouterConfig) {
		c.AuthRequired = authRequired
		c.RateLimit = rateLimit
	})
}

func newTestEnvWith(t *testing.T, mutate func(*RouterConfig)) *testEnv {
	t.Helper()
	codec, err := auth.NewTokenCodec(auth.TokenOptions{
		Issuer:      "default_issuer",
		SecurityKey: "test-key",
		Lifetime:    time.Hour,
	})
	require.NoError(t, err)

	fa := &fakeAuth{tokens: codec}
	acc := &fakeAccounts{views: map[string]models.AccountView{
		testAccountID: {ID: testAccountID, Login: "alice", Name: "Alice"},
	}}

	cfg := RouterConfig{
		Handler: NewHandler(fa, acc, logging.Nop{}),
		Health:  NewHealthHandler(fakePinger{}),
		Tokens:  codec,
		Logger:  logging.Nop{},
	}
	mutate(&cfg)
	router, err := NewRouter(cfg)
	require.NoError(t, err)

	return &testEnv{router: router, auth: fa, accounts: acc, codec: codec}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var er errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	return er
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", body: `{"login":"alice","password":"pw"}`, wantStatus: http.StatusOK},
		{name: "unknown login", body: `{"login":"bob","password":"pw"}`, svcErr: common.ErrorNotFound, wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
		{name: "missing password", body: `{"login":"alice"}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidRequest},
		{name: "malformed json", body: `{"login":`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidRequest},
		{name: "store failure", body: `{"login":"alice","password":"pw"}`, svcErr: errors.New("db error: secret detail"), wantStatus: http.StatusInternalServerError, wantCode: ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, true, "")
			env.auth.authorizeErr = tc.svcErr

			rec := env.do(t, http.MethodPost, BasePath+"/authorize", tc.body, nil)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.wantStatus != http.StatusOK {
				er := decodeError(t, rec)
				assert.Equal(t, tc.wantCode, er.Code)
				assert.NotContains(t, er.Error, "secret detail")
				return
			}

			var res services.AuthResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, "alice", res.Account.Login)
			assert.Equal(t, "at", res.Tokens.AccessToken)
			assert.Equal(t, "rt", res.Tokens.RefreshToken)
			assert.Equal(t, "pw", env.auth.gotPassword)
		})
	}
}

func TestAuthorize_ResponseShape(t *testing.T) {
	env := newTestEnv(t, true, "")

	rec := env.do(t, http.MethodPost, BasePath+"/authorize", `{"login":"alice","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw["tokens"], "accessToken")
	assert.Contains(t, raw["tokens"], "refreshToken")
	assert.Contains(t, raw["account"], "login")
	assert.NotContains(t, raw["account"], "passwordHash")
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{name: "ok", body: `{"accessToken":"a","refreshToken":"r"}`, wantStatus: http.StatusOK},
		{name: "unresolvable identity", body: `{"accessToken":"a","refreshToken":"r"}`, svcErr: common.ErrorNotFound, wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
		{name: "rotated out", body: `{"accessToken":"a","refreshToken":"r"}`, svcErr: common.ErrorUnauthorized, wantStatus: http.StatusUnauthorized, wantCode: ErrCodeUnauthorized},
		{name: "missing refresh token", body: `{"accessToken":"a"}`, wantStatus: http.StatusBadRequest, wantCode: ErrCodeInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, true, "")
			env.auth.refreshErr = tc.svcErr

			rec := env.do(t, http.MethodPost, BasePath+"/refresh", tc.body, nil)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.wantStatus != http.StatusOK {
				assert.Equal(t, tc.wantCode, decodeError(t, rec).Code)
				return
			}

			var pair services.TokenPair
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
			assert.Equal(t, services.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}, pair)
			assert.Equal(t, "a", env.auth.gotAccess)
			assert.Equal(t, "r", env.auth.gotRefresh)
		})
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, true, "")

	rec := env.do(t, http.MethodPost, BasePath+"/register", `{"login":"alice","name":"Alice A","password":"pw123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice A", env.auth.gotName)

	env.auth.registerErr = common.ErrLoginInUse
	rec = env.do(t, http.MethodPost, BasePath+"/register", `{"login":"alice","name":"Alice B","password":"pw456"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	er := decodeError(t, rec)
	assert.Equal(t, "login already in use", er.Error)
	assert.Equal(t, ErrCodeLoginInUse, er.Code)

	rec = env.do(t, http.MethodPost, BasePath+"/register", `{"login":"`+strings.Repeat("x", 51)+`","name":"n","password":"p"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RejectsNonJSONBodies(t *testing.T) {
	env := newTestEnv(t, true, "")

	req := httptest.NewRequest(http.MethodPost, BasePath+"/authorize", strings.NewReader("login=alice"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAccounts_RequireBearerToken(t *testing.T) {
	env := newTestEnv(t, true, "")

	valid, err := env.codec.Generate(auth.AccountClaims(testAccountID, "alice"))
	require.NoError(t, err)

	expiredCodec, err := auth.NewTokenCodec(auth.TokenOptions{
		Issuer:      "default_issuer",
		SecurityKey: "test-key",
		Lifetime:    -time.Minute,
	})
	require.NoError(t, err)
	expired, err := expiredCodec.Generate(auth.AccountClaims(testAccountID, "alice"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, ErrCodeUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ErrCodeInvalidToken},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ErrCodeTokenExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := map[string]string{}
			if tc.header != "" {
				header["Authorization"] = tc.header
			}
			rec := env.do(t, http.MethodGet, BasePath+"/accounts/"+testAccountID, "", header)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, decodeError(t, rec).Code)
			}
		})
	}
}

func TestAccounts_AuthDisabled(t *testing.T) {
	env := newTestEnv(t, false, "")

	rec := env.do(t, http.MethodGet, BasePath+"/accounts/alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, testAccountID, view.ID)

	rec = env.do(t, http.MethodGet, BasePath+"/accounts/nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, BasePath+"/accounts/"+testAccountID, `{"name":"Alice Z"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", env.accounts.gotRequester)
}

func TestUpdateAccount_PassesRequester(t *testing.T) {
	env := newTestEnv(t, true, "")
	token, err := env.codec.Generate(auth.AccountClaims(testAccountID, "alice"))
	require.NoError(t, err)
	header := map[string]string{"Authorization": "Bearer " + token}

	rec := env.do(t, http.MethodPatch, BasePath+"/accounts/"+testAccountID, `{"name":"Alice Z"}`, header)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testAccountID, env.accounts.gotRequester)

	var view models.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "Alice Z", view.Name)

	env.accounts.updateErr = common.ErrorForbidden
	rec = env.do(t, http.MethodPatch, BasePath+"/accounts/"+testAccountID, `{"name":"x"}`, header)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.accounts.updateErr = errors.Join(common.ErrorValidation, errors.New("name too long"))
	rec = env.do(t, http.MethodPatch, BasePath+"/accounts/"+testAccountID, `{"name":"x"}`, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPingHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, true, "")

	rec := env.do(t, http.MethodGet, BasePath+"/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"up"}}`, rec.Body.String())

	env.do(t, http.MethodPost, BasePath+"/authorize", `{"login":"alice","password":"pw"}`, nil)
	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tflic_http_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), `tflic_auth_attempts_total{event="authorize",success="true"}`)
}

func TestHealth_DatabaseDown(t *testing.T) {
	t.Parallel()
	h := NewHealthHandler(fakePinger{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRateLimit_AuthRoutes(t *testing.T) {
	env := newTestEnv(t, true, "2-M")

	body := `{"login":"alice","password":"pw"}`
	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, BasePath+"/authorize", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, http.MethodPost, BasePath+"/authorize", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ErrCodeRateLimited, decodeError(t, rec).Code)

	// Routes outside the auth group are not limited.
	rec = env.do(t, http.MethodGet, BasePath+"/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_InvalidRateLimit(t *testing.T) {
	t.Parallel()
	_, err := NewRouter(RouterConfig{
		Handler:   NewHandler(&fakeAuth{}, &fakeAccounts{}, logging.Nop{}),
		RateLimit: "lots",
		Logger:    logging.Nop{},
	})
	require.Error(t, err)
}

func TestRateLimit_ForwardedHeadersIgnoredByDefault(t *testing.T) {
	env := newTestEnv(t, true, "2-M")

	body := `{"login":"alice","password":"pw"}`
	limited := 0
	for i := 0; i < 20; i++ {
		rec := env.do(t, http.MethodPost, BasePath+"/authorize", body, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("10.0.0.%d", i),
			"X-Real-IP":       fmt.Sprintf("10.0.1.%d", i),
			"True-Client-IP":  fmt.Sprintf("10.0.2.%d", i),
		})
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 18, limited, "spoofed client addresses must not reset the limit")
}

func TestRateLimit_TrustProxyKeysOnForwardedIP(t *testing.T) {
	env := newTestEnvWith(t, func(c *RouterConfig) {
		c.RateLimit = "2-M"
		c.TrustProxy = true
	})

	body := `{"login":"alice","password":"pw"}`
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, BasePath+"/authorize", body, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	same := map[string]string{"X-Forwarded-For": "198.51.100.7"}
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, BasePath+"/authorize", body, same).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, BasePath+"/authorize", body, same).Code)
}

func TestTryAuthorize(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true, "")

	valid, err := env.codec.Generate(auth.AccountClaims(testAccountID, "alice"))
	require.NoError(t, err)

	expiredCodec, err := auth.NewTokenCodec(auth.TokenOptions{
		Issuer:      "default_issuer",
		SecurityKey: "test-key",
		Lifetime:    -time.Minute,
	})
	require.NoError(t, err)
	expired, err := expiredCodec.Generate(auth.AccountClaims(testAccountID, "alice"))
	require.NoError(t, err)

	otherKey, err := auth.NewTokenCodec(auth.TokenOptions{
		Issuer:      "default_issuer",
		SecurityKey: "another-key",
		Lifetime:    time.Hour,
	})
	require.NoError(t, err)
	forged, err := otherKey.Generate(auth.AccountClaims(testAccountID, "alice"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", valid, true},
		{"expired", expired, false},
		{"wrong key", forged, false},
		{"garbage", "not.a.jwt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(map[string]string{"accessToken": tt.token})
			require.NoError(t, err)

			rec := env.do(t, http.MethodPost, BasePath+"/try_authorize", string(body), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var got tryAuthorizeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got.Valid)
		})
	}

	t.Run("missing token → 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, BasePath+"/try_authorize", `{}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, ErrCodeInvalidRequest, decodeError(t, rec).Code)
	})
}
