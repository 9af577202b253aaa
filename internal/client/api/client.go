// Package api is the HTTP client for the TFlic authentication API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/tflic/internal/netx"
)

var ErrUnavailable = errors.New("server unavailable")

// Error codes sent by the server next to the message.
const (
	CodeTokenExpired = "token_expired"
	CodeLoginInUse   = "login_in_use"
)

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsStatus reports whether err is an *Error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

// IsCode reports whether err is an *Error with the given error code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

type AccountView struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthResult struct {
	Account AccountView `json:"account"`
	Tokens  TokenPair   `json:"tokens"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the API served under baseURL + /api/v2.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v2",
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Authorize(ctx context.Context, login, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.call(ctx, http.MethodPost, "/authorize", "", map[string]string{
		"login":    login,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Register(ctx context.Context, login, name, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.call(ctx, http.MethodPost, "/register", "", map[string]string{
		"login":    login,
		"name":     name,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Refresh(ctx context.Context, tokens TokenPair) (*TokenPair, error) {
	var res TokenPair
	if err := c.call(ctx, http.MethodPost, "/refresh", "", tokens, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetAccount fetches an account by id or login.
func (c *Client) GetAccount(ctx context.Context, accessToken, ref string) (*AccountView, error) {
	var res AccountView
	if err := c.call(ctx, http.MethodGet, "/accounts/"+url.PathEscape(ref), accessToken, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateName(ctx context.Context, accessToken, id, name string) (*AccountView, error) {
	var res AccountView
	err := c.call(ctx, http.MethodPatch, "/accounts/"+url.PathEscape(id), accessToken, map[string]string{"name": name}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) call(ctx context.Context, method, path, accessToken string, in, out any) error {
	var header http.Header
	if accessToken != "" {
		header = http.Header{"Authorization": []string{"Bearer " + accessToken}}
	}

	status, body, err := netx.DoJSON(ctx, c.http, method, c.baseURL+path, in, header)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if status < 200 || status > 299 {
		apiErr := &Error{Status: status}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Message, apiErr.Code = payload.Error, payload.Code
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
