package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/models"
	"github.com/dmitrijs2005/tflic/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// AuthService is the part of services.AuthService the handlers need.
type AuthService interface {
	Authorize(ctx context.Context, login, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*services.TokenPair, error)
	Register(ctx context.Context, login, name, password string) (*services.AuthResult, error)
	IsAccessTokenValid(token string) bool
}

// AccountService is the part of services.AccountService the handlers need.
type AccountService interface {
	GetByID(ctx context.Context, id string) (*models.AccountView, error)
	GetByLogin(ctx context.Context, login string) (*models.AccountView, error)
	Update(ctx context.Context, requester, id string, upd models.AccountUpdate) (*models.AccountView, error)
}

type Handler struct {
	auth     AuthService
	accounts AccountService
	validate *validator.Validate
	logger   logging.Logger
}

func NewHandler(as AuthService, acc AccountService, logger logging.Logger) *Handler {
	return &Handler{
		auth:     as,
		accounts: acc,
		validate: validator.New(),
		logger:   logger.With("module", "rest"),
	}
}

type authorizeRequest struct {
	Login    string `json:"login" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=128"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken" validate:"required,max=4096"`
	RefreshToken string `json:"refreshToken" validate:"required,max=1024"`
}

type tryAuthorizeRequest struct {
	AccessToken string `json:"accessToken" validate:"required,max=4096"`
}

type tryAuthorizeResponse struct {
	Valid bool `json:"valid"`
}

type registerRequest struct {
	Login    string `json:"login" validate:"required,max=50"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=128"`
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), op+" failed", "error", err)
	}
	writeErr(w, status, code, msg)
}

// Authorize handles POST /authorize.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var body authorizeRequest
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.auth.Authorize(r.Context(), body.Login, body.Password)
	recordAuthAttempt("authorize", err == nil)
	if err != nil {
		h.fail(w, r, "authorize", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Refresh handles POST /refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !h.decode(w, r, &body) {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
	recordAuthAttempt("refresh", err == nil)
	if err != nil {
		h.fail(w, r, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.auth.Register(r.Context(), body.Login, body.Name, body.Password)
	recordAuthAttempt("register", err == nil)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TryAuthorize handles POST /try_authorize. It answers whether the access
// token is authentic and unexpired; an invalid token is not an error.
func (h *Handler) TryAuthorize(w http.ResponseWriter, r *http.Request) {
	var body tryAuthorizeRequest
	if !h.decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, tryAuthorizeResponse{Valid: h.auth.IsAccessTokenValid(body.AccessToken)})
}

// GetAccount handles GET /accounts/{ref}, where ref is an account id or a
// login.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var (
		view *models.AccountView
		err  error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		view, err = h.accounts.GetByID(r.Context(), ref)
	} else {
		view, err = h.accounts.GetByLogin(r.Context(), ref)
	}
	if err != nil {
		h.fail(w, r, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateAccount handles PATCH /accounts/{id}.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	requester, _ := AccountIDFromContext(r.Context())

	var upd models.AccountUpdate
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid body")
		return
	}

	view, err := h.accounts.Update(r.Context(), requester, id, upd)
	if err != nil {
		h.fail(w, r, "update account", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
