package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/dmitrijs2005/tflic/internal/logging"
	"github.com/dmitrijs2005/tflic/internal/server/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"github.com/unrolled/secure"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

// AccountIDFromContext returns the account authenticated by RequireAccount.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

// TokenValidator checks bearer access tokens.
type TokenValidator interface {
	Validate(token string) (auth.Principal, error)
}

// RequireAccount authenticates "Authorization: Bearer <token>" and stores the
// account id in the request context. With required == false requests pass
// through untouched.
func RequireAccount(v TokenValidator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !required {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeErr(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid authorization")
				return
			}

			principal, err := v.Validate(token)
			if err != nil {
				if errors.Is(err, common.ErrTokenExpired) {
					writeErr(w, http.StatusUnauthorized, ErrCodeTokenExpired, "token expired")
					return
				}
				writeErr(w, http.StatusUnauthorized, ErrCodeInvalidToken, "invalid token")
				return
			}

			id, ok := principal.AccountID()
			if !ok {
				writeErr(w, http.StatusUnauthorized, ErrCodeInvalidToken, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info(r.Context(), "request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

// NewIPRateLimiter limits requests per client IP with an in-memory store.
// The key is the host part of RemoteAddr, so forwarded headers only count
// when RealIP has been installed in front of it.
// rateFormatted follows the limiter format ("100-M", "10-S"); empty disables.
func NewIPRateLimiter(rateFormatted string) (func(http.Handler) http.Handler, error) {
	if rateFormatted == "" {
		return noopMiddleware, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), rate)
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(peerIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeErr(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
		}),
	)
	return mw.Handler, nil
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecureOptions are the security headers sent with every response.
func SecureOptions() secure.Options {
	return secure.Options{
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'none'",
		ReferrerPolicy:        "no-referrer",
	}
}

func noopMiddleware(next http.Handler) http.Handler {
	return next
}
