package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/tamil-braille/api/internal/platform/httpx"
)

const defaultVerifyTimeout = 5 * time.Second

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator resolves the request owner from a Firebase bearer token, or
// from the configured anonymous uid when the request carries no token.
type Authenticator struct {
	verifier     TokenVerifier
	anonymousUID string
	timeout      time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithAnonymousUID enables single-user local mode.
func WithAnonymousUID(uid string) Option {
	return func(a *Authenticator) {
		a.anonymousUID = strings.TrimSpace(uid)
	}
}

// WithVerificationTimeout bounds token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator. verifier may be nil when only
// anonymous access is configured.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{verifier: verifier, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireUser rejects requests that resolve to no owner.
func (a *Authenticator) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get("Authorization")

			if strings.TrimSpace(header) == "" {
				if a == nil || a.anonymousUID == "" {
					writeAuthError(ctx, w, "unauthenticated", "authorization header missing")
					return
				}
				identity := &Identity{UID: a.anonymousUID, Anonymous: true}
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
				return
			}

			tokenStr, ok := extractBearerToken(header)
			if !ok {
				writeAuthError(ctx, w, "unauthenticated", "authorization header invalid")
				return
			}
			if a == nil || a.verifier == nil {
				writeAuthError(ctx, w, "unauthenticated", "authorization service unavailable")
				return
			}

			verifyCtx, cancel := context.WithTimeout(ctx, a.timeout)
			token, err := a.verifier.VerifyIDToken(verifyCtx, tokenStr)
			cancel()
			if err != nil {
				respondVerificationError(ctx, w, err)
				return
			}
			if token == nil || strings.TrimSpace(token.UID) == "" {
				writeAuthError(ctx, w, "invalid_token", "firebase id token has no subject")
				return
			}

			identity := &Identity{
				UID:      token.UID,
				Email:    claimAsString(token.Claims, "email"),
				Provider: token.Firebase.SignInProvider,
			}
			if token.IssuedAt > 0 {
				identity.IssuedAt = time.Unix(token.IssuedAt, 0).UTC()
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func claimAsString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusUnauthorized))
}

func respondVerificationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired):
		writeAuthError(ctx, w, "token_expired", "firebase id token expired")
	case errors.Is(err, ErrTokenInvalid):
		writeAuthError(ctx, w, "invalid_token", "firebase id token invalid")
	default:
		writeAuthError(ctx, w, "invalid_token", "firebase id token verification failed")
	}
}
