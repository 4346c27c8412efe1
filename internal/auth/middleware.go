package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"venuly/internal/logger"
	"venuly/internal/models"
	"venuly/internal/utils"
)

// UserLookup resolves session subjects to current user rows.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticator attaches an Identity to requests carrying a valid session
// cookie, session bearer token or (when configured) OIDC ID token. Requests
// without credentials pass through anonymously; the gates decide.
type Authenticator struct {
	Tokens     *TokenManager
	Users      UserLookup
	CookieName string
	Verifier   *oidc.IDTokenVerifier
	Logger     *logger.Logger
}

// NewOIDCVerifier discovers issuer and returns an ID token verifier that
// does not pin a client id.
func NewOIDCVerifier(ctx context.Context, issuer string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{SkipClientIDCheck: true}), nil
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.identify(r)
		if err != nil {
			a.Logger.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		}
		if id != nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) identify(r *http.Request) (*Identity, error) {
	raw := ""
	if c, err := r.Cookie(a.CookieName); err == nil {
		raw = c.Value
	}
	if raw == "" {
		raw, _ = ExtractTokenFromRequest(r)
	}
	if raw == "" {
		return nil, nil
	}

	ctx := r.Context()
	var user *models.User

	claims, err := a.Tokens.Parse(raw)
	switch {
	case err == nil:
		user, err = a.Users.GetUserByID(ctx, claims.Subject)
	case a.Verifier != nil && looksLikeForeignToken(err):
		user, err = a.oidcUser(ctx, raw)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %s is deactivated", user.ID)
	}

	return &Identity{UserID: user.ID, Role: user.Role, Email: user.Email, Name: user.Name}, nil
}

// looksLikeForeignToken is true when the token is not one of ours, so an OIDC
// verification is worth attempting.
func looksLikeForeignToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func (a *Authenticator) oidcUser(ctx context.Context, raw string) (*models.User, error) {
	idToken, err := a.Verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Email == "" || (claims.EmailVerified != nil && !*claims.EmailVerified) {
		return nil, errors.New("OIDC token has no verified email")
	}
	return a.Users.GetUserByEmail(ctx, strings.ToLower(claims.Email))
}

// Authenticated rejects anonymous requests with 401.
func Authenticated(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireAuth(r.Context()); err != nil {
				utils.WriteError(w, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithRole rejects callers that do not hold exactly role.
func WithRole(role models.Role, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireRole(r.Context(), role); err != nil {
				utils.WriteError(w, log, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
