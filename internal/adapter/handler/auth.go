package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/service"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
)

var errMissingToken = errors.New("missing bearer token")

type contextKey string

const userContextKey contextKey = "user"

// accessClaims are the parts of a Supabase access token we rely on.
type accessClaims struct {
	Email       string `json:"email"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 access tokens locally and resolves the
// bearer to a local user row.
type Authenticator struct {
	secret   []byte
	audience string
	users    UserService
}

func NewAuthenticator(secret, audience string, users UserService) *Authenticator {
	return &Authenticator{secret: []byte(secret), audience: audience, users: users}
}

// Verify parses and validates token, returning the identity it carries.
func (a *Authenticator) Verify(token string) (service.Identity, error) {
	var claims accessClaims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return service.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return service.Identity{}, errors.New("verify token: no subject")
	}

	return service.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    domain.Role(claims.AppMetadata.Role),
	}, nil
}

// bearerToken reads the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

// socketToken also accepts ?token= because browsers cannot set headers on a
// WebSocket handshake.
func socketToken(r *http.Request) (string, error) {
	token, err := bearerToken(r)
	if errors.Is(err, errMissingToken) {
		if q := r.URL.Query().Get("token"); q != "" {
			return q, nil
		}
	}
	return token, err
}

// Middleware rejects unauthenticated requests and stores the user in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return a.authenticate(bearerToken, next)
}

// SocketMiddleware is Middleware for the WebSocket handshake.
func (a *Authenticator) SocketMiddleware(next http.Handler) http.Handler {
	return a.authenticate(socketToken, next)
}

func (a *Authenticator) authenticate(extract func(*http.Request) (string, error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extract(r)
		if err != nil {
			respondMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		identity, err := a.Verify(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("token rejected")
			respondMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := a.users.EnsureUser(r.Context(), identity)
		if err != nil {
			respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, *user)
		ctx = logging.ContextWithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(domain.User)
	return u, ok
}

// requireRole lets through users the predicate accepts.
func requireRole(allowed func(domain.User) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := userFromContext(r.Context())
			if !ok {
				respondMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !allowed(u) {
				respondMessage(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var (
	requireAdmin = requireRole(domain.User.IsAdmin)
	requireStaff = requireRole(domain.User.CanManageOrders)
)
