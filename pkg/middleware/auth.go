package middleware

import (
	"context"
	"errors"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/logger"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const (
	principalKey contextKey = "principal"

	PermissionViewMeetings   = "meetings:view"
	PermissionCreateMeetings = "meetings:create"
	PermissionEditMeetings   = "meetings:edit"
	PermissionDeleteMeetings = "meetings:delete"
	PermissionManageSettings = "settings:manage"
)

// Principal is the authenticated caller. Tokens are issued elsewhere.
type Principal struct {
	UserID      string
	Permissions []string
}

func (p *Principal) Can(permission string) bool {
	return p != nil && slices.Contains(p.Permissions, permission)
}

type principalClaims struct {
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// ParsePrincipal verifies an HMAC signed bearer token.
func ParsePrincipal(tokenString string, secret []byte) (*Principal, error) {
	claims := &principalClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &Principal{
		UserID:      claims.Subject,
		Permissions: claims.Permissions,
	}, nil
}

// Authenticate requires a valid bearer token on every route except those
// under one of publicPrefixes.
func Authenticate(secret string, log *logger.Logger, publicPrefixes ...string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range publicPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || raw == "" {
				writeAppError(w, apperrors.Unauthorized("Missing bearer token"))
				return
			}

			principal, err := ParsePrincipal(strings.TrimSpace(raw), key)
			if err != nil {
				log.Warn("Rejected bearer token",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				writeAppError(w, apperrors.Unauthorized("Invalid bearer token"))
				return
			}

			setRequestUser(r.Context(), principal.UserID)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission lets a route through only for principals holding permission.
func RequirePermission(permission string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeAppError(w, apperrors.Unauthorized("Authentication required"))
			return
		}
		if !principal.Can(permission) {
			writeAppError(w, apperrors.Forbidden("Missing permission "+permission))
			return
		}
		next(w, r, ps)
	}
}
