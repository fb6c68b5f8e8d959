// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/policy"
)

const (
	IdentityKey contextKey = "identity"
)

// Identity is the verified caller attached to the request context by
// Authenticator.
type Identity struct {
	Email     string
	Role      string
	TokenID   string
	Token     string
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			if token == "" {
				reject(w, r, core.MissingTokenError())
				return
			}

			identity, err := verifier.Authenticate(r.Context(), token)
			if err != nil {
				reject(w, r, authError(err))
				return
			}

			core.RecordCaller(r.Context(), identity.Role)

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, appErr *core.AppError) {
	core.RecordAuthRejection(r.Context(), appErr.Code)
	core.JSONError(w, appErr)
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			if userRole == "" {
				core.JSONError(
					w,
					core.UnauthorizedError("authentication required"),
				)
				return
			}

			if _, ok := roleSet[userRole]; !ok {
				core.JSONError(
					w,
					core.ForbiddenError("insufficient permissions"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePolicy admits callers whose role the policy allows for action.
func RequirePolicy(action policy.Action) func(http.Handler) http.Handler {
	return RequireRole(policy.RolesFor(action)...)
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func authError(err error) *core.AppError {
	var appErr *core.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, core.ErrMissingToken):
		return core.MissingTokenError()
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		return core.TokenRevokedError()
	case errors.Is(err, core.ErrDependency):
		return core.DependencyError(err)
	default:
		return core.TokenInvalidError()
	}
}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func GetIdentity(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(IdentityKey).(*Identity); ok {
		return identity
	}
	return nil
}

func GetUserEmail(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.Email
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.Role
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserEmail(ctx) != ""
}
