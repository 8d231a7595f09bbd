package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"librarian/internal/auth"
	"librarian/internal/domain"
	"librarian/internal/domain/models"
	"librarian/internal/httputil"
)

// AdminPolicy decides whether an authenticated caller is an administrator.
type AdminPolicy func(claims *models.SupabaseClaims) bool

// AdminByEmail marks callers whose email passes isAdminEmail, plus anyone
// whose app_metadata.role is "admin".
func AdminByEmail(isAdminEmail func(email string) bool) AdminPolicy {
	return func(claims *models.SupabaseClaims) bool {
		return claims.AppRole() == "admin" || isAdminEmail(claims.Email)
	}
}

// AuthMiddleware attaches the caller identity to every request.
// Requests without an Authorization header run as anonymous; a header that
// does not carry a valid bearer token is rejected with 401.
func AuthMiddleware(verifier auth.JWTVerifier, isAdmin AdminPolicy, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, httputil.WithIdentity(r, models.Anonymous()))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				detail := "invalid token"
				var unauthorized *domain.UnauthorizedError
				if errors.As(err, &unauthorized) {
					detail = unauthorized.Message
				}
				httputil.RespondError(w, http.StatusUnauthorized, detail)
				return
			}

			identity := models.NewUserIdentity(claims.GetUserID(), claims.Email, claims.AppRoles(), isAdmin(claims))
			logger.Debug("request authenticated",
				"user_id", identity.UserID,
				"admin", identity.Admin,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, httputil.WithIdentity(r, identity))
		})
	}
}
