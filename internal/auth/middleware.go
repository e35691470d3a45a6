package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/airaawat/ChaiAurBackend/internal/httputil"
	"github.com/airaawat/ChaiAurBackend/internal/user"
)

// Middleware authenticates protected routes: it verifies the access token,
// resolves the identity to a stored user, and attaches the sanitized user to
// the request context. It never reads or writes the refresh token.
type Middleware struct {
	tokenService TokenService
	users        user.Repository
}

func NewMiddleware(tokenService TokenService, users user.Repository) *Middleware {
	return &Middleware{tokenService: tokenService, users: users}
}

// RequireAuth validates the access token from the Authorization header or the
// accessToken cookie. All verification failures collapse to 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		// Priority 1: Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			} else {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}
		}

		// Priority 2: Cookie (fallback)
		if token == "" {
			cookieToken, err := GetAccessTokenFromCookie(r)
			if err != nil {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}
			token = cookieToken
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid user ID in token", httputil.CodeInvalidTokenUserID, http.StatusUnauthorized)
			return
		}

		// The token may outlive the account; the store decides
		current, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		// Strip secrets before the user crosses into handler code
		current.PasswordHash = ""
		current.RefreshToken = ""

		ctx := user.NewContext(r.Context(), current)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
