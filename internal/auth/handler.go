package auth

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/airaawat/ChaiAurBackend/internal/httputil"
	"github.com/airaawat/ChaiAurBackend/internal/logging"
	"github.com/airaawat/ChaiAurBackend/internal/media"
	"github.com/airaawat/ChaiAurBackend/internal/ratelimit"
	"github.com/airaawat/ChaiAurBackend/internal/user"
)

// Uploaded avatars and covers are images; 32 MB leaves ample headroom
const maxUploadSize = 32 << 20

// Handler contains HTTP handlers for session endpoints
type Handler struct {
	service         *Service
	uploader        media.Uploader
	rateLimiter     *ratelimit.Limiter
	logger          *logging.Logger
	isProduction    bool
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func NewHandler(
	service *Service,
	uploader media.Uploader,
	rateLimiter *ratelimit.Limiter,
	logger *logging.Logger,
	isProduction bool,
	accessDuration, refreshDuration time.Duration,
) *Handler {
	return &Handler{
		service:         service,
		uploader:        uploader,
		rateLimiter:     rateLimiter,
		logger:          logger,
		isProduction:    isProduction,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// LoginRequest represents the login request body; either username or email
// identifies the account
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ChangePasswordRequest represents the password change request body
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// LoginResponse carries the token pair plus the sanitized user
type LoginResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account from a multipart form with a required avatar and optional cover image.
// @Tags         auth
// @Accept       multipart/form-data
// @Produce      json
// @Param        fullname   formData string true  "Full name"
// @Param        username   formData string true  "Username"
// @Param        email      formData string true  "Email"
// @Param        password   formData string true  "Password"
// @Param        avatar     formData file   true  "Avatar image"
// @Param        coverImage formData file   false "Cover image"
// @Success      201 {object} user.User
// @Failure      400 {object} httputil.ErrorResponse "Missing fields or avatar"
// @Failure      409 {object} httputil.ErrorResponse "Username or email taken"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limitExceeded(w, r, ip, "register") {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		logger.Warn("invalid registration form", "error", err.Error())
		respondError(w, "invalid multipart form", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	in := RegisterInput{
		FullName: r.FormValue("fullname"),
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	logger = logger.WithFields(map[string]any{"username": in.Username})

	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Username) == "" ||
		strings.TrimSpace(in.Email) == "" || in.Password == "" {
		logger.Warn("registration failed: missing fields")
		respondError(w, "all fields are required", httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	avatarFile := formFile(r, "avatar")
	if avatarFile == nil {
		logger.Warn("registration failed: avatar missing")
		respondError(w, "avatar file is required", httputil.CodeFileRequired, http.StatusBadRequest)
		return
	}

	avatarURL, err := media.StageAndUpload(r.Context(), h.uploader, avatarFile)
	if err != nil {
		logger.Error("registration failed: avatar upload", "error", err.Error())
		respondError(w, "failed to upload avatar", httputil.CodeUploadFailed, http.StatusBadRequest)
		return
	}
	in.AvatarURL = avatarURL

	// Cover image is optional; an upload failure here still fails the request
	// rather than silently dropping the file
	if coverFile := formFile(r, "coverImage"); coverFile != nil {
		coverURL, err := media.StageAndUpload(r.Context(), h.uploader, coverFile)
		if err != nil {
			logger.Error("registration failed: cover upload", "error", err.Error())
			respondError(w, "failed to upload cover image", httputil.CodeUploadFailed, http.StatusBadRequest)
			return
		}
		in.CoverImageURL = coverURL
	}

	newUser, err := h.service.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicate):
			logger.Warn("registration failed: duplicate user")
			respondError(w, "user with email or username already exists", httputil.CodeDuplicateUser, http.StatusConflict)
		case errors.Is(err, ErrMissingFields), errors.Is(err, ErrPasswordTooShort):
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeMissingFields, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID.Hex())

	respondJSON(w, newUser, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate by username or email, set token cookies, and return the token pair with the user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing identifier"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limitExceeded(w, r, ip, "login") {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		logger.Warn("login failed: identifier missing")
		respondError(w, "username or email is required", httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	tokens, loggedIn, err := h.service.Login(r.Context(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid user credentials", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", loggedIn.ID.Hex())

	SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)

	respondJSON(w, LoginResponse{
		User:         loggedIn,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, http.StatusOK)
}

// Refresh handles refresh-token rotation
// @Summary      Refresh the token pair
// @Description  Exchange a valid refresh token (cookie or body) for a new token pair. The old refresh token is invalidated.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token if not sent as cookie"
// @Success      200 {object} AuthTokens
// @Failure      401 {object} httputil.ErrorResponse "Missing, invalid, or already-used token"
// @Router       /refresh-token [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	// Cookie first, then body
	refreshToken, _ := GetRefreshTokenFromCookie(r)
	if refreshToken == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	refreshToken = strings.TrimSpace(refreshToken)

	if refreshToken == "" {
		logger.Warn("refresh failed: token missing from cookie and body")
		respondError(w, "unauthorized request", httputil.CodeRefreshRequired, http.StatusUnauthorized)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) || errors.Is(err, ErrRefreshTokenReused) {
			logger.Warn("refresh failed: invalid or rotated token")
			respondError(w, "invalid refresh token", httputil.CodeInvalidRefresh, http.StatusUnauthorized)
			return
		}
		logger.Error("refresh failed: internal error", "error", err.Error())
		respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("token pair refreshed")

	SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.isProduction, h.accessDuration, h.refreshDuration)

	respondJSON(w, tokens, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Remove the stored refresh token and clear both cookies. Safe to repeat.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]string
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	current, ok := user.FromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if err := h.service.Logout(r.Context(), current.ID); err != nil {
		logger.Error("logout failed", "error", err.Error())
		respondError(w, "failed to logout", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	ClearAuthCookies(w, h.isProduction)

	logger.Info("user logged out", "user_id", current.ID.Hex())

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// ChangePassword handles password change for the authenticated user
// @Summary      Change password
// @Description  Verify the old password and replace it with the new one.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ChangePasswordRequest true "Old and new password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Wrong old password or invalid new password"
// @Router       /change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	current, ok := user.FromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid change password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), current.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrWrongOldPassword):
			logger.Warn("password change failed: wrong old password")
			respondError(w, "invalid old password", httputil.CodeWrongOldPassword, http.StatusBadRequest)
		case errors.Is(err, ErrMissingFields), errors.Is(err, ErrPasswordTooShort):
			logger.Warn("password change failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeMissingFields, http.StatusBadRequest)
		default:
			logger.Error("password change failed: internal error", "error", err.Error())
			respondError(w, "failed to change password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password changed", "user_id", current.ID.Hex())

	respondJSON(w, map[string]string{"message": "password changed successfully"}, http.StatusOK)
}

// limitExceeded applies the fixed-window IP limit and writes the 429 when hit.
// Limiter errors are logged and ignored so Redis trouble never blocks logins.
func (h *Handler) limitExceeded(w http.ResponseWriter, r *http.Request, ip, purpose string) bool {
	logger := logging.GetLoggerFromContext(r.Context())

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
	} else if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return false
}

// formFile returns the first file header for the given multipart field, or nil
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For first (behind proxy/load balancer)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port"
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
