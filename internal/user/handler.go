package user

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/airaawat/ChaiAurBackend/internal/httputil"
	"github.com/airaawat/ChaiAurBackend/internal/logging"
	"github.com/airaawat/ChaiAurBackend/internal/media"
)

const maxUploadSize = 32 << 20

// Handler contains HTTP handlers for the account profile endpoints. All of
// them run behind the auth middleware and read the user from the context.
type Handler struct {
	users    Repository
	uploader media.Uploader
	logger   *logging.Logger
}

func NewHandler(users Repository, uploader media.Uploader, logger *logging.Logger) *Handler {
	return &Handler{users: users, uploader: uploader, logger: logger}
}

// UpdateAccountRequest represents the profile update request body
type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Me returns the current user
// @Summary      Current user
// @Description  Return the authenticated user's sanitized profile.
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} User
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, current, http.StatusOK)
}

// UpdateAccount updates fullName and email
// @Summary      Update account details
// @Description  Replace the full name and email of the authenticated user.
// @Tags         account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateAccountRequest true "New details"
// @Success      200 {object} User
// @Failure      400 {object} httputil.ErrorResponse "Missing fields"
// @Failure      409 {object} httputil.ErrorResponse "Email taken"
// @Router       /account [patch]
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	current, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid account update body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" || email == "" {
		logger.Warn("account update failed: missing fields")
		httputil.RespondErrorWithCode(w, "all fields are required", httputil.CodeMissingFields, http.StatusBadRequest)
		return
	}

	updated, err := h.users.UpdateAccount(r.Context(), current.ID, fullName, email)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			logger.Warn("account update failed: email taken")
			httputil.RespondErrorWithCode(w, "email already exists", httputil.CodeDuplicateUser, http.StatusConflict)
			return
		}
		logger.Error("account update failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update account", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("account details updated", "user_id", current.ID.Hex())

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// UpdateAvatar replaces the avatar image
// @Summary      Update avatar
// @Description  Upload a new avatar image and replace the stored URL.
// @Tags         account
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar formData file true "Avatar image"
// @Success      200 {object} User
// @Failure      400 {object} httputil.ErrorResponse "Missing file or upload failure"
// @Router       /avatar [patch]
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.users.UpdateAvatar)
}

// UpdateCoverImage replaces the cover image
// @Summary      Update cover image
// @Description  Upload a new cover image and replace the stored URL.
// @Tags         account
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        coverImage formData file true "Cover image"
// @Success      200 {object} User
// @Failure      400 {object} httputil.ErrorResponse "Missing file or upload failure"
// @Router       /cover-image [patch]
func (h *Handler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.users.UpdateCoverImage)
}

// updateImage uploads the named multipart file and persists its URL via apply
func (h *Handler) updateImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	apply func(ctx context.Context, id primitive.ObjectID, url string) (*User, error),
) {
	logger := logging.GetLoggerFromContext(r.Context())

	current, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		logger.Warn("invalid multipart form", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid multipart form", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	fh := firstFile(r, field)
	if fh == nil {
		logger.Warn("image update failed: file missing", "field", field)
		httputil.RespondErrorWithCode(w, field+" file is missing", httputil.CodeFileRequired, http.StatusBadRequest)
		return
	}

	url, err := media.StageAndUpload(r.Context(), h.uploader, fh)
	if err != nil {
		logger.Error("image update failed: upload error", "field", field, "error", err.Error())
		httputil.RespondErrorWithCode(w, "error while uploading file", httputil.CodeUploadFailed, http.StatusBadRequest)
		return
	}

	updated, err := apply(r.Context(), current.ID, url)
	if err != nil {
		logger.Error("image update failed: store error", "field", field, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("image updated", "field", field, "user_id", current.ID.Hex())

	httputil.RespondJSON(w, updated, http.StatusOK)
}

// firstFile returns the first file header for the given multipart field, or nil
func firstFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}
