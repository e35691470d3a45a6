package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/airaawat/ChaiAurBackend/internal/logging"
)

// fakeRepo covers only what the profile handlers call
type fakeRepo struct {
	Repository

	user      *User
	duplicate bool
}

func (f *fakeRepo) UpdateAccount(_ context.Context, id primitive.ObjectID, fullName, email string) (*User, error) {
	if f.duplicate {
		return nil, ErrDuplicate
	}
	if f.user == nil || f.user.ID != id {
		return nil, ErrNotFound
	}
	f.user.FullName = fullName
	f.user.Email = email
	return f.user, nil
}

func (f *fakeRepo) UpdateAvatar(_ context.Context, id primitive.ObjectID, url string) (*User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, ErrNotFound
	}
	f.user.AvatarURL = url
	return f.user, nil
}

func (f *fakeRepo) UpdateCoverImage(_ context.Context, id primitive.ObjectID, url string) (*User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, ErrNotFound
	}
	f.user.CoverImageURL = url
	return f.user, nil
}

type fakeUploader struct {
	err error
}

func (f *fakeUploader) Upload(_ context.Context, localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/" + filepath.Base(localPath), nil
}

func testUser() *User {
	return &User{
		ID:       primitive.NewObjectID(),
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice",
	}
}

func newHandler(repo *fakeRepo, uploader *fakeUploader) *Handler {
	return NewHandler(repo, uploader, logging.NewLogger(true))
}

// withUser attaches the authenticated user the way the middleware does
func withUser(req *http.Request, u *User) *http.Request {
	return req.WithContext(NewContext(req.Context(), u))
}

func imageForm(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestMe(t *testing.T) {
	h := newHandler(&fakeRepo{}, &fakeUploader{})
	current := testUser()

	t.Run("returns the current user", func(t *testing.T) {
		req := withUser(httptest.NewRequest(http.MethodGet, "/me", nil), current)
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.NotContains(t, body, "passwordHash")
	})

	t.Run("401 without a user in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUpdateAccount(t *testing.T) {
	do := func(t *testing.T, repo *fakeRepo, current *User, body string) *httptest.ResponseRecorder {
		t.Helper()
		h := newHandler(repo, &fakeUploader{})
		req := httptest.NewRequest(http.MethodPatch, "/account", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if current != nil {
			req = withUser(req, current)
		}
		rec := httptest.NewRecorder()
		h.UpdateAccount(rec, req)
		return rec
	}

	t.Run("updates fullName and normalized email", func(t *testing.T) {
		current := testUser()
		repo := &fakeRepo{user: current}

		rec := do(t, repo, current, `{"fullName":"Alice B","email":" ALICE.B@Example.com "}`)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "Alice B", current.FullName)
		assert.Equal(t, "alice.b@example.com", current.Email)
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		current := testUser()
		rec := do(t, &fakeRepo{user: current}, current, `{"fullName":"Alice B"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body is a 400", func(t *testing.T) {
		current := testUser()
		rec := do(t, &fakeRepo{user: current}, current, `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("email conflict is a 409", func(t *testing.T) {
		current := testUser()
		rec := do(t, &fakeRepo{user: current, duplicate: true}, current, `{"fullName":"Alice B","email":"taken@example.com"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("401 without a user in context", func(t *testing.T) {
		rec := do(t, &fakeRepo{}, nil, `{"fullName":"Alice B","email":"a@example.com"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUpdateImages(t *testing.T) {
	patchImage := func(t *testing.T, repo *fakeRepo, uploader *fakeUploader, current *User, path, field string) *httptest.ResponseRecorder {
		t.Helper()
		h := newHandler(repo, uploader)
		body, contentType := imageForm(t, field, field+".png")
		req := withUser(httptest.NewRequest(http.MethodPatch, path, body), current)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		switch path {
		case "/avatar":
			h.UpdateAvatar(rec, req)
		default:
			h.UpdateCoverImage(rec, req)
		}
		return rec
	}

	t.Run("replaces the avatar", func(t *testing.T) {
		current := testUser()
		repo := &fakeRepo{user: current}

		rec := patchImage(t, repo, &fakeUploader{}, current, "/avatar", "avatar")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, current.AvatarURL, "https://cdn.example.com/")
	})

	t.Run("replaces the cover image", func(t *testing.T) {
		current := testUser()
		repo := &fakeRepo{user: current}

		rec := patchImage(t, repo, &fakeUploader{}, current, "/cover-image", "coverImage")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, current.CoverImageURL, "https://cdn.example.com/")
	})

	t.Run("missing file is a 400", func(t *testing.T) {
		current := testUser()
		repo := &fakeRepo{user: current}

		// Form carries the wrong field name
		rec := patchImage(t, repo, &fakeUploader{}, current, "/avatar", "coverImage")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upload failure is a 400", func(t *testing.T) {
		current := testUser()
		repo := &fakeRepo{user: current}

		rec := patchImage(t, repo, &fakeUploader{err: errors.New("s3 unavailable")}, current, "/avatar", "avatar")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
