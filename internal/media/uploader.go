package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// ErrNoFile is returned when a required multipart file part is absent
var ErrNoFile = errors.New("no file provided")

// Uploader pushes a locally staged file to external media storage and returns
// its public URL
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// StageAndUpload copies a multipart file to a temporary file, uploads it, and
// removes the temporary file on every exit path, success and failure alike.
func StageAndUpload(ctx context.Context, up Uploader, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNoFile
	}

	localPath, err := stage(fh)
	if err != nil {
		return "", err
	}
	defer os.Remove(localPath)

	url, err := up.Upload(ctx, localPath)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", fh.Filename, err)
	}

	return url, nil
}

// stage writes the multipart file to a temp file, preserving the extension so
// the uploader can derive a content type
func stage(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	ext := filepath.Ext(fh.Filename)
	dst, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to stage uploaded file: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return dst.Name(), nil
}
