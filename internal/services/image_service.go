package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sjperalta/autolease-api/internal/storage"
)

const profilePicSize = 256

// ImageService resizes profile pictures and hands them to the file store
type ImageService struct {
	store storage.FileStore
}

func NewImageService(store storage.FileStore) *ImageService {
	return &ImageService{store: store}
}

// ProcessProfilePicture decodes a JPG or PNG upload, crops it to a square
// thumbnail and stores it under the user's folder.
func (s *ImageService) ProcessProfilePicture(ctx context.Context, userID uint, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var format imaging.Format
	contentType := "image/jpeg"
	switch ext {
	case ".jpg", ".jpeg":
		format = imaging.JPEG
		ext = ".jpg"
	case ".png":
		format = imaging.PNG
		contentType = "image/png"
	default:
		return "", validationError("unsupported image format (JPG or PNG only)")
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", validationError("could not decode image: %v", err)
	}
	thumb := imaging.Fill(img, profilePicSize, profilePicSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	key := fmt.Sprintf("%d/%s%s", userID, uuid.New().String(), ext)
	return s.store.Put(ctx, key, buf.Bytes(), contentType)
}

// Remove deletes a stored picture by the key it was stored under
func (s *ImageService) Remove(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}
