// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package media validates uploaded images and hands them to an object store.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/donations/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Folders objects are stored under.
const (
	FolderCampaigns = "campaigns"
	FolderAvatars   = "avatars"
)

// DefaultMaxImageSize is the upload limit when none is configured.
const DefaultMaxImageSize int64 = 5 << 20

// Store persists an object and returns the URL it is served from.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// extensions lists the accepted raster formats. SVG is refused because it
// can carry script.
var extensions = map[string]string{
	"image/jpeg":             ".jpg",
	"image/png":              ".png",
	"image/vnd.mozilla.apng": ".png",
	"image/gif":              ".gif",
	"image/webp":             ".webp",
	"image/bmp":              ".bmp",
	"image/tiff":             ".tiff",
	"image/avif":             ".avif",
	"image/heic":             ".heic",
	"image/heif":             ".heif",
}

// Service uploads images. A nil store disables uploads.
type Service struct {
	store   Store
	maxSize int64
}

// NewService creates an upload service. maxSize <= 0 uses DefaultMaxImageSize.
func NewService(store Store, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return &Service{store: store, maxSize: maxSize}
}

// Enabled reports whether an object store is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.store != nil
}

// MaxSize returns the upload limit in bytes.
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// UploadImage validates r as an image of at most MaxSize bytes and stores it
// under folder with a random name.
func (s *Service) UploadImage(ctx context.Context, folder string, r io.Reader) (string, error) {
	if !s.Enabled() {
		return "", apperr.Configuration("Image uploads are not configured.")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", apperr.Upstream("Failed to read upload", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", apperr.Validation(fmt.Sprintf("Image must be %d MB or smaller.", s.maxSize>>20))
	}
	if len(data) == 0 {
		return "", apperr.Validation("No image uploaded")
	}

	contentType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	ext, ok := extensions[contentType]
	switch {
	case contentType == "image/svg+xml":
		return "", apperr.Validation("SVG images are not supported.")
	case !ok:
		return "", apperr.Validation("Only image files are allowed.")
	}

	key := folder + "/" + uuid.NewString() + ext
	url, err := s.store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.Upstream("Image upload failed", err)
	}

	slog.Info("image_uploaded", "key", key, "size", len(data), "content_type", contentType)
	return url, nil
}

// MemoryStore keeps objects in memory. Used in development and tests.
type MemoryStore struct {
	BaseURL string
	Objects map[string][]byte
	Err     error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: strings.TrimSuffix(baseURL, "/"), Objects: map[string][]byte{}}
}

// Put stores body under key.
func (m *MemoryStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.Objects[key] = data
	return m.BaseURL + "/" + key, nil
}
