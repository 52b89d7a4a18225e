package catalog

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusbooks/spinescan/internal/extraction"
)

// ImageStore persists uploaded spine photos. Images are read-only after
// creation; non-image or oversized payloads are rejected before storage.
type ImageStore interface {
	// Put validates and stores the image, returning its metadata with a
	// freshly assigned file ID
	Put(data []byte, filename string, owner string) (*UploadedImage, error)

	// Get retrieves the image bytes and metadata by file ID
	Get(fileID string) ([]byte, *UploadedImage, error)
}

// LocalImageStore implements ImageStore with bytes on the local
// filesystem and metadata in the catalog database.
type LocalImageStore struct {
	basePath string
	maxBytes int64
	db       DB
}

// NewLocalImageStore creates a new LocalImageStore instance
func NewLocalImageStore(basePath string, maxBytes int64, db DB) (*LocalImageStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}

	return &LocalImageStore{
		basePath: basePath,
		maxBytes: maxBytes,
		db:       db,
	}, nil
}

// imageExtensions maps sniffed content types to stored file extensions
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// sniffImageType detects the content type from the payload itself. The
// client-declared type is not trusted.
func sniffImageType(data []byte) (string, bool) {
	if extraction.IsHEIC(data) {
		return "image/heic", true
	}
	detected := http.DetectContentType(data)
	if _, ok := imageExtensions[detected]; ok {
		return detected, true
	}
	return detected, false
}

// Put validates and stores the image
func (s *LocalImageStore) Put(data []byte, filename string, owner string) (*UploadedImage, error) {
	if len(data) == 0 {
		return nil, &ValidationError{Reason: "empty upload"}
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, &ValidationError{Reason: fmt.Sprintf("upload of %d bytes exceeds limit of %d", len(data), s.maxBytes)}
	}

	contentType, ok := sniffImageType(data)
	if !ok {
		return nil, &ValidationError{Reason: "unsupported content type " + contentType + ", expected an image"}
	}

	img := &UploadedImage{
		ID:          uuid.NewString(),
		Filename:    strings.TrimSpace(filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Owner:       owner,
		UploadedAt:  time.Now(),
	}

	path := filepath.Join(s.basePath, img.ID+imageExtensions[contentType])
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("writing image file: %w", err)}
	}

	if err := s.db.SaveImage(img); err != nil {
		// Keep store and metadata consistent when the metadata write fails
		os.Remove(path)
		return nil, fmt.Errorf("saving image metadata: %w", err)
	}

	return img, nil
}

// Get retrieves the image bytes and metadata by file ID
func (s *LocalImageStore) Get(fileID string) ([]byte, *UploadedImage, error) {
	img, err := s.db.GetImage(fileID)
	if err != nil {
		return nil, nil, err
	}

	path := filepath.Join(s.basePath, img.ID+imageExtensions[img.ContentType])
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("reading image file: %w", err)
	}

	return data, img, nil
}
