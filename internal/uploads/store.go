// Package uploads persists caller-supplied images to disk so the
// render engine can fetch them by URL. Files get opaque UUID names;
// the original file name never touches the filesystem.
package uploads

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors for store operations.
var (
	ErrEmptyDir        = errors.New("upload directory cannot be empty")
	ErrInvalidName     = errors.New("invalid upload file name")
	ErrNotFound        = errors.New("upload not found")
	ErrUnsupportedType = errors.New("unsupported image content type")
)

// extByType maps supported image MIME types to file extensions. Save
// refuses anything outside this map, so only image files ever land in
// the directory.
var extByType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// namePattern matches names produced by Save: a UUID plus an image
// extension. Anything else is rejected before it can reach the disk.
var namePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.(png|jpg|webp|gif)$`)

// Store is a disk-backed upload store rooted at a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a store rooted
// at it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a fresh UUID name with an extension derived
// from the declared content type and returns the file name. An empty
// content type means image/jpeg; anything else outside extByType is
// rejected with ErrUnsupportedType.
func (s *Store) Save(data []byte, contentType string) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ext, ok := extByType[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	name := uuid.NewString() + ext
	// #nosec G306 -- uploads are world-readable, the server serves them
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return name, nil
}

// Path validates name and returns the absolute path of the stored
// file. Names that Save could not have produced are rejected, which
// also rules out traversal.
func (s *Store) Path(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("checking upload: %w", err)
	}
	return path, nil
}
