// Package files keeps uploaded photos, ID cards and travel documents on disk.
package files

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/logger"
	"github.com/google/uuid"
)

var (
	ErrTooLarge    = errors.New("file is too large")
	ErrUnsupported = errors.New("unsupported file type")
	ErrInvalidName = errors.New("invalid file name")
)

// Kinds of upload. Each kind accepts a fixed set of extensions.
const (
	KindProfile = "profile"
	KindIDCard  = "idcard"
	KindTravel  = "travel"
)

var allowed = map[string][]string{
	KindProfile: {".jpg", ".jpeg", ".png", ".webp"},
	KindIDCard:  {".jpg", ".jpeg", ".png", ".webp", ".pdf"},
	KindTravel:  {".jpg", ".jpeg", ".png", ".webp", ".pdf"},
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

var storedName = regexp.MustCompile(`^[a-z]+-[0-9a-f-]{36}\.[a-z]+$`)

// Store saves uploads under a single directory with generated names.
type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save copies the upload to disk and returns its stored name.
func (s *Store) Save(kind string, fh *multipart.FileHeader) (string, error) {
	exts, ok := allowed[kind]
	if !ok {
		return "", fmt.Errorf("unknown upload kind %q", kind)
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !contains(exts, ext) {
		return "", ErrUnsupported
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := kind + "-" + uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}

// Path returns the on-disk path of a stored file.
func (s *Store) Path(name string) (string, error) {
	if !storedName.MatchString(name) {
		return "", ErrInvalidName
	}
	p := filepath.Join(s.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// Remove deletes a stored file. Empty and unknown names are ignored.
func (s *Store) Remove(name string) {
	if name == "" || !storedName.MatchString(name) {
		return
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warningf("Failed to remove upload %s: %v", name, err)
	}
}

// ContentType reports the MIME type for a stored name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
