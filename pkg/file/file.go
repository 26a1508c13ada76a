// Package file stores generated artifacts (CSV exports, rendered PDFs) in an
// object store and hands out time-limited download links.
//
// Two backends implement Storage: S3Storage for Amazon S3 and S3-compatible
// services, and LocalStorage for development. Keys are slash separated and
// always relative; keys containing ".." are rejected.
package file

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Object describes a stored object.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Storage is implemented by every backend.
type Storage interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	// Get returns the object body.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether the object exists.
	Exists(ctx context.Context, key string) bool
	// URL returns a link valid for at least ttl.
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Key joins parts into a normalized object key.
//
//	file.Key(tenantID.String(), "exports", "clients-20250101.csv")
func Key(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

// CleanKey normalizes a key and rejects traversal attempts.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" || strings.Contains(key, "..") || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	return path.Clean(key), nil
}

// SanitizeFilename removes any path components and dangerous characters from a filename.
// Returns "unnamed" for empty or special directory references.
//
//	safe := file.SanitizeFilename("../../../etc/passwd") // Returns "passwd"
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")

	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}

	return filename
}
