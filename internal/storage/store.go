// Package storage keeps uploaded signup files (profile photos and
// verification documents) and hands back opaque references.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sengunthar/matrimony/internal/config"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 10 << 20

// Field names the multipart field a file arrived in.
type Field string

const (
	FieldProfilePhoto  Field = "profile_photo"
	FieldCommunityCert Field = "community_cert"
	FieldJathagam      Field = "jathagam"
)

// Fields lists every accepted upload field.
var Fields = []Field{FieldProfilePhoto, FieldCommunityCert, FieldJathagam}

func (f Field) Valid() bool {
	switch f {
	case FieldProfilePhoto, FieldCommunityCert, FieldJathagam:
		return true
	}
	return false
}

// Store persists blobs. References are relative paths such as
// "photos/<uuid>.jpg" and are stable across drivers.
type Store interface {
	Save(ctx context.Context, field Field, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
	URL(ref string) string
}

// New builds the store selected in config.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocal(cfg.Storage.Dir, cfg.Storage.URLPrefix)
	case "s3":
		return NewS3(ctx, cfg.Storage)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// newRef picks a collision-free reference for an upload. Photos and
// documents live under separate prefixes.
func newRef(field Field, filename string) (string, error) {
	if !field.Valid() {
		return "", fmt.Errorf("unknown upload field %q", field)
	}
	dir := "docs"
	if field == FieldProfilePhoto {
		dir = "photos"
	}
	return path.Join(dir, uuid.NewString()+cleanExt(filename)), nil
}

func cleanExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// validRef guards Delete and serving against paths outside the two prefixes.
func validRef(ref string) bool {
	if ref == "" || strings.Contains(ref, "..") || strings.HasPrefix(ref, "/") {
		return false
	}
	return strings.HasPrefix(ref, "photos/") || strings.HasPrefix(ref, "docs/")
}

// limited reads at most MaxUploadSize bytes and fails beyond that.
func limited(r io.Reader) io.Reader {
	return &capReader{r: io.LimitReader(r, MaxUploadSize+1)}
}

var ErrTooLarge = fmt.Errorf("file exceeds %d MB limit", MaxUploadSize>>20)

type capReader struct {
	r io.Reader
	n int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > MaxUploadSize {
		return n, ErrTooLarge
	}
	return n, err
}
