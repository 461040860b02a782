package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes files under a directory on disk; the HTTP layer serves that
// directory at URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	for _, sub := range []string{"photos", "docs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload dir: %w", err)
		}
	}
	return &Local{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (l *Local) Save(ctx context.Context, field Field, filename string, r io.Reader) (string, error) {
	ref, err := newRef(field, filename)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(l.Dir, filepath.FromSlash(ref))
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", ref, err)
	}

	if _, err := io.Copy(f, limited(r)); err != nil {
		f.Close()
		os.Remove(dst)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close %s: %w", ref, err)
	}
	return ref, nil
}

// Delete removes ref. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, ref string) error {
	if !validRef(ref) {
		return fmt.Errorf("invalid reference %q", ref)
	}
	err := os.Remove(filepath.Join(l.Dir, filepath.FromSlash(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return l.URLPrefix + "/" + ref
}
