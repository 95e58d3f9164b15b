// Package store persists fetched news payloads as JSON files under one root.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/newswire/internal/news"
	"github.com/rs/zerolog/log"
)

const DefaultRoot = "output"

var (
	ErrInvalidKey = errors.New("store: invalid key")
	ErrNotFound   = errors.New("store: key not found")
)

// Files is a filesystem sink rooted at one directory. Writes go through a
// temp file and rename, so readers never see a partial payload.
type Files struct {
	root string
	mu   sync.Mutex
}

var _ news.Sink = (*Files)(nil)

func New(root string) *Files {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		resolved = DefaultRoot
	}
	return &Files{root: resolved}
}

func (f *Files) Root() string {
	return f.root
}

// Persist writes payload, indented, under key.
func (f *Files) Persist(payload json.RawMessage, key string) error {
	p, err := f.resolvePath(key)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return fmt.Errorf("store: indent %q: %w", key, err)
	}
	out.WriteByte('\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".pending-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: rename %q: %w", key, err)
	}
	log.Debug().Msgf("store.Files.Persist key=%q bytes=%d", SanitizeKey(key), out.Len())
	return nil
}

func (f *Files) Read(key string) ([]byte, error) {
	p, err := f.resolvePath(key)
	if err != nil {
		return nil, err
	}
	out, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return out, err
}

func (f *Files) Delete(key string) error {
	p, err := f.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns stored keys with the given prefix, sorted.
func (f *Files) List(prefix string) ([]string, error) {
	root, err := filepath.Abs(f.root)
	if err != nil {
		return nil, err
	}
	prefix = strings.TrimSpace(prefix)
	keys := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".pending-") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(rel, prefix) {
			keys = append(keys, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// SanitizeKey maps a result key onto a single safe file name. Client names
// are free text, so separators and control characters are replaced.
func SanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	var b strings.Builder
	for _, r := range key {
		switch {
		case r == '/' || r == '\\' || r == ':' || r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	return out
}

func (f *Files) resolvePath(key string) (string, error) {
	name := SanitizeKey(key)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	root, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	p := filepath.Clean(filepath.Join(root, name))
	if !isWithin(p, root) || p == filepath.Clean(root) {
		return "", fmt.Errorf("%w: %q escapes root", ErrInvalidKey, key)
	}
	return p, nil
}

func isWithin(path string, root string) bool {
	p := filepath.Clean(path)
	r := filepath.Clean(root)
	if p == r {
		return true
	}
	return strings.HasPrefix(p, r+string(os.PathSeparator))
}
