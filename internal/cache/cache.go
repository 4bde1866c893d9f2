// SPDX-License-Identifier: MPL-2.0

// Package cache stores compiled artifacts on disk, keyed by source digest and
// engine version tag. Entries are plain artifact files; callers still decode
// and version-check them before running.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/invowk/scriptc/pkg/artifact"
)

const (
	// entryExt is the file extension of cache entries.
	entryExt = ".scbc"

	dirPerm  = 0o755
	filePerm = 0o644
)

// ErrInvalidKey is returned for keys that are not produced by Key.
var ErrInvalidKey = errors.New("invalid cache key")

// Cache is a directory of compiled artifacts. It is safe for concurrent use
// within a process, and entries are replaced atomically so concurrent
// processes never observe partial writes.
type Cache struct {
	dir   string
	group singleflight.Group
}

// DefaultDir returns the per-user cache directory for artifacts.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache directory: %w", err)
	}
	return filepath.Join(base, "scriptc", "artifacts"), nil
}

// Open returns a cache rooted at dir, creating the directory if needed.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory must not be empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string { return c.dir }

// Key returns the cache key for a source compiled by the engine with tag.
func Key(digest artifact.Digest, tag artifact.VersionTag) string {
	return digest.String() + "-" + tag.String()
}

// Get returns the cached artifact for key. found is false when there is no entry.
func (c *Cache) Get(key string) (data []byte, found bool, err error) {
	path, err := c.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}
	return data, true, nil
}

// Put stores data under key, replacing any existing entry.
func (c *Cache) Put(key string, data []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*"+entryExt)
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

// GetOrCompile returns the entry for key, calling compile to produce and
// store it on a miss. Concurrent callers with the same key share a single
// compile call. hit reports whether the data came from disk.
func (c *Cache) GetOrCompile(ctx context.Context, key string, compile func(context.Context) ([]byte, error)) (data []byte, hit bool, err error) {
	if data, found, err := c.Get(key); err != nil || found {
		return data, found, err
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if data, found, err := c.Get(key); err != nil || found {
			return data, err
		}
		data, err := compile(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(key, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Remove deletes the entry for key. A missing entry is not an error.
func (c *Cache) Remove(key string) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}

// Prune removes every entry and leftover temporary file and returns the
// number of entries removed.
func (c *Cache) Prune() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("reading cache directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, entryExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if !strings.HasPrefix(name, ".tmp-") {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

func (c *Cache) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\.`) || strings.HasPrefix(key, "-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(c.dir, key+entryExt), nil
}
