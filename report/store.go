// Package report fetches benchmark tables of competing tools from an object
// store and renders them as grouped stacked bar charts.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Store is a bucket-like key space where "/" separates folders.
type Store interface {
	// ListFolders returns the immediate sub-folders of prefix, each ending in "/".
	ListFolders(ctx context.Context, prefix string) ([]string, error)
	// ListFiles returns every key below prefix.
	ListFiles(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, localPath, key string) error
}

var batchFolder = regexp.MustCompile(`^[0-9_]+`)

// IsBatchFolder reports whether name, with or without its trailing slash,
// is a top-level batch folder: it starts with a timestamp.
func IsBatchFolder(name string) bool {
	name = strings.TrimSuffix(name, "/")
	return batchFolder.MatchString(name) && !strings.Contains(name, "/")
}

// MostRecentFolder returns the batch folder with the greatest timestamp name
// (YYYYMMDD_HHMMSS...). Folders not starting with a timestamp are ignored.
func MostRecentFolder(ctx context.Context, s Store) (string, error) {
	folders, err := s.ListFolders(ctx, "")
	if err != nil {
		return "", err
	}
	var batches []string
	for _, f := range folders {
		if IsBatchFolder(f) {
			batches = append(batches, f)
		}
	}
	if len(batches) == 0 {
		return "", ErrNoBatch
	}
	sort.Sort(sort.Reverse(sort.StringSlice(batches)))
	return batches[0], nil
}

// ErrNoBatch is returned when the store holds no timestamped batch folder.
var ErrNoBatch = errors.New("no benchmark batch found")

// DirStore serves a local directory laid out like the bucket.
type DirStore struct {
	Root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

func (d *DirStore) local(key string) string {
	return filepath.Join(d.Root, filepath.FromSlash(key))
}

func (d *DirStore) ListFolders(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.local(prefix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, path.Join(prefix, e.Name())+"/")
		}
	}
	return folders, nil
}

func (d *DirStore) ListFiles(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	root := d.local(prefix)
	err := filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DirStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if strings.Contains(key, "..") {
		return nil, fmt.Errorf("invalid key %q", key)
	}
	return os.Open(d.local(key))
}

func (d *DirStore) Upload(_ context.Context, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	dst := d.local(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
