package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mvoss/imgpress/internal/sandbox"
)

// Disk persists artifacts under a sandboxed root directory. Directories are
// created on demand; unauthorized or invalid destinations are rejected
// before anything touches the filesystem.
type Disk struct {
	Root string
}

func NewDisk(root string) (*Disk, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("output root directory is required")
	}
	return &Disk{Root: root}, nil
}

// Put writes one artifact and returns its slash-separated path relative to
// the root, suitable for URL building.
func (d *Disk) Put(_ context.Context, tenant, folder, filename string, data []byte, _ string) (string, error) {
	dir, err := sandbox.Resolve(d.Root, tenant, folder)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}

	norm, err := sandbox.NormalizeFolder(folder)
	if err != nil {
		return "", err
	}
	return path.Join(tenant, norm, filename), nil
}

// List walks a tenant's subtree recursively and returns the relative paths
// of every published file, sorted. A missing subtree lists as empty rather
// than failing: nothing was published yet.
func (d *Disk) List(_ context.Context, tenant string) ([]string, error) {
	base, err := sandbox.Resolve(d.Root, tenant, "")
	if err != nil {
		return nil, err
	}

	files := make([]string, 0)
	err = filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list output dir: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// FilePath resolves a published relative path back to an absolute file
// path under the root, for serving and round-trip verification.
func (d *Disk) FilePath(rel string) (string, error) {
	return sandbox.ResolveFile(d.Root, rel)
}
