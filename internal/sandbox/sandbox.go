// Package sandbox confines every filesystem path the service produces to a
// configured root directory. Validation is layered: client-supplied folder
// strings are restricted to a safe character set first, and the composed
// path is still canonicalized and prefix-checked afterwards, so a symlink or
// a crafted segment cannot widen the write surface.
package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFolder marks a folder string or composed path that would escape
// the tenant root. It is reported before any filesystem write happens.
var ErrInvalidFolder = errors.New("invalid folder")

// NormalizeFolder canonicalizes a client-supplied folder string: backslashes
// become forward slashes and surrounding slashes are trimmed. An empty result
// is valid (upload lands at the tenant root). Non-empty results must consist
// of [A-Za-z0-9/_-] segments only; dots, null bytes and empty segments are
// rejected with ErrInvalidFolder.
func NormalizeFolder(folder string) (string, error) {
	folder = strings.ReplaceAll(folder, "\\", "/")
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return "", nil
	}

	if strings.ContainsRune(folder, 0) {
		return "", ErrInvalidFolder
	}
	if strings.HasPrefix(folder, ".") {
		return "", ErrInvalidFolder
	}
	for _, r := range folder {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '_' || r == '-':
		default:
			return "", ErrInvalidFolder
		}
	}
	for _, segment := range strings.Split(folder, "/") {
		// ".." is already excluded by the character set; the segment check
		// stays so the traversal rule does not depend on it.
		if segment == "" || segment == "." || segment == ".." {
			return "", ErrInvalidFolder
		}
	}
	return folder, nil
}

// Resolve composes root/tenant/folder into an absolute directory and
// verifies the result is the tenant root or a strict descendant of it. Both
// sides of the check are canonicalized first, so a symlink planted under the
// tenant subtree cannot redirect writes outside the root. The tenant segment
// is omitted when tenant is empty (single-tenant layout).
func Resolve(root, tenant, folder string) (string, error) {
	norm, err := NormalizeFolder(folder)
	if err != nil {
		return "", err
	}

	rootAbs, err := canonicalRoot(root)
	if err != nil {
		return "", err
	}

	tenantRoot := rootAbs
	if tenant != "" {
		tenantRoot = filepath.Join(rootAbs, tenant)
	}
	tenantRoot, err = resolveExisting(tenantRoot)
	if err != nil {
		return "", ErrInvalidFolder
	}
	if !withinDir(rootAbs, tenantRoot) {
		return "", ErrInvalidFolder
	}

	candidate := tenantRoot
	if norm != "" {
		candidate = filepath.Join(tenantRoot, filepath.FromSlash(norm))
	}
	candidate, err = resolveExisting(candidate)
	if err != nil {
		return "", ErrInvalidFolder
	}

	if !withinDir(tenantRoot, candidate) {
		return "", ErrInvalidFolder
	}
	return candidate, nil
}

// ResolveFile maps a published relative file path (tenant/folder/filename)
// back to an absolute path under root, for serving and round-trip checks.
// Unlike folder strings, the final filename segment may contain dots.
func ResolveFile(root, rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.Trim(rel, "/")
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", ErrInvalidFolder
	}
	for _, segment := range strings.Split(rel, "/") {
		if segment == "" || strings.HasPrefix(segment, ".") {
			return "", ErrInvalidFolder
		}
	}

	rootAbs, err := canonicalRoot(root)
	if err != nil {
		return "", err
	}

	candidate := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))
	candidate, err = resolveExisting(candidate)
	if err != nil {
		return "", ErrInvalidFolder
	}
	if !withinDir(rootAbs, candidate) {
		return "", ErrInvalidFolder
	}
	return candidate, nil
}

func canonicalRoot(root string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", ErrInvalidFolder
	}
	resolved, err := resolveExisting(rootAbs)
	if err != nil {
		return "", ErrInvalidFolder
	}
	return resolved, nil
}

// resolveExisting canonicalizes a path that may not fully exist yet: the
// deepest existing ancestor is resolved through filepath.EvalSymlinks and
// the not-yet-created tail (which cannot contain symlinks) is re-joined. The
// result is what the filesystem would actually open, so a symlink planted
// anywhere in the existing portion cannot survive the prefix check.
func resolveExisting(path string) (string, error) {
	suffix := ""
	current := filepath.Clean(path)
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Clean(filepath.Join(resolved, suffix)), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		current = parent
	}
}

// withinDir reports whether candidate equals dir or sits below it. The
// prefix check is segment-aware: /data/images-evil is not inside
// /data/images.
func withinDir(dir, candidate string) bool {
	if candidate == dir {
		return true
	}
	return strings.HasPrefix(candidate, dir+string(os.PathSeparator))
}
