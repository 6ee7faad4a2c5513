package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeFolder(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		invalid bool
	}{
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "images", want: "images"},
		{in: "/images/2024/", want: "images/2024"},
		{in: "a/b_c/D-E", want: "a/b_c/D-E"},
		{in: "back\\slash", want: "back/slash"},
		{in: "..", invalid: true},
		{in: "images/../secrets", invalid: true},
		{in: ".hidden", invalid: true},
		{in: "with space", invalid: true},
		{in: "dot.folder", invalid: true},
		{in: "nul\x00byte", invalid: true},
		{in: "a//b", invalid: true},
		{in: "ünïcode", invalid: true},
	}
	for _, tc := range cases {
		got, err := NormalizeFolder(tc.in)
		if tc.invalid {
			if !errors.Is(err, ErrInvalidFolder) {
				t.Fatalf("NormalizeFolder(%q): expected ErrInvalidFolder, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeFolder(%q): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeFolder(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveStaysInsideTenantRoot(t *testing.T) {
	root := t.TempDir()

	dir, err := Resolve(root, "acme", "images/2024")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	tenantRoot := filepath.Join(root, "acme")
	if !strings.HasPrefix(dir, tenantRoot+string(filepath.Separator)) {
		t.Fatalf("resolved path %q escapes tenant root %q", dir, tenantRoot)
	}

	// empty folder resolves to the tenant root itself
	dir, err = Resolve(root, "acme", "")
	if err != nil {
		t.Fatalf("Resolve with empty folder returned error: %v", err)
	}
	if dir != tenantRoot {
		t.Fatalf("expected tenant root %q, got %q", tenantRoot, dir)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	for _, folder := range []string{"..", "../other", "a/../../b", "..\\windows"} {
		if _, err := Resolve(root, "acme", folder); !errors.Is(err, ErrInvalidFolder) {
			t.Fatalf("Resolve(%q): expected ErrInvalidFolder, got %v", folder, err)
		}
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	tenantDir := filepath.Join(root, "acme")
	if err := os.MkdirAll(tenantDir, 0o755); err != nil {
		t.Fatalf("mkdir tenant dir: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(tenantDir, "evil")); err != nil {
		t.Fatalf("plant symlink: %v", err)
	}

	// the folder string is clean; only the filesystem redirects
	if _, err := Resolve(root, "acme", "evil"); !errors.Is(err, ErrInvalidFolder) {
		t.Fatalf("expected ErrInvalidFolder for symlinked folder, got %v", err)
	}
	if _, err := Resolve(root, "acme", "evil/deeper"); !errors.Is(err, ErrInvalidFolder) {
		t.Fatalf("expected ErrInvalidFolder below a symlinked folder, got %v", err)
	}
}

func TestResolveRejectsSymlinkedTenantDir(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(root, "acme")); err != nil {
		t.Fatalf("plant symlink: %v", err)
	}

	if _, err := Resolve(root, "acme", "images"); !errors.Is(err, ErrInvalidFolder) {
		t.Fatalf("expected ErrInvalidFolder for symlinked tenant dir, got %v", err)
	}
}

func TestResolveAllowsNotYetCreatedTail(t *testing.T) {
	root := t.TempDir()

	dir, err := Resolve(root, "acme", "images/2024/q3")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := filepath.Join(root, "acme", "images", "2024", "q3")
	if dir != want {
		t.Fatalf("expected %q, got %q", want, dir)
	}
}

func TestResolveFileRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.webp"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write outside file: %v", err)
	}

	tenantDir := filepath.Join(root, "acme")
	if err := os.MkdirAll(tenantDir, 0o755); err != nil {
		t.Fatalf("mkdir tenant dir: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(tenantDir, "images")); err != nil {
		t.Fatalf("plant symlink: %v", err)
	}

	if _, err := ResolveFile(root, "acme/images/secret.webp"); !errors.Is(err, ErrInvalidFolder) {
		t.Fatalf("expected ErrInvalidFolder for symlinked file path, got %v", err)
	}
}

func TestResolveAdminOmitsTenantSegment(t *testing.T) {
	root := t.TempDir()
	dir, err := Resolve(root, "", "shared")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := filepath.Join(root, "shared")
	if dir != want {
		t.Fatalf("expected %q, got %q", want, dir)
	}
}

func TestWithinDirIsSegmentAware(t *testing.T) {
	sep := string(filepath.Separator)
	dir := sep + filepath.Join("data", "images")
	evil := dir + "-evil"
	if withinDir(dir, evil) {
		t.Fatalf("%q must not count as inside %q", evil, dir)
	}
	if !withinDir(dir, filepath.Join(dir, "a")) {
		t.Fatal("direct child must count as inside")
	}
	if !withinDir(dir, dir) {
		t.Fatal("the directory itself must count as inside")
	}
}

func TestResolveFile(t *testing.T) {
	root := t.TempDir()

	got, err := ResolveFile(root, "acme/images/photo-abc123.webp")
	if err != nil {
		t.Fatalf("ResolveFile returned error: %v", err)
	}
	want := filepath.Join(root, "acme", "images", "photo-abc123.webp")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	for _, rel := range []string{"", "../escape", "acme/../../x", "acme/.hidden/f.webp", "a//b"} {
		if _, err := ResolveFile(root, rel); !errors.Is(err, ErrInvalidFolder) {
			t.Fatalf("ResolveFile(%q): expected ErrInvalidFolder, got %v", rel, err)
		}
	}
}
