package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/mvoss/imgpress/internal/sandbox"
)

func TestDiskPutAndList(t *testing.T) {
	disk, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk returned error: %v", err)
	}
	ctx := context.Background()

	rel, err := disk.Put(ctx, "acme", "images/2024", "photo-a.webp", []byte("one"), "image/webp")
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if rel != "acme/images/2024/photo-a.webp" {
		t.Fatalf("unexpected relative path %q", rel)
	}

	if _, err := disk.Put(ctx, "acme", "", "photo-b.avif", []byte("two"), "image/avif"); err != nil {
		t.Fatalf("Put at tenant root returned error: %v", err)
	}
	if _, err := disk.Put(ctx, "globex", "images", "photo-c.webp", []byte("three"), "image/webp"); err != nil {
		t.Fatalf("Put for second tenant returned error: %v", err)
	}

	files, err := disk.List(ctx, "acme")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	want := []string{"images/2024/photo-a.webp", "photo-b.avif"}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("List = %v, want %v", files, want)
	}

	// persisted bytes survive the round trip
	fullPath, err := disk.FilePath(rel)
	if err != nil {
		t.Fatalf("FilePath returned error: %v", err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !bytes.Equal(data, []byte("one")) {
		t.Fatalf("bytes differ: %q", data)
	}
}

func TestDiskListMissingTenant(t *testing.T) {
	disk, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk returned error: %v", err)
	}

	files, err := disk.List(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty listing, got %v", files)
	}
}

func TestDiskPutRejectsEscape(t *testing.T) {
	disk, err := NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("NewDisk returned error: %v", err)
	}

	_, err = disk.Put(context.Background(), "acme", "../other", "f.webp", []byte("x"), "image/webp")
	if !errors.Is(err, sandbox.ErrInvalidFolder) {
		t.Fatalf("expected ErrInvalidFolder, got %v", err)
	}
}

func TestNewDiskRequiresRoot(t *testing.T) {
	if _, err := NewDisk("  "); err == nil {
		t.Fatal("expected error for blank root")
	}
}
