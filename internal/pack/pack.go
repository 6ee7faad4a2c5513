// Package pack turns a set of encoded artifacts into the response shape a
// deployment is configured for: persisted files with a JSON URL map, one
// multipart body, or a single zip attachment. The upstream plan/pipeline is
// identical for all three; only this stage differs.
package pack

import (
	"archive/zip"
	"compress/flate"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/mvoss/imgpress/internal/pipeline"
)

const (
	ModeJSON      = "json"
	ModeMultipart = "multipart"
	ModeZip       = "zip"
)

// ArtifactStore persists one artifact and returns its relative path/key.
// Both the disk and S3 backends implement it.
type ArtifactStore interface {
	Put(ctx context.Context, tenant, folder, filename string, data []byte, contentType string) (string, error)
}

// Publisher persists artifacts and builds their public URLs for the JSON
// response mode.
type Publisher struct {
	Store ArtifactStore
	// BaseURL is the configured public base, e.g. https://img.example.com.
	BaseURL string
	// PathPrefix sits between the base URL and the relative path; "/files"
	// for the disk backend served by this process, empty for S3.
	PathPrefix string
}

// Publish writes every artifact and returns format -> fully-qualified URL.
func (p Publisher) Publish(ctx context.Context, tenant, folder string, artifacts []pipeline.Artifact) (map[string]string, error) {
	urls := make(map[string]string, len(artifacts))
	for _, artifact := range artifacts {
		rel, err := p.Store.Put(ctx, tenant, folder, artifact.Filename, artifact.Data, artifact.Format.ContentType())
		if err != nil {
			return nil, fmt.Errorf("publish stage format=%s: %w", artifact.Format, err)
		}
		urls[string(artifact.Format)] = p.url(rel)
	}
	return urls, nil
}

func (p Publisher) url(rel string) string {
	base := strings.TrimRight(p.BaseURL, "/")
	prefix := strings.Trim(p.PathPrefix, "/")
	if prefix != "" {
		return base + "/" + prefix + "/" + rel
	}
	return base + "/" + rel
}

// WriteMultipart streams the artifacts as one multipart/mixed response, one
// part per format, without touching disk.
func WriteMultipart(w http.ResponseWriter, artifacts []pipeline.Artifact) error {
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusOK)

	for _, artifact := range artifacts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Type", artifact.Format.ContentType())
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))

		part, err := mw.CreatePart(header)
		if err != nil {
			return fmt.Errorf("create multipart section format=%s: %w", artifact.Format, err)
		}
		if _, err := part.Write(artifact.Data); err != nil {
			return fmt.Errorf("stream multipart section format=%s: %w", artifact.Format, err)
		}
	}

	return mw.Close()
}

// WriteZip bundles the artifacts into one deflate archive at maximum
// compression, returned as a binary attachment named <base>.zip.
func WriteZip(w http.ResponseWriter, archiveName string, artifacts []pipeline.Artifact) error {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archiveName))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, artifact := range artifacts {
		entry, err := zw.Create(artifact.Filename)
		if err != nil {
			return fmt.Errorf("create archive entry format=%s: %w", artifact.Format, err)
		}
		if _, err := entry.Write(artifact.Data); err != nil {
			return fmt.Errorf("write archive entry format=%s: %w", artifact.Format, err)
		}
	}

	return zw.Close()
}
