package store

import (
	"context"

	"github.com/mvoss/imgpress/internal/domain"
)

// UploadLog records successful conversions for usage accounting. Writes are
// best-effort: a failed audit write never fails the upload.
type UploadLog interface {
	CreateUploadRecord(ctx context.Context, rec domain.UploadRecord) error
}
