package domain

import "time"

// UploadRecord is the audit entry written after a successful conversion.
type UploadRecord struct {
	Tenant        string
	Folder        string
	BaseName      string
	Formats       []string
	SourceBytes   int64
	OutputBytes   int64
	ComputeTimeMS int64
	CreatedAt     time.Time
}
