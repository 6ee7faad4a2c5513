package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/mvoss/imgpress/internal/domain"
)

const uploadSchemaSQL = `
CREATE TABLE IF NOT EXISTS upload_log (
	id BIGSERIAL PRIMARY KEY,
	tenant TEXT NOT NULL,
	folder TEXT NOT NULL DEFAULT '',
	base_name TEXT NOT NULL,
	formats TEXT NOT NULL,
	source_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresUploadLog struct {
	db *sql.DB
}

func NewPostgresUploadLog(ctx context.Context, dsn string) (*PostgresUploadLog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log := &PostgresUploadLog{db: db}
	if err := log.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return log, nil
}

func (s *PostgresUploadLog) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, uploadSchemaSQL); err != nil {
		return fmt.Errorf("ensure upload_log schema: %w", err)
	}
	return nil
}

func (s *PostgresUploadLog) Close() error {
	return s.db.Close()
}

func (s *PostgresUploadLog) CreateUploadRecord(ctx context.Context, rec domain.UploadRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO upload_log (tenant, folder, base_name, formats, source_bytes, output_bytes, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Tenant,
		rec.Folder,
		rec.BaseName,
		strings.Join(rec.Formats, ","),
		rec.SourceBytes,
		rec.OutputBytes,
		rec.ComputeTimeMS,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload record: %w", err)
	}
	return nil
}
