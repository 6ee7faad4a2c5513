package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mvoss/imgpress/internal/domain"
	"github.com/mvoss/imgpress/internal/naming"
	"github.com/mvoss/imgpress/internal/pack"
	"github.com/mvoss/imgpress/internal/pipeline"
	"github.com/mvoss/imgpress/internal/sandbox"
	"github.com/mvoss/imgpress/internal/store"
	"github.com/mvoss/imgpress/internal/tenant"
)

// HeaderAPIKey carries the tenant API key or the admin shared secret.
const HeaderAPIKey = "X-API-Key"

// uploadFieldName is the fixed multipart field for the image part.
const uploadFieldName = "image"

// multipartMemoryLimit bounds how much of the form stays in memory during
// parsing; the overall request size is capped separately by MaxBytesReader.
const multipartMemoryLimit = 8 << 20

type converter interface {
	Convert(ctx context.Context, source []byte, baseName string) (pipeline.Result, error)
}

type fileLister interface {
	List(ctx context.Context, tenant string) ([]string, error)
}

type fileResolver interface {
	FilePath(rel string) (string, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

// Deps wires the server's collaborators. Publisher and Lister are required
// in json mode; Files is set only for the disk backend, which this process
// serves directly.
type Deps struct {
	Resolver       *tenant.Resolver
	Converter      converter
	Publisher      *pack.Publisher
	Lister         fileLister
	Files          fileResolver
	UploadLog      store.UploadLog
	WebhookClient  webhookSender
	WebhookURL     string
	Mode           string
	MaxUploadBytes int64
	RateLimiter    RateLimiter
}

type Server struct {
	logger         *log.Logger
	resolver       *tenant.Resolver
	converter      converter
	publisher      *pack.Publisher
	lister         fileLister
	files          fileResolver
	uploadLog      store.UploadLog
	webhookClient  webhookSender
	webhookURL     string
	mode           string
	maxUploadBytes int64
	rateLimiter    RateLimiter
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

func NewServer(logger *log.Logger, deps Deps) *Server {
	maxUploadBytes := deps.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}

	s := &Server{
		logger:         logger,
		resolver:       deps.Resolver,
		converter:      deps.Converter,
		publisher:      deps.Publisher,
		lister:         deps.Lister,
		files:          deps.Files,
		uploadLog:      deps.UploadLog,
		webhookClient:  deps.WebhookClient,
		webhookURL:     deps.WebhookURL,
		mode:           deps.Mode,
		maxUploadBytes: maxUploadBytes,
		rateLimiter:    deps.RateLimiter,
		metrics:        newMetrics(),
		tracer:         otel.Tracer("imgpress/api"),
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/images", s.handleConvert)
	s.mux.HandleFunc("GET /v1/files", s.handleListFiles)
	s.mux.HandleFunc("GET /files/", s.handleServeFile)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert is the upload endpoint. Validation order matters: auth,
// size cap and folder checks all run before the first codec call so a
// rejected request has no side effects and costs no CPU.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	identity, err := s.resolver.Resolve(r.Header.Get(HeaderAPIKey))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("imgpress.tenant", identity.Tenant),
	)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds the configured size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file uploaded"})
		return
	}
	defer file.Close()

	// the normalized form is what the storage layer writes under, so it is
	// also what audit records and notifications carry
	folder, err := sandbox.NormalizeFolder(r.FormValue("folder"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid folder"})
		return
	}

	declaredName := strings.TrimSpace(r.FormValue("name"))
	if declaredName == "" {
		declaredName = header.Filename
	}

	source, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read uploaded file"})
		return
	}

	baseName := naming.SafeBase(declaredName)
	startedAt := time.Now()

	result, err := s.converter.Convert(r.Context(), source, baseName)
	if err != nil {
		s.finishConversion(startedAt, "failed")
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// client went away mid-transcode; nothing left to answer
			s.logger.Printf("conversion aborted tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
		case errors.Is(err, pipeline.ErrDecodeFailed):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "could not decode image"})
		default:
			s.logger.Printf("conversion failed tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "image conversion failed"})
		}
		return
	}
	s.finishConversion(startedAt, "succeeded")

	switch s.mode {
	case pack.ModeJSON:
		s.respondPersisted(w, r, identity, folder, baseName, result, startedAt)
	case pack.ModeMultipart:
		if err := pack.WriteMultipart(w, result.Artifacts); err != nil {
			s.logger.Printf("multipart response failed tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
			return
		}
		s.recordUpload(r.Context(), identity, folder, baseName, result, time.Since(startedAt))
	case pack.ModeZip:
		if err := pack.WriteZip(w, baseName+".zip", result.Artifacts); err != nil {
			s.logger.Printf("zip response failed tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
			return
		}
		s.recordUpload(r.Context(), identity, folder, baseName, result, time.Since(startedAt))
	default:
		s.logger.Printf("unknown response mode %q", s.mode)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "image conversion failed"})
	}
}

func (s *Server) respondPersisted(w http.ResponseWriter, r *http.Request, identity tenant.Identity, folder, baseName string, result pipeline.Result, startedAt time.Time) {
	if s.publisher == nil {
		s.logger.Printf("persisted mode without a publisher configured")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "image conversion failed"})
		return
	}

	urls, err := s.publisher.Publish(r.Context(), identity.Tenant, folder, result.Artifacts)
	if err != nil {
		if errors.Is(err, sandbox.ErrInvalidFolder) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid folder"})
			return
		}
		s.logger.Printf("publish failed tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist outputs"})
		return
	}

	s.recordUpload(r.Context(), identity, folder, baseName, result, time.Since(startedAt))
	s.dispatchPublishWebhook(identity, folder, baseName, urls)

	writeJSON(w, http.StatusOK, map[string]any{
		"base":    baseName,
		"outputs": urls,
	})
}

// handleListFiles enumerates a tenant's published files recursively.
// Admin-only.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	identity, err := s.resolver.Resolve(r.Header.Get(HeaderAPIKey))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if !identity.Admin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin token required"})
		return
	}
	if s.lister == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file listing is not available in this deployment"})
		return
	}

	target := r.URL.Query().Get("tenant")
	files, err := s.lister.List(r.Context(), target)
	if err != nil {
		s.logger.Printf("list files failed tenant=%s err=%v", target, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list files"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant": target,
		"files":  files,
	})
}

// handleServeFile makes published outputs readable without credentials in
// disk-backed deployments. The sandbox re-validates the path from the URL.
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/files/")
	fullPath, err := s.files.FilePath(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, fullPath)
}

func (s *Server) finishConversion(startedAt time.Time, status string) {
	s.metrics.conversionDuration.WithLabelValues(status).Observe(time.Since(startedAt).Seconds())
	s.metrics.uploadsTotal.WithLabelValues(s.mode, status).Inc()
}

func (s *Server) recordUpload(ctx context.Context, identity tenant.Identity, folder, baseName string, result pipeline.Result, computeDuration time.Duration) {
	var outputBytes int64
	formats := make([]string, 0, len(result.Artifacts))
	for _, artifact := range result.Artifacts {
		outputBytes += int64(len(artifact.Data))
		formats = append(formats, string(artifact.Format))
	}
	s.metrics.outputBytesTotal.Add(float64(outputBytes))

	if s.uploadLog == nil {
		return
	}

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	rec := domain.UploadRecord{
		Tenant:        identity.Tenant,
		Folder:        folder,
		BaseName:      baseName,
		Formats:       formats,
		SourceBytes:   int64(result.SourceBytes),
		OutputBytes:   outputBytes,
		ComputeTimeMS: computeTimeMS,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.uploadLog.CreateUploadRecord(ctx, rec); err != nil {
		s.logger.Printf("upload record write failed tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
	}
}

func (s *Server) dispatchPublishWebhook(identity tenant.Identity, folder, baseName string, urls map[string]string) {
	if s.webhookClient == nil || s.webhookURL == "" {
		return
	}

	payload := map[string]any{
		"event":        "image.published",
		"tenant":       identity.Tenant,
		"folder":       folder,
		"base":         baseName,
		"outputs":      urls,
		"published_at": time.Now().UTC(),
	}

	// detached from the request: the upload already succeeded
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.webhookClient.Send(ctx, s.webhookURL, "image.published", payload); err != nil {
			s.logger.Printf("webhook delivery failed tenant=%s base=%s err=%v", identity.Tenant, baseName, err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
