package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/docext/internal/pdf"
	"github.com/MeKo-Tech/docext/internal/pipeline"
	"github.com/MeKo-Tech/docext/internal/preprocess"
	"github.com/MeKo-Tech/docext/internal/version"
)

const (
	formatText = "text"

	transportHTTP      = "http"
	transportWebSocket = "websocket"
)

var errInvalidOption = errors.New("invalid option")

// ExtractOptions are the per-request overrides accepted by both transports.
type ExtractOptions struct {
	FileType      string   `json:"filetype,omitempty"`
	Level         string   `json:"level,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	Tables        *bool    `json:"tables,omitempty"`
	Password      string   `json:"password,omitempty"`
	OwnerPassword string   `json:"owner_password,omitempty"`
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// infoHandler describes the pipeline behind the server.
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.extractor == nil {
		s.writeErrorResponse(w, requestIDFrom(r.Context()), "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, s.extractor.Info())
}

// extractHandler runs one extraction on a multipart upload in field "file".
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFrom(r.Context())

	limit := s.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, requestID, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, requestID, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorResponse(w, requestID, "No file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	eo, err := formOptions(r)
	if err != nil {
		s.writeErrorResponse(w, requestID, err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := s.resolveOptions(header.Filename, eo)
	if err != nil {
		s.writeErrorResponse(w, requestID, err.Error(), statusFor(err))
		return
	}

	if s.extractor == nil {
		s.writeErrorResponse(w, requestID, "Pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	res, err := s.runExtraction(r.Context(), file, opts, transportHTTP)
	if err != nil {
		slog.Warn("Extraction failed", "request_id", requestID, "file", header.Filename, "error", err)
		s.writeErrorResponse(w, requestID, err.Error(), statusFor(err))
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, res.Text)
		return
	}
	s.writeJSON(w, http.StatusOK, ExtractResponse{Success: true, RequestID: requestID, Result: res})
}

// runExtraction spools src to a temporary file and extracts it under the
// server timeout.
func (s *Server) runExtraction(ctx context.Context, src io.Reader, opts pipeline.Options, transport string) (*pipeline.ExtractionResult, error) {
	path, cleanup, err := spool(src, opts.FileType)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.extractor.Extract(ctx, path, opts)
	apiProcessingDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequestsTotal.WithLabelValues(transport, "error").Inc()
		return nil, err
	}
	apiRequestsTotal.WithLabelValues(transport, "success").Inc()
	return res, nil
}

// resolveOptions merges request overrides into the server defaults. The
// file type is validated here so unsupported uploads never reach the disk.
func (s *Server) resolveOptions(filename string, eo ExtractOptions) (pipeline.Options, error) {
	opts := s.defaults
	opts.Languages = slices.Clone(opts.Languages)

	ft, err := pipeline.ResolveFileType(filename, eo.FileType)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts.FileType = string(ft)

	if eo.Level != "" {
		level, err := preprocess.ParseLevel(eo.Level)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("%w: %w", errInvalidOption, err)
		}
		opts.Level = level
	}
	if len(eo.Languages) > 0 {
		opts.Languages = slices.Clone(eo.Languages)
	}
	if eo.Tables != nil {
		opts.ExtractTables = *eo.Tables
	}
	opts.Credentials = pdf.Credentials{UserPassword: eo.Password, OwnerPassword: eo.OwnerPassword}
	return opts, nil
}

// formOptions reads ExtractOptions from form fields.
func formOptions(r *http.Request) (ExtractOptions, error) {
	eo := ExtractOptions{
		FileType:      r.FormValue("filetype"),
		Level:         r.FormValue("level"),
		Password:      r.FormValue("password"),
		OwnerPassword: r.FormValue("owner_password"),
	}
	for _, lang := range strings.Split(r.FormValue("languages"), ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			eo.Languages = append(eo.Languages, lang)
		}
	}
	if v := r.FormValue("tables"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return ExtractOptions{}, fmt.Errorf("%w: tables=%q", errInvalidOption, v)
		}
		eo.Tables = &b
	}
	return eo, nil
}

// spool copies src into a temporary file whose extension matches ft.
func spool(src io.Reader, ft string) (string, func(), error) {
	f, err := os.CreateTemp("", "docext-*."+ft)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("store upload: %w", err)
	}
	return f.Name(), cleanup, nil
}

// statusFor maps extraction errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pipeline.ErrOpenDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, errInvalidOption):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, requestID, message string, statusCode int) {
	s.writeJSON(w, statusCode, ExtractResponse{
		Success:   false,
		RequestID: requestID,
		Error:     message,
	})
}
