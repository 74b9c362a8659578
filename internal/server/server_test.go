package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docext/internal/pipeline"
	"github.com/MeKo-Tech/docext/internal/preprocess"
	"github.com/MeKo-Tech/docext/internal/testutil"
)

// fakeExtractor records what it was asked to extract.
type fakeExtractor struct {
	result *pipeline.ExtractionResult
	err    error
	pages  int // progress events emitted per extraction

	mu       sync.Mutex
	calls    int
	gotPath  string
	gotData  []byte
	gotOpts  pipeline.Options
	ctxError error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string, opts pipeline.Options) (*pipeline.ExtractionResult, error) {
	data, _ := os.ReadFile(path)

	f.mu.Lock()
	f.calls++
	f.gotPath = path
	f.gotData = data
	f.gotOpts = opts
	f.ctxError = ctx.Err()
	f.mu.Unlock()

	if opts.Progress != nil && f.pages > 0 {
		opts.Progress.OnStart(f.pages)
		for i := 1; i <= f.pages; i++ {
			opts.Progress.OnProgress(i, f.pages)
		}
		opts.Progress.OnComplete()
	}
	return f.result, f.err
}

func (f *fakeExtractor) Info() map[string]any {
	return map[string]any{"ocr_enabled": false}
}

func sampleResult() *pipeline.ExtractionResult {
	return &pipeline.ExtractionResult{
		Text:           "hello world",
		Confidence:     1,
		PagesProcessed: 1,
		PagesWithOCR:   []int{},
		PagesWithText:  []int{1},
		QualityScore:   0.9,
		Method:         pipeline.MethodStandard,
	}
}

func newTestServer(ex Extractor) *Server {
	s := NewServer(Config{CORSOrigin: "*", MaxUploadMB: 1, TimeoutSec: 5}, ex)
	s.newID = func() string { return "req-1" }
	return s
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postExtract(t *testing.T, h http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, ct := multipartBody(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	h := newTestServer(nil).Handler()

	for _, tt := range []struct {
		method string
		status int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusMethodNotAllowed},
	} {
		t.Run(tt.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.status, w.Code)

			if tt.status == http.StatusOK {
				var resp HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "healthy", resp.Status)
				assert.NotEmpty(t, resp.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestInfoHandler(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer(&fakeExtractor{}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, false, info["ocr_enabled"])

	w = httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExtractHandler_Success(t *testing.T) {
	ex := &fakeExtractor{result: sampleResult()}
	w := postExtract(t, newTestServer(ex).Handler(), "scan.PNG", []byte("png-bytes"), map[string]string{
		"level":     "heavy",
		"languages": "eng, deu",
		"tables":    "true",
		"password":  "pw",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "hello world", resp.Result.Text)

	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, []byte("png-bytes"), ex.gotData)
	assert.Equal(t, ".png", filepath.Ext(ex.gotPath))
	assert.Equal(t, "png", ex.gotOpts.FileType)
	assert.Equal(t, preprocess.Heavy, ex.gotOpts.Level)
	assert.Equal(t, []string{"eng", "deu"}, ex.gotOpts.Languages)
	assert.True(t, ex.gotOpts.ExtractTables)
	assert.Equal(t, "pw", ex.gotOpts.Credentials.UserPassword)
	assert.NoError(t, ex.ctxError)

	_, err := os.Stat(ex.gotPath)
	assert.True(t, os.IsNotExist(err), "temporary upload is removed")
}

func TestExtractHandler_DeclaredTypeWins(t *testing.T) {
	ex := &fakeExtractor{result: sampleResult()}
	w := postExtract(t, newTestServer(ex).Handler(), "upload.bin", []byte("%PDF"), map[string]string{"filetype": "pdf"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ".pdf", filepath.Ext(ex.gotPath))
}

func TestExtractHandler_TextFormat(t *testing.T) {
	ex := &fakeExtractor{result: sampleResult()}
	w := postExtract(t, newTestServer(ex).Handler(), "doc.pdf", []byte("%PDF"), map[string]string{"format": "text"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestExtractHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		err      error
		status   int
		calls    int
	}{
		{name: "no file", status: http.StatusBadRequest},
		{name: "unsupported type", filename: "notes.docx", status: http.StatusUnsupportedMediaType},
		{name: "bad level", filename: "a.png", fields: map[string]string{"level": "extreme"}, status: http.StatusBadRequest},
		{name: "bad tables flag", filename: "a.png", fields: map[string]string{"tables": "maybe"}, status: http.StatusBadRequest},
		{name: "cannot open", filename: "a.pdf", err: fmt.Errorf("%w: broken", pipeline.ErrOpenDocument), status: http.StatusUnprocessableEntity, calls: 1},
		{name: "timeout", filename: "a.pdf", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout, calls: 1},
		{name: "internal", filename: "a.pdf", err: errors.New("boom"), status: http.StatusInternalServerError, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExtractor{err: tt.err}
			w := postExtract(t, newTestServer(ex).Handler(), tt.filename, []byte("data"), tt.fields)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.calls, ex.calls)

			var resp ExtractResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestExtractHandler_MethodAndForm(t *testing.T) {
	h := newTestServer(&fakeExtractor{}).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/extract", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractHandler_RealPipeline(t *testing.T) {
	p, err := pipeline.NewBuilder().WithoutOCR().Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	content := testutil.BuildTextPDF([]testutil.PDFPage{testutil.ParagraphPage("Shipping manifest for container 42")})
	w := postExtract(t, newTestServer(p).Handler(), "manifest.pdf", content, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Contains(t, resp.Result.Text, "Shipping manifest")
	assert.Equal(t, pipeline.MethodStandard, resp.Result.Method)
	assert.Equal(t, []int{1}, resp.Result.PagesWithText)
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(nil)
	s.corsOrigin = "https://example.com"

	called := false
	h := s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "req-1", requestIDFrom(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodOptions, "/v1/extract", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called, "preflight does not reach the handler")

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/v1/extract", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware_KeepsClientRequestID(t *testing.T) {
	s := newTestServer(nil)
	h := s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestIDFrom(r.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-7")
	w := httptest.NewRecorder()
	h(w, req)
	assert.Equal(t, "client-7", w.Body.String())
	assert.Equal(t, "client-7", w.Header().Get(RequestIDHeader))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.3 "}, "1.1.1.1:80", "10.0.0.3"},
		{"remote addr", nil, "192.168.1.5:4242", "192.168.1.5"},
		{"remote without port", nil, "192.168.1.6", "192.168.1.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
