package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/medreport-ai/internal/application"
	appanalysis "github.com/bryanwahyu/medreport-ai/internal/application/analysis"
	"github.com/bryanwahyu/medreport-ai/internal/domain/ai"
)

type scriptedGenerator struct {
	err   error
	text  string
	calls int
}

func (g *scriptedGenerator) Generate(ctx context.Context, tier ai.Tier, prompt string, attachments []ai.Attachment) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func newTestHandler(t *testing.T, gen ai.Generator, tempDir string) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	invoker := appanalysis.NewInvoker(gen, appanalysis.RetryConfig{
		MaxAttempts:           3,
		BaseDelay:             time.Millisecond,
		RateLimitBaseDelay:    time.Millisecond,
		MaxDelay:              10 * time.Millisecond,
		DefaultRetryAfter:     5 * time.Minute,
		UnavailableRetryAfter: time.Minute,
	}, log)
	svc := appanalysis.NewService(appanalysis.NewExtractor(log), invoker, application.SystemClock{}, ai.TierFast, log)
	return NewRouter(svc, Options{MaxFileSize: 10 << 20, TempDir: tempDir}, log)
}

type filePart struct {
	name    string
	content []byte
}

func multipartBody(t *testing.T, data string, files []filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if data != "" {
		require.NoError(t, w.WriteField("data", data))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

const validData = `{"medicalData":["Blood Test"],"patientInfo":{"name":"Jane Doe","age":"34","urgency":"high"},"location":{"city":"Jakarta","country":"Indonesia"}}`

func postAnalyze(t *testing.T, h http.Handler, data string, files []filePart) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, data, files)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeRejectsWrongVerb(t *testing.T) {
	h := newTestHandler(t, &scriptedGenerator{text: "ok"}, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "Method not allowed")
}

func TestAnalyzeRejectsMissingData(t *testing.T) {
	gen := &scriptedGenerator{text: "ok"}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, "", []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeRejectsMalformedDataJSON(t *testing.T) {
	gen := &scriptedGenerator{text: "ok"}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, "{not json", []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeRejectsEmptyFileList(t *testing.T) {
	gen := &scriptedGenerator{text: "ok"}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, validData, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gen.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Validation failed", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestAnalyzeRejectsMissingPatientName(t *testing.T) {
	gen := &scriptedGenerator{text: "ok"}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, `{"patientInfo":{"name":"   "}}`, []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeRejectsOversizedFile(t *testing.T) {
	gen := &scriptedGenerator{text: "ok"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	invoker := appanalysis.NewInvoker(gen, appanalysis.DefaultRetryConfig(), log)
	svc := appanalysis.NewService(appanalysis.NewExtractor(log), invoker, application.SystemClock{}, ai.TierFast, log)
	h := NewRouter(svc, Options{MaxFileSize: 16, TempDir: t.TempDir()}, log)

	rec := postAnalyze(t, h, validData, []filePart{{"big.txt", bytes.Repeat([]byte("a"), 64)}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, gen.calls)

	// the configured limit, not a hard-coded one, appears in the message
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "16 bytes")
}

func TestSizeLabel(t *testing.T) {
	assert.Equal(t, "10 MB", sizeLabel(10<<20))
	assert.Equal(t, "1 MB", sizeLabel(1<<20))
	assert.Equal(t, "16 bytes", sizeLabel(16))
	assert.Equal(t, "1048577 bytes", sizeLabel(1<<20+1))
}

func TestAnalyzeSuccess(t *testing.T) {
	tempDir := t.TempDir()
	gen := &scriptedGenerator{text: "Visit General Hospital, Cardiology dept."}
	h := newTestHandler(t, gen, tempDir)

	rec := postAnalyze(t, h, validData, []filePart{
		{"xray.png", []byte{0x89, 0x50, 0x4e, 0x47, 1, 2, 3}},
		{"report.pdf", []byte("broken pdf body")},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Analysis    string `json:"analysis"`
		Timestamp   string `json:"timestamp"`
		PatientInfo struct {
			Name          string `json:"name"`
			FilesUploaded int    `json:"filesUploaded"`
			FilesAnalyzed int    `json:"filesAnalyzed"`
		} `json:"patientInfo"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "Visit General Hospital, Cardiology dept.", body.Analysis)
	assert.Equal(t, "Jane Doe", body.PatientInfo.Name)
	assert.Equal(t, 2, body.PatientInfo.FilesUploaded)
	assert.Equal(t, 1, body.PatientInfo.FilesAnalyzed)
	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
	assert.Equal(t, 1, gen.calls)

	// transient storage removed once the response is out
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeRateLimitedResponse(t *testing.T) {
	tempDir := t.TempDir()
	gen := &scriptedGenerator{err: &ai.ProviderError{
		StatusCode: 429,
		Message:    "rate limited",
	}}
	h := newTestHandler(t, gen, tempDir)

	rec := postAnalyze(t, h, validData, []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 3, gen.calls)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["error"])
	// no provider hint: the configured default is surfaced
	assert.Equal(t, float64(300), body["retryAfter"])

	// cleanup happens on failure paths too
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeDailyQuotaIncludesUpgradeInfo(t *testing.T) {
	gen := &scriptedGenerator{err: &ai.ProviderError{
		StatusCode: 429,
		DailyQuota: true,
		Message:    "daily quota exhausted",
	}}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, validData, []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["upgradeInfo"])
	assert.Contains(t, body["message"], "Daily")
}

func TestAnalyzeServiceUnavailableResponse(t *testing.T) {
	gen := &scriptedGenerator{err: &ai.ProviderError{StatusCode: 503, Message: "overloaded"}}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, validData, []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Service unavailable", body["error"])
	assert.NotZero(t, body["retryAfter"])
}

func TestAnalyzeFatalProviderErrorIs500(t *testing.T) {
	gen := &scriptedGenerator{err: &ai.ProviderError{StatusCode: 401, Message: "invalid api key"}}
	h := newTestHandler(t, gen, t.TempDir())

	rec := postAnalyze(t, h, validData, []filePart{{"notes.txt", []byte("hello")}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, gen.calls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Analysis failed", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.NotEqual(t, body["message"], body["details"])
}
