package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/bryanwahyu/medreport-ai/internal/application/analysis"
	domain "github.com/bryanwahyu/medreport-ai/internal/domain/analysis"
	"github.com/bryanwahyu/medreport-ai/internal/infra/storage"
	"github.com/bryanwahyu/medreport-ai/internal/middleware"
)

// Options tunes the upload boundary.
type Options struct {
	// MaxFileSize is the per-file ceiling in bytes (default 10 MiB).
	MaxFileSize int64
	// TempDir hosts the request-scoped upload directories; empty means the
	// system temp dir.
	TempDir string
}

type Router struct {
	svc  *appanalysis.Service
	opts Options
	log  *slog.Logger
}

func NewRouter(svc *appanalysis.Service, opts Options, log *slog.Logger) http.Handler {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 10 << 20
	}
	r := &Router{svc: svc, opts: opts, log: log}

	mux := chi.NewRouter()
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{
			Error:   "Method not allowed",
			Message: "Use POST to submit reports for analysis.",
		})
	})

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"temp_storage": middleware.TempDirHealthChecker{Dir: opts.TempDir},
	}))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Post("/api/analyze", r.wrap(r.handleAnalyze))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap translates pipeline errors into the caller-facing JSON taxonomy.
func (rt *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var aerr *domain.Error
			if errors.As(err, &aerr) {
				rt.writeError(w, aerr)
				return
			}
			rt.log.Error("unhandled request error", "path", req.URL.Path, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "Analysis failed",
				Message: "An unexpected error occurred. Please try again.",
				Details: err.Error(),
			})
		}
	}
}

// POST /api/analyze
// Multipart form: "files" (one or more report files) and "data" (JSON with
// medicalData, patientInfo, location). Transient file copies are removed on
// every exit path.
func (rt *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	defer middleware.DecrementAnalysesRunning()

	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return domain.NewValidationError("invalid multipart form data")
	}
	defer req.MultipartForm.RemoveAll()

	raw := req.FormValue("data")
	if raw == "" {
		return domain.NewValidationError("missing data field")
	}
	var sub domain.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return domain.NewValidationError("data field is not valid JSON")
	}

	parts := req.MultipartForm.File["files"]
	if len(parts) == 0 {
		return domain.NewValidationError("at least one report file is required")
	}

	store, err := storage.NewRequestStore(rt.opts.TempDir, rt.log)
	if err != nil {
		return err
	}
	defer store.Cleanup()

	for _, fh := range parts {
		if fh.Size > rt.opts.MaxFileSize {
			return domain.NewValidationError("file " + fh.Filename + " exceeds the " + sizeLabel(rt.opts.MaxFileSize) + " limit")
		}
		name := middleware.SanitizeFileName(fh.Filename)
		if name == "" {
			return domain.NewValidationError("invalid file name")
		}
		src, err := fh.Open()
		if err != nil {
			return domain.NewValidationError("could not read uploaded file " + name)
		}
		path, err := store.Save(name, src)
		src.Close()
		if err != nil {
			return err
		}
		kind, contentType := domain.Classify(name)
		sub.Files = append(sub.Files, domain.UploadedFile{
			OriginalName: name,
			SizeBytes:    fh.Size,
			StoragePath:  path,
			Kind:         kind,
			ContentType:  contentType,
		})
	}

	result, aerr := rt.svc.Analyze(req.Context(), sub)
	if aerr != nil {
		if aerr.Class != domain.ClassValidation {
			middleware.IncrementAnalysesFailed()
		}
		return aerr
	}

	writeJSON(w, http.StatusOK, successBody{
		Analysis:  result.AnalysisText,
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
		PatientInfo: patientSummary{
			Name:          result.PatientName,
			FilesUploaded: result.FilesUploaded,
			FilesAnalyzed: result.FilesAnalyzed,
		},
	})
	return nil
}

type successBody struct {
	Analysis    string         `json:"analysis"`
	Timestamp   string         `json:"timestamp"`
	PatientInfo patientSummary `json:"patientInfo"`
}

type patientSummary struct {
	Name          string `json:"name"`
	FilesUploaded int    `json:"filesUploaded"`
	FilesAnalyzed int    `json:"filesAnalyzed"`
}

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message,omitempty"`
	Details     string `json:"details,omitempty"`
	RetryAfter  int64  `json:"retryAfter,omitempty"`
	UpgradeInfo string `json:"upgradeInfo,omitempty"`
}

// writeError is the response translator: one stable JSON error shape per
// error class, user message separated from diagnostic detail.
func (rt *Router) writeError(w http.ResponseWriter, aerr *domain.Error) {
	body := errorBody{Message: aerr.Message, Details: aerr.Detail}

	switch aerr.Class {
	case domain.ClassValidation:
		body.Error = "Validation failed"
		body.Details = ""
	case domain.ClassRateLimited:
		body.Error = "Rate limit exceeded"
		body.RetryAfter = int64(aerr.RetryAfter / time.Second)
		if aerr.Quota == domain.QuotaScopeDaily {
			body.UpgradeInfo = "Daily free-tier quota reached. A paid plan lifts this limit."
		}
	case domain.ClassServiceUnavailable:
		body.Error = "Service unavailable"
		body.RetryAfter = int64(aerr.RetryAfter / time.Second)
	default:
		body.Error = "Analysis failed"
	}

	if body.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(body.RetryAfter, 10))
	}
	writeJSON(w, aerr.HTTPStatus(), body)
}

// sizeLabel renders a byte limit for user-facing messages, in whole MB when
// the limit is MiB-aligned.
func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + " MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
