/*
handlers.go - HTTP API handlers for DSP reconciliation

PURPOSE:
  Exposes the reconciliation service over REST. Handles multipart parsing,
  form validation and JSON serialization, and delegates to reconcile.Service.

ENDPOINTS:
  DSP:
    POST   /api/dsp/preview          Reconcile an upload without storing it
    POST   /api/dsp/upload           Reconcile and replace the stored batch
    GET    /api/dsp/reconciliations  Stored batch for
                                     ?decree_number=&unit_id=&file_name=

  Catalog:
    POST   /api/catalog/load                  Upsert catalog records
    GET    /api/catalog/units/{id}/candidates Candidate set of a unit

REQUEST FLOW:
  1. Parse multipart form (dsp_file + context fields)
  2. Decode and validate the context
  3. Run the service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: malformed form, missing fields, missing file
  - 404: unknown command or unit
  - 413: upload larger than the configured limit
  - 422: the file is not a readable DSP sheet
  - 503: catalog unavailable (retryable)
  - 500: store failures and anything unexpected

SEE ALSO:
  - dto.go: Request/response data structures
  - catalog.go: Catalog handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/dsp-reconciler/reconcile"
	"github.com/warp/dsp-reconciler/staffing"
)

// DefaultMaxUploadSize caps multipart bodies when none is configured.
const DefaultMaxUploadSize = 32 << 20

const fileField = "dsp_file"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *reconcile.Service
	Catalog       staffing.Catalog
	Loader        staffing.CatalogLoader
	Logger        *logrus.Logger
	MaxUploadSize int64

	decoder  *form.Decoder
	validate *validator.Validate
}

// NewHandler creates a handler. catalog and loader back the catalog
// endpoints; the store types in this module implement both.
func NewHandler(svc *reconcile.Service, catalog staffing.Catalog, loader staffing.CatalogLoader, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Service:       svc,
		Catalog:       catalog,
		Loader:        loader,
		Logger:        logger,
		MaxUploadSize: DefaultMaxUploadSize,
		decoder:       form.NewDecoder(),
		validate:      validator.New(),
	}
}

// =============================================================================
// DSP HANDLERS
// =============================================================================

// PreviewDSP reconciles an upload without storing it.
// POST /api/dsp/preview
func (h *Handler) PreviewDSP(w http.ResponseWriter, r *http.Request) {
	h.reconcileUpload(w, r, h.Service.Preview)
}

// UploadDSP reconciles an upload and replaces the stored batch for its key.
// POST /api/dsp/upload
func (h *Handler) UploadDSP(w http.ResponseWriter, r *http.Request) {
	h.reconcileUpload(w, r, h.Service.Commit)
}

type runFunc func(ctx context.Context, up reconcile.Upload) (*reconcile.Report, error)

func (h *Handler) reconcileUpload(w http.ResponseWriter, r *http.Request, run runFunc) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	if err := r.ParseMultipartForm(h.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the size limit", err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_form", "Invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var f UploadForm
	if err := h.decoder.Decode(&f, r.PostForm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", "Invalid form fields", err)
		return
	}
	if err := h.validate.Struct(f); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "Missing required fields", err)
		return
	}

	file, header, err := r.FormFile(fileField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "dsp_file is required", err)
		return
	}
	defer file.Close()

	report, err := run(r.Context(), reconcile.Upload{
		FileName: header.Filename,
		Content:  file,
		Context:  f.Context(header.Filename),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReconcileResponse(report))
}

// ListReconciliations returns a stored batch.
// GET /api/dsp/reconciliations?decree_number=&unit_id=&file_name=
func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := staffing.Key{
		DecreeNumber: q.Get("decree_number"),
		UnitID:       q.Get("unit_id"),
		SourceFile:   q.Get("file_name"),
	}
	if key.DecreeNumber == "" || key.UnitID == "" || key.SourceFile == "" {
		writeError(w, http.StatusBadRequest, "validation_failed",
			"decree_number, unit_id and file_name are required", nil)
		return
	}

	rows, err := h.Service.List(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{DSPList: toRowDTOs(rows), Count: len(rows)})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	entry := h.Logger.WithError(err).WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeError(w, status, code, message, err)
}

// classify maps service errors to HTTP status, error code and message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, staffing.ErrCommandNotFound):
		return http.StatusNotFound, "command_not_found", "Command not found"
	case errors.Is(err, staffing.ErrUnitNotFound):
		return http.StatusNotFound, "unit_not_found", "Unit not found"
	case staffing.IsClientError(err):
		return http.StatusUnprocessableEntity, "ingest_failed", "File is not a readable DSP sheet"
	case errors.Is(err, staffing.ErrCatalog):
		return http.StatusServiceUnavailable, "catalog_unavailable", "Reference catalog unavailable"
	case errors.Is(err, staffing.ErrStore):
		return http.StatusInternalServerError, "store_failed", "Failed to store reconciliation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled", "Request cancelled"
	default:
		return http.StatusInternalServerError, "internal", "Internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
