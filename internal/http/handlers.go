package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"salesplan/internal/domain"
	"salesplan/internal/importer"
	"salesplan/internal/wire"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// multipartOverhead covers form boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// Importer is the part of importer.Service the handlers call.
type Importer interface {
	Preview(ctx context.Context, kind domain.RecordKind, upload importer.Upload) (importer.PreviewResult, error)
	Commit(ctx context.Context, kind domain.RecordKind, rows []wire.SerializedRow, actorID string) (domain.CommitResult, error)
}

type Handler struct {
	svc         Importer
	log         *zap.Logger
	maxFileSize int64
}

type previewResponse struct {
	Success     bool                 `json:"success"`
	Format      domain.ExcelFormat   `json:"format"`
	Validation  wire.Validation      `json:"validation"`
	PreviewData []wire.SerializedRow `json:"previewData"`
}

type commitRequest struct {
	Rows []wire.SerializedRow `json:"rows"`
}

type commitResponse struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	BatchID  string `json:"batchId"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Action  string `json:"action,omitempty"`
}

func NewHandler(svc Importer, log *zap.Logger, maxFileSize int64) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxFileSize <= 0 || maxFileSize > importer.MaxFileSize {
		maxFileSize = importer.MaxFileSize
	}
	return &Handler{svc: svc, log: log, maxFileSize: maxFileSize}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) PreviewForecasts(w http.ResponseWriter, r *http.Request) {
	h.preview(w, r, domain.KindForecast)
}

func (h *Handler) PreviewSales(w http.ResponseWriter, r *http.Request) {
	h.preview(w, r, domain.KindSale)
}

func (h *Handler) CommitForecasts(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, domain.KindForecast)
}

func (h *Handler) CommitSales(w http.ResponseWriter, r *http.Request) {
	h.commit(w, r, domain.KindSale)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request, kind domain.RecordKind) {
	upload, err := h.readUpload(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.svc.Preview(r.Context(), kind, upload)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	preview := result.PreviewData
	if preview == nil {
		preview = []wire.SerializedRow{}
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Success:     true,
		Format:      result.Format,
		Validation:  result.Validation,
		PreviewData: preview,
	})
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request, kind domain.RecordKind) {
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", importer.ErrInvalidPayload, err))
		return
	}

	result, err := h.svc.Commit(r.Context(), kind, req.Rows, ActorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, commitResponse{
		Success:  true,
		Imported: result.Imported,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
		BatchID:  result.BatchID.String(),
	})
}

// readUpload reads the multipart "file" field. One byte past the limit is
// kept so the size check can tell an oversized file from one at the limit.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (importer.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxFileSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return importer.Upload{}, fmt.Errorf("%w: request body over %d bytes", importer.ErrFileTooLarge, tooLarge.Limit)
		}
		return importer.Upload{}, fmt.Errorf("%w: failed to parse multipart form", importer.ErrInvalidPayload)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return importer.Upload{}, fmt.Errorf("%w: file field is required", importer.ErrInvalidPayload)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		return importer.Upload{}, fmt.Errorf("%w: read upload: %w", importer.ErrInvalidWorkbook, err)
	}
	return importer.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg := importer.Describe(err)
	status := statusFor(err)

	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.String("code", msg.Code),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("import request failed", fields...)
	} else {
		h.log.Warn("import request rejected", fields...)
	}

	writeFailure(w, status, msg.Message, msg.Code, msg.Action)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrInvalidMimeType), errors.Is(err, importer.ErrInvalidSignature):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importer.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, importer.ErrNoRowsToImport), errors.Is(err, importer.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrInvalidWorkbook),
		errors.Is(err, importer.ErrFormatUndetected),
		errors.Is(err, importer.ErrWrongFormat),
		errors.Is(err, importer.ErrMissingColumns),
		errors.Is(err, importer.ErrNoDataRows),
		errors.Is(err, importer.ErrSecurityValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFailure(w http.ResponseWriter, status int, message, code, action string) {
	writeJSON(w, status, failureResponse{Success: false, Error: message, Code: code, Action: action})
}
