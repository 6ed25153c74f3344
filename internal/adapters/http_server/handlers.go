// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog/log"

	"hotel_pricing/internal/adapters/workbook"
	"hotel_pricing/internal/app"
	"hotel_pricing/internal/domain"
)

const defaultMaxUpload = 10 << 20

type Importer interface {
	Import(ctx context.Context, who domain.Principal, req app.ImportRequest) (domain.ImportResult, error)
}

type PricingQuery interface {
	GetHotelPricing(ctx context.Context, who domain.Principal, hotelID int64) (domain.HotelPricingView, error)
}

type Handlers struct {
	Imports Importer
	Q       PricingQuery
	// MaxUploadBytes caps the uploaded file; 0 means 10 MiB.
	MaxUploadBytes int64
	// ImportTimeout bounds one import run; 0 means no deadline. Client disconnects do not
	// cancel a run that has started.
	ImportTimeout time.Duration
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

type validationDetails struct {
	Errors   []domain.ParseError `json:"errors"`
	Warnings []string            `json:"warnings"`
	Stats    domain.ImportStats  `json:"stats"`
}

type importResponse struct {
	Success  bool                 `json:"success"`
	ImportID string               `json:"importId"`
	Summary  domain.ImportSummary `json:"summary"`
	Warnings []string             `json:"warnings"`
}

// routes behind the API key gate
func (s *Server) MountHandlers(h *Handlers, ident Identifier) {
	s.mux.With(Timeout(s.timeout)).Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(ident))
		r.Post("/v1/pricing/imports", h.importPricing)
		r.With(Timeout(s.timeout)).Get("/v1/hotels/{id}/pricing", h.getHotelPricing)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

var uploadName = regexp.MustCompile(`(?i)\.(xlsx|xlsm|csv|tsv|txt)$`)

type uploadRequest struct {
	FileName string
	Size     int64
	Sheet    string
	DryRun   string
}

func (u uploadRequest) validate(maxBytes int64) error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.FileName, validation.Required, validation.Match(uploadName).Error("must be a .xlsx, .xlsm, .csv, .tsv or .txt file")),
		validation.Field(&u.Size, validation.Required.Error("file is empty"), validation.Max(maxBytes).Error(fmt.Sprintf("file exceeds %d bytes", maxBytes))),
		validation.Field(&u.Sheet, validation.Length(0, 64)),
		validation.Field(&u.DryRun, validation.In("", "true", "false", "1", "0").Error("must be true or false")),
	)
}

func (h *Handlers) importPricing(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	// room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("file exceeds %d bytes", maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "could not read uploaded file")
		return
	}
	up := uploadRequest{FileName: hdr.Filename, Size: int64(len(data)), Sheet: r.FormValue("sheet"), DryRun: r.FormValue("dry_run")}
	if err := up.validate(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if h.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ImportTimeout)
		defer cancel()
	}
	res, err := h.Imports.Import(ctx, PrincipalFrom(r.Context()), app.ImportRequest{
		FileName:  up.FileName,
		SheetName: up.Sheet,
		Data:      data,
		DryRun:    up.DryRun == "true" || up.DryRun == "1",
	})
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, ImportID: res.ImportID, Summary: res.Summary, Warnings: warnings})
}

func (h *Handlers) writeImportError(w http.ResponseWriter, err error) {
	var fail *app.ImportFailure
	switch {
	case errors.As(err, &fail):
		d := validationDetails{Errors: fail.Errors, Warnings: fail.Warnings, Stats: fail.Stats}
		if d.Warnings == nil {
			d.Warnings = []string{}
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:   fmt.Sprintf("pricing import rejected: %d row error(s), nothing was saved", len(fail.Errors)),
			Code:    "VALIDATION",
			Details: d,
		})
	case errors.Is(err, workbook.ErrUnreadable):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not allowed to import pricing")
	case errors.Is(err, app.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "PERSISTENCE",
			"saving pricing failed part-way; some rows may already be saved. Re-run the same file, repeating an import is safe")
	default:
		log.Error().Err(err).Msg("pricing import failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h *Handlers) getHotelPricing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "id must be a positive number")
		return
	}

	out, err := h.Q.GetHotelPricing(r.Context(), PrincipalFrom(r.Context()), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "hotel not found")
		return
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "not allowed to read pricing")
		return
	case err != nil:
		log.Error().Err(err).Int64("hotel_id", id).Msg("get hotel pricing failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	etag, body := calcETagAndBody(out)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getHotelPricing body")
	}
}
