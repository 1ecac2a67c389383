package source

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/httpx"
	"citeground/internal/store"
)

const maxIngestJSONBytes = 1 << 20 // 1MB, text payloads go through the same cap as any other JSON body

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadSizeMB int64) *Handler {
	maxBytes := maxUploadSizeMB << 20
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Handler{service: service, maxUploadBytes: maxBytes}
}

// Upload handles POST /sources/upload (multipart: file, title?).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httpx.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"detail": "upload exceeds MAX_UPLOAD_SIZE_MB"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, r, apperr.Validation("file field is required"))
		return
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		httpx.WriteJSON(w, http.StatusUnsupportedMediaType, map[string]string{"detail": "only pdf uploads are accepted"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httpx.WriteError(w, r, apperr.Wrap(apperr.KindValidation, "failed to read uploaded file", err))
		return
	}

	title := r.FormValue("title")
	src, err := h.service.CreatePDF(r.Context(), title, header.Filename, data)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, src)
}

// Ingest handles POST /sources/ingest (json: text?|url?, title?).
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text,omitempty"`
		URL   string `json:"url,omitempty"`
		Title string `json:"title,omitempty"`
	}
	if err := httpx.DecodeJSON(w, r, maxIngestJSONBytes, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	hasText := strings.TrimSpace(req.Text) != ""
	hasURL := strings.TrimSpace(req.URL) != ""
	if hasText == hasURL {
		httpx.WriteError(w, r, apperr.Validation("exactly one of text or url is required"))
		return
	}

	var src *domain.Source
	var err error
	if hasText {
		src, err = h.service.CreateText(r.Context(), req.Title, req.Text)
	} else {
		src, err = h.service.CreateURL(r.Context(), req.Title, req.URL)
	}
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"detail": err.Error()})
			return
		}
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, src)
}

// List handles GET /sources?limit&offset&status&source_type.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ListFilter{
		Status:     domain.SourceStatus(q.Get("status")),
		SourceType: domain.SourceType(q.Get("source_type")),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = offset
	}

	sources, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if sources == nil {
		sources = []domain.Source{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// Get handles GET /sources/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, src)
}

// Delete handles DELETE /sources/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
