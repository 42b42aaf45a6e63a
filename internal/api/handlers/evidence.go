package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/truststack/internal/api"
	"github.com/cloo-solutions/truststack/internal/api/middleware"
	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/go-chi/chi/v5"
)

type EvidenceService interface {
	Upload(ctx context.Context, input service.UploadEvidenceInput) (*domain.Evidence, error)
	Open(ctx context.Context, projectID, hash string) (*service.EvidenceBlob, error)
}

type EvidenceHandler struct {
	svc EvidenceService
}

func NewEvidenceHandler(svc EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{svc: svc}
}

// fieldLimit bounds the plain form fields read ahead of the file part.
const fieldLimit = 4 << 10

// Upload accepts either a multipart form with a "file" part or a raw body
// named by the file_name query parameter. Multipart bodies are streamed part
// by part, so a file_name field only applies when it precedes the file.
func (h *EvidenceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	input := service.UploadEvidenceInput{
		ProjectID: chi.URLParam(r, "id"),
		ItemID:    chi.URLParam(r, "itemID"),
		Actor:     middleware.GetActor(r.Context()),
		FileName:  r.URL.Query().Get("file_name"),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		input.Body = r.Body
		input.ContentType = mediaType
		h.upload(w, r, input)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		api.HandleError(w, domain.NewValidationError("file", "invalid multipart body"))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			handleMultipartError(w, err)
			return
		}

		switch part.FormName() {
		case "file_name":
			value, err := io.ReadAll(io.LimitReader(part, fieldLimit))
			part.Close()
			if err != nil {
				handleMultipartError(w, err)
				return
			}
			if name := strings.TrimSpace(string(value)); name != "" {
				input.FileName = name
			}
		case "file":
			defer part.Close()
			input.Body = part
			if input.FileName == "" {
				input.FileName = part.FileName()
			}
			input.ContentType = part.Header.Get("Content-Type")
			h.upload(w, r, input)
			return
		default:
			part.Close()
		}
	}

	api.HandleError(w, domain.NewValidationError("file", "multipart field \"file\" is required"))
}

func handleMultipartError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.HandleError(w, err)
		return
	}
	api.HandleError(w, domain.NewValidationError("file", "invalid multipart body"))
}

func (h *EvidenceHandler) upload(w http.ResponseWriter, r *http.Request, input service.UploadEvidenceInput) {
	ev, err := h.svc.Upload(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, ev)
}

// Download streams a stored evidence file by its SHA-256.
func (h *EvidenceHandler) Download(w http.ResponseWriter, r *http.Request) {
	blob, err := h.svc.Open(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sha256"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	defer blob.Body.Close()

	contentType := blob.Evidence.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Evidence.FileName}))
	w.Header().Set("ETag", `"`+blob.Evidence.SHA256+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob.Body); err != nil {
		log.Printf("evidence download %s interrupted: %v", blob.Evidence.SHA256, err)
	}
}
