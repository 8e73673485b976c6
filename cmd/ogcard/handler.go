package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/alnah/go-ogcard"
	"github.com/alnah/go-ogcard/internal/uploads"
)

// maxMultipartMemory bounds how much of a multipart body stays in
// memory before spilling to temp files.
const maxMultipartMemory = 4 << 20

// errorResponse is the JSON error body. Message is safe to show to
// clients; engine internals stay in the server log.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleGenerate accepts a multipart form with title, content and an
// optional image, renders the card and returns it as a JPEG.
func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge,
				"payload_too_large", "request body exceeds the upload limit")
			return
		}
		writeJSONError(w, http.StatusBadRequest,
			"validation", "request must be multipart/form-data")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	req := ogcard.Request{
		Title:   formValue(r, "title"),
		Content: formValue(r, "content"),
	}

	img, err := s.readImage(r)
	if err != nil {
		s.writeGenerateError(w, r, err)
		return
	}
	req.Image = img

	out, err := s.pool.Generate(r.Context(), req)
	if err != nil {
		s.writeGenerateError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", out.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes)
}

// formValue returns a pointer to the field's first value, or nil when
// the field is absent. A submitted empty string stays an empty string:
// only absence fails validation downstream.
func formValue(r *http.Request, field string) *string {
	vals, ok := r.MultipartForm.Value[field]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

// readImage extracts the optional image part. In disk mode the bytes
// are persisted and referenced by name; in inline mode they travel to
// the renderer as-is.
func (s *server) readImage(r *http.Request) (*ogcard.ImageInput, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if s.imageMode == ImageModeDisk {
		// The resolver never sees the raw bytes in disk mode, so the
		// allowlist must hold before anything is persisted and served.
		mt, err := s.checkImageType(contentType)
		if err != nil {
			return nil, err
		}
		name, err := s.store.Save(data, mt)
		if err != nil {
			if errors.Is(err, uploads.ErrUnsupportedType) {
				return nil, fmt.Errorf("%w: %q", ogcard.ErrDisallowedImageType, mt)
			}
			return nil, err
		}
		return ogcard.StoredImage(name), nil
	}
	return ogcard.RawImage(data, contentType), nil
}

// checkImageType normalizes the declared content type and enforces the
// configured allowlist. Empty declarations mean image/jpeg, matching
// the resolver's fallback on the inline path.
func (s *server) checkImageType(declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		declared = "image/jpeg"
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ogcard.ErrDisallowedImageType, declared)
	}
	mt = strings.ToLower(mt)
	if !s.allowedTypes[mt] {
		return "", fmt.Errorf("%w: %q", ogcard.ErrDisallowedImageType, mt)
	}
	return mt, nil
}

// writeGenerateError maps pipeline errors to HTTP responses. Client
// mistakes echo the error message; engine failures get a generic body
// and a detailed log line.
func (s *server) writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	switch cat := ogcard.Categorize(err); cat {
	case ogcard.CategoryValidation, ogcard.CategoryAsset:
		writeJSONError(w, http.StatusBadRequest, string(cat), err.Error())
	case ogcard.CategoryBackpressure:
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusTooManyRequests, string(cat),
			"server is at render capacity, retry shortly")
	default:
		s.log.Error("card generation failed", "error", err, "path", r.URL.Path)
		writeJSONError(w, http.StatusInternalServerError, string(cat),
			"image generation failed")
	}
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Kind: kind, Message: message})
}
