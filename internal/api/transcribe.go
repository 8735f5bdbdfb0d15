package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/transcribe"
)

// transcribeHandler serves POST /api/transcribe. A nil transcriber
// means the OpenAI key is missing.
type transcribeHandler struct {
	transcriber transcribe.Transcriber
	maxBytes    int64
	logger      log.Logger
}

type transcribeResponse struct {
	Text              string   `json:"text"`
	Segments          []string `json:"segments"`
	Language          string   `json:"language,omitempty"`
	DurationInSeconds float64  `json:"durationInSeconds,omitempty"`
	Warnings          []string `json:"warnings"`
}

func (h *transcribeHandler) handle(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		writeJSON(w, http.StatusInternalServerError,
			map[string]string{"error": "Server not configured: missing OPENAI_API_KEY"}, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "file_too_large", "message": "Audio exceeds 20MB limit",
			}, h.logger)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no_file", "message": "No audio file provided",
		}, h.logger)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	header := firstFile(r.MultipartForm)
	if header == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no_file", "message": "No audio file provided",
		}, h.logger)
		return
	}

	mediaType := header.Header.Get("Content-Type")
	file, err := header.Open()
	if err != nil {
		h.logger.Error("opening upload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription_failed"}, h.logger)
		return
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(r.Context(), header.Filename, mediaType, file)
	if err != nil {
		if errors.Is(err, transcribe.ErrUnsupportedMedia) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unsupported_mime", "message": "Unsupported MIME type: " + mediaType,
			}, h.logger)
			return
		}
		h.logger.Error("transcription failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription_failed"}, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Text:     text,
		Segments: []string{},
		Warnings: []string{},
	}, h.logger)
}

// firstFile returns the first uploaded file regardless of field name.
func firstFile(form *multipart.Form) *multipart.FileHeader {
	for _, headers := range form.File {
		if len(headers) > 0 {
			return headers[0]
		}
	}
	return nil
}
