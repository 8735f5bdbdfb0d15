package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/procureflow/procureflow/internal/log"
)

// writeJSON writes a JSON response with the given status code. The
// body is encoded into a buffer first so headers are only sent after
// successful encoding.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body failed", "error", err)
	}
}

type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, msg string, logger log.Logger) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: msg}}, logger)
}

// decodeJSON decodes a bounded request body into dst.
func decodeJSON(r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
