package api

import (
	"net/http"
	"time"

	"github.com/procureflow/procureflow/internal/log"
)

// health serves GET /api/health for load balancer probes.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"now":    time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}
