package handlers

import (
	"net/http"
	"time"

	"github.com/iplens/iplens/internal/core/admission"
	apperrors "github.com/iplens/iplens/internal/errors"
)

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	WindowSeconds int                     `json:"window_seconds"`
	Tracked       map[string]int          `json:"tracked_clients"`
	Decisions     admission.StatsSnapshot `json:"decisions"`
	Timestamp     time.Time               `json:"timestamp"`
}

// StatsHandler reports admission decision counters from the in-memory
// recorder along with the number of clients tracked per endpoint.
type StatsHandler struct {
	Controller *admission.Controller
	Stats      *admission.MemoryStats
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Stats == nil || h.Controller == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("Admission stats are not enabled"))
		return
	}

	snapshot := h.Stats.Snapshot()
	tracked := make(map[string]int, len(snapshot.ByEndpoint))
	for _, endpoint := range h.Stats.Endpoints() {
		tracked[endpoint] = h.Controller.Size(endpoint)
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		WindowSeconds: int(h.Controller.Window() / time.Second),
		Tracked:       tracked,
		Decisions:     snapshot,
		Timestamp:     time.Now().UTC(),
	})
}
