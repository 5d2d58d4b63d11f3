package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/core/dnsbl"
	apperrors "github.com/iplens/iplens/internal/errors"
	"github.com/iplens/iplens/internal/observability"
)

// BlacklistEndpoint is the admission key for GET /blacklist.
const BlacklistEndpoint = "blacklist"

// DefaultBlacklistLimit is the per-window request limit for /blacklist.
const DefaultBlacklistLimit = 20

// Checker runs a reputation check of ip against lists.
type Checker interface {
	CheckAll(ctx context.Context, ip string, lists []core.BlacklistDefinition) (*core.AggregateResult, error)
}

// BlacklistHandler serves GET /blacklist?ip=<literal>.
type BlacklistHandler struct {
	Gate    *AdmissionGate
	Checker Checker
	Lists   []core.BlacklistDefinition
	Limit   int
}

func (h *BlacklistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Gate.Admit(w, r, BlacklistEndpoint, h.Limit) {
		return
	}

	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("IP address is required"))
		return
	}

	result, err := h.Checker.CheckAll(r.Context(), ip, h.Lists)
	if errors.Is(err, dnsbl.ErrInvalidAddressFormat) {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "Invalid IP address format"))
		return
	}
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Blacklist check failed"))
		return
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Blacklist check completed",
			zap.String("ip", ip),
			zap.Int("listed", result.ListedCount),
			zap.Int("errored", result.Errored()),
			zap.Int("total", result.Total))
	}

	writeJSON(w, http.StatusOK, result)
}
