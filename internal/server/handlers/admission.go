package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/core/admission"
	"github.com/iplens/iplens/internal/core/clientip"
	apperrors "github.com/iplens/iplens/internal/errors"
	"github.com/iplens/iplens/internal/server/middleware"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// AdmissionGate applies the admission controller to protected endpoints.
// Every endpoint passes its own key and limit so counters never mix.
type AdmissionGate struct {
	Controller *admission.Controller

	// TrustProxyHeaders is used when the ClientID middleware did not run.
	TrustProxyHeaders bool
}

// Admit charges one request from the caller against endpoint. It always sets
// the rate limit headers; on denial it writes the 429 response and returns
// false, and the caller must not write anything else.
func (g *AdmissionGate) Admit(w http.ResponseWriter, r *http.Request, endpoint string, limit int) bool {
	client := middleware.GetClientID(r.Context())
	if client == "" {
		client = clientip.FromRequest(r, g.TrustProxyHeaders)
	}

	decision := g.Controller.CheckContext(r.Context(), client, endpoint, limit)
	SetRateLimitHeaders(w.Header(), decision)
	if decision.Allowed {
		return true
	}

	w.Header().Set(HeaderRetryAfter, strconv.Itoa(decision.ResetIn))
	respondWithError(w, r, apperrors.NewRateLimitedError(
		fmt.Sprintf("Too many requests. Please wait %d seconds before trying again.", decision.ResetIn),
		decision.ResetIn,
	))
	return false
}

// SetRateLimitHeaders writes the limit, remaining and reset headers for d.
func SetRateLimitHeaders(h http.Header, d core.Decision) {
	h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderRateLimitReset, strconv.Itoa(d.ResetIn))
}
