package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/metrics"
	"github.com/iplens/iplens/internal/observability"
)

// Recovery turns a handler panic into a 500 with the standard error body.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			panicErr := errors.NewErrorEnvelope("INTERNAL_ERROR", "Internal server error").
				WithCorrelationID(GetRequestID(r.Context()))
			panicErr, _ = panicErr.WithContext(map[string]interface{}{
				"panic":       fmt.Sprint(rec),
				"stack_trace": string(debug.Stack()),
			})
			panicErr, _ = panicErr.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic()
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Recovered from handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.String("request_id", panicErr.CorrelationID),
				)
			}

			writeErrorResponse(w, panicErr, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorResponse mirrors the body written by internal/errors; it lives here
// because that package imports middleware.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	response := ErrorResponse{
		Error:     envelope.Message,
		Code:      envelope.Code,
		RequestID: envelope.CorrelationID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
