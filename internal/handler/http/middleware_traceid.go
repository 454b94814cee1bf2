package http

import (
	"net/http"

	"github.com/google/uuid"
)

const traceIDHeader = "X-Trace-ID"

// withTraceID attaches a request-scoped logger carrying "trace_id" to the
// context. The id comes from the X-Trace-ID header or is generated, and is
// echoed in the response.
func (h *Handler) withTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		l := h.logger.With().Str("trace_id", traceID).Logger()

		w.Header().Set(traceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}
