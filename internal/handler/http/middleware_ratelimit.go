package http

import (
	"net/http"
	"strconv"
	"time"
)

// withRateLimit throttles the API with a shared token bucket. Requests over
// the limit get 429 and a Retry-After hint.
func (h *Handler) withRateLimit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := h.limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(max(delay.Round(time.Second), time.Second)/time.Second)))
			h.fail(w, r, "*Handler.withRateLimit", ErrTooManyRequests, "rate limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}
