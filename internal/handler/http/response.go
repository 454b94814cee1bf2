package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/go-chi/chi/v5"
)

// fail logs err and writes it as a JSON error with the status mapped by
// statusFromError. Server-side failures are reported with msg only.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, fn string, err error, msg string) {
	status := statusFromError(err)
	log := logger.FromRequest(r)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("func", fn).Int("status", status).Msg(msg)

	if status >= http.StatusInternalServerError {
		utils.WriteError(w, msg, status)
		return
	}
	utils.WriteError(w, err.Error(), status)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return nil
}

// tripIDParam parses the numeric {id} path parameter.
func tripIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// wantsWait reports whether the caller asked to wait for background work
// with ?wait=true.
func wantsWait(r *http.Request) bool {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return wait
}

// writeResponse is the body of a create or update.
type writeResponse[T any] struct {
	Record  T      `json:"record"`
	Outcome string `json:"outcome"`
}

type outcomeResponse struct {
	Outcome string `json:"outcome"`
}

// nonNil keeps empty lists rendered as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
