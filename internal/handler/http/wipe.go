package http

import (
	"encoding/json"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/MKhiriev/go-fish-log/models"
)

const ndjsonContentType = "application/x-ndjson"

// wipe deletes every remote document and photo of the token's user and
// streams the progress as newline-delimited JSON. A failure after streaming
// began is reported as a final {"error": ...} line.
func (h *Handler) wipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	userID, _ := utils.GetUserIDFromContext(ctx)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	streaming := false

	err := h.services.DataService.ClearRemoteUserData(ctx, userID, func(p models.WipeProgress) {
		if !streaming {
			w.Header().Set("Content-Type", ndjsonContentType)
			w.WriteHeader(http.StatusOK)
			streaming = true
		}
		if err := enc.Encode(p); err != nil {
			log.Debug().Err(err).Str("func", "*Handler.wipe").Msg("client went away")
			return
		}
		_ = rc.Flush()
	})

	switch {
	case err == nil && !streaming:
		w.WriteHeader(http.StatusNoContent)
	case err == nil:
	case !streaming:
		h.fail(w, r, "*Handler.wipe", err, "error clearing remote data")
	default:
		log.Error().Err(err).Str("func", "*Handler.wipe").Msg("wipe failed midway")
		_ = enc.Encode(utils.ErrorResponse{Error: err.Error()})
		_ = rc.Flush()
	}
}
