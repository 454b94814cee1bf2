package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/service"
	"github.com/MKhiriev/go-fish-log/internal/utils"
)

type signInRequest struct {
	// Merge uploads the records kept locally as a guest right after sign-in.
	Merge bool `json:"merge"`
}

type sessionResponse struct {
	State  string `json:"state"`
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	Online bool   `json:"online"`
}

type signInResponse struct {
	Session    sessionResponse      `json:"session"`
	Merge      *service.MergeResult `json:"merge,omitempty"`
	MergeError string               `json:"mergeError,omitempty"`
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

type connectivityResponse struct {
	Online bool                 `json:"online"`
	Drain  *service.DrainResult `json:"drain,omitempty"`
}

func (h *Handler) sessionSnapshot() sessionResponse {
	s := h.services.DataService.Session()
	return sessionResponse{
		State:  s.State.String(),
		UserID: s.UserID,
		Email:  s.Email,
		Online: h.services.DataService.Connectivity() == service.Online,
	}
}

// signIn runs behind auth: the user comes from the validated token.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req signInRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, "*Handler.signIn", err, "invalid sign-in request")
		return
	}

	userID, _ := utils.GetUserIDFromContext(ctx)
	email, _ := utils.GetEmailFromContext(ctx)

	// the drain started by sign-in outlives the request
	if err := h.services.DataService.SignIn(context.WithoutCancel(ctx), userID, email); err != nil {
		h.fail(w, r, "*Handler.signIn", err, "sign-in failed")
		return
	}

	resp := signInResponse{}
	if req.Merge {
		result, err := h.services.DataService.MergeLocalDataForUser(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("func", "*Handler.signIn").Msg("guest data merge failed")
			resp.MergeError = err.Error()
		} else {
			resp.Merge = &result
		}
	}
	resp.Session = h.sessionSnapshot()

	utils.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.services.DataService.SignOut(r.Context()); err != nil {
		h.fail(w, r, "*Handler.signOut", err, "sign-out failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, h.sessionSnapshot(), http.StatusOK)
}

// setConnectivity lets the UI report what the platform knows about the
// network. With ?wait=true the response carries the drain it triggered.
func (h *Handler) setConnectivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req connectivityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "*Handler.setConnectivity", err, "invalid connectivity request")
		return
	}
	if req.Online == nil {
		h.fail(w, r, "*Handler.setConnectivity", ErrInvalidJSON, "online flag is required")
		return
	}

	c := service.Offline
	if *req.Online {
		c = service.Online
	}
	task := h.services.DataService.SetConnectivity(context.WithoutCancel(ctx), c)

	resp := connectivityResponse{Online: *req.Online}
	if wantsWait(r) {
		result, err := task.Wait(ctx)
		if err != nil {
			h.fail(w, r, "*Handler.setConnectivity", err, "sync queue drain failed")
			return
		}
		resp.Drain = &result
	}

	utils.WriteJSON(w, resp, http.StatusOK)
}
