package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Sayat07/hacklive-system/middleware"
	"github.com/Sayat07/hacklive-system/services"
)

type BroadcastHandler struct {
	broadcastService services.BroadcastService
}

func NewBroadcastHandler(bs services.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{
		broadcastService: bs,
	}
}

// CommandHandler обрабатывает POST /events/{slug}/broadcast
func (h *BroadcastHandler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to control the broadcast")
		return
	}

	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.BroadcastCommandInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.broadcastService.ExecuteCommand(r.Context(), slug, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetStateHandler обрабатывает GET /events/{slug}/state
func (h *BroadcastHandler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	state, err := h.broadcastService.GetState(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"state": state}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ControlLogHandler обрабатывает GET /events/{slug}/control-log
func (h *BroadcastHandler) ControlLogHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
		limit = parsed
	}

	entries, err := h.broadcastService.ListControlLog(r.Context(), slug, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"control_log": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
