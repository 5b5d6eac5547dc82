package handlers

import (
	"net/http"

	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/services"
)

type WeightsHandler struct {
	voteService services.VoteService
}

func NewWeightsHandler(vs services.VoteService) *WeightsHandler {
	return &WeightsHandler{
		voteService: vs,
	}
}

// GetHandler обрабатывает GET /events/{slug}/weights
func (h *WeightsHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	weights, err := h.voteService.GetWeights(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"weights": weights}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler обрабатывает PUT /events/{slug}/weights
func (h *WeightsHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var body struct {
		Viability  float64 `json:"viability"`
		Innovation float64 `json:"innovation"`
		Pitch      float64 `json:"pitch"`
		Demo       float64 `json:"demo"`
	}
	if err := readJSON(w, r, &body); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	weights, err := h.voteService.SetWeights(r.Context(), slug, models.VotingWeights{
		EventSlug:  slug,
		Viability:  body.Viability,
		Innovation: body.Innovation,
		Pitch:      body.Pitch,
		Demo:       body.Demo,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"weights": weights}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
