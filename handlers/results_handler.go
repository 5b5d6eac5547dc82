package handlers

import (
	"net/http"

	"github.com/Sayat07/hacklive-system/services"
)

type ResultsHandler struct {
	resultsService services.ResultsService
}

func NewResultsHandler(rs services.ResultsService) *ResultsHandler {
	return &ResultsHandler{
		resultsService: rs,
	}
}

// StandingsHandler обрабатывает GET /events/{slug}/results
func (h *ResultsHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.resultsService.GetStandings(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TeamsHandler обрабатывает GET /events/{slug}/teams
func (h *ResultsHandler) TeamsHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	teams, err := h.resultsService.ListTeams(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"teams": teams}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
