package handlers

import (
	"net/http"

	"github.com/Sayat07/hacklive-system/middleware"
	"github.com/Sayat07/hacklive-system/models"
	"github.com/Sayat07/hacklive-system/services"
)

type VoteHandler struct {
	voteService services.VoteService
}

func NewVoteHandler(vs services.VoteService) *VoteHandler {
	return &VoteHandler{
		voteService: vs,
	}
}

// SubmitHandler обрабатывает POST /events/{slug}/votes
func (h *VoteHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to vote")
		return
	}

	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var body struct {
		TeamName string           `json:"team_name"`
		Scores   models.SubScores `json:"scores"`
	}
	if err := readJSON(w, r, &body); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	vote, err := h.voteService.SubmitVote(r.Context(), currentUserID, services.SubmitVoteInput{
		EventSlug: slug,
		TeamName:  body.TeamName,
		Scores:    body.Scores,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"vote": vote}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MyVoteHandler обрабатывает GET /events/{slug}/teams/{teamName}/my-vote
func (h *VoteHandler) MyVoteHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	teamName, err := getSlugFromURL(r, "teamName")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	vote, err := h.voteService.GetMyVote(r.Context(), currentUserID, slug, teamName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	// vote == nil означает, что пользователь ещё не голосовал за команду.
	if err := writeJSON(w, http.StatusOK, jsonResponse{"vote": vote}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TeamVotesHandler обрабатывает GET /events/{slug}/teams/{teamName}/votes (админ)
func (h *VoteHandler) TeamVotesHandler(w http.ResponseWriter, r *http.Request) {
	slug, err := getSlugFromURL(r, "slug")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	teamName, err := getSlugFromURL(r, "teamName")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	votes, err := h.voteService.ListTeamVotes(r.Context(), slug, teamName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"votes": votes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
