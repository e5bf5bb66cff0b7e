package handlers

import (
	"net/http"

	"github.com/courtside/cbbpoll/middleware"
	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/services"
)

type PollHandler struct {
	pollService   services.PollService
	currentSeason int
}

func NewPollHandler(pollService services.PollService, currentSeason int) *PollHandler {
	return &PollHandler{
		pollService:   pollService,
		currentSeason: currentSeason,
	}
}

func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var poll models.Poll
	if err := readJSON(w, r, &poll); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if poll.Season == 0 {
		poll.Season = h.currentSeason
	}

	if err := h.pollService.CreatePoll(r.Context(), &poll); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"poll": poll}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
	season, err := seasonQueryParam(r, h.currentSeason)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	polls, err := h.pollService.ListSeason(r.Context(), season)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"polls": polls}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	pollID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	poll, err := h.pollService.GetPoll(r.Context(), pollID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"poll": poll}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) GetByWeek(w http.ResponseWriter, r *http.Request) {
	week, err := idURLParam(r, "week")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	season, err := seasonQueryParam(r, h.currentSeason)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	poll, err := h.pollService.GetPollForWeek(r.Context(), season, week)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"poll": poll}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) Results(w http.ResponseWriter, r *http.Request) {
	pollID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.pollService.Results(r.Context(), pollID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	pollID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Entries []services.BallotEntry `json:"entries"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ballot, err := h.pollService.SubmitBallot(r.Context(), userID, pollID, input.Entries)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"ballot": ballot}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) MyBallot(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	pollID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ballot, err := h.pollService.GetBallot(r.Context(), userID, pollID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"ballot": ballot}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	pollID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.pollService.RecomputeResults(r.Context(), pollID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PollHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pollID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.pollService.DeletePoll(r.Context(), pollID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
