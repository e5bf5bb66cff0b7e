package handlers

import (
	"net/http"
	"strconv"

	"github.com/courtside/cbbpoll/middleware"
	"github.com/courtside/cbbpoll/services"
)

type PredictionHandler struct {
	predictionService services.PredictionService
	currentSeason     int
}

func NewPredictionHandler(predictionService services.PredictionService, currentSeason int) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		currentSeason:     currentSeason,
	}
}

func (h *PredictionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	gameID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		TeamID int `json:"team_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	prediction, err := h.predictionService.Submit(r.Context(), userID, gameID, input.TeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"prediction": prediction}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	season, err := seasonQueryParam(r, h.currentSeason)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	predictions, err := h.predictionService.ListForSeason(r.Context(), userID, season)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"predictions": predictions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) MyScore(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	season, err := seasonQueryParam(r, h.currentSeason)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.predictionService.Score(r.Context(), userID, season)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	response := jsonResponse{
		"season": season,
		"score":  score,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PredictionHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	season, err := seasonQueryParam(r, h.currentSeason)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.predictionService.Leaderboard(r.Context(), season, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"leaderboard": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
