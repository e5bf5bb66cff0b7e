package handlers

import (
	"net/http"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/services"
)

// BracketHandler serves conference and game endpoints, including result
// recording for admins and the bot.
type BracketHandler struct {
	scheduleService services.ScheduleService
	bracketService  services.BracketService
	currentSeason   int
}

func NewBracketHandler(scheduleService services.ScheduleService, bracketService services.BracketService, currentSeason int) *BracketHandler {
	return &BracketHandler{
		scheduleService: scheduleService,
		bracketService:  bracketService,
		currentSeason:   currentSeason,
	}
}

func (h *BracketHandler) CreateConference(w http.ResponseWriter, r *http.Request) {
	var conference models.Conference
	if err := readJSON(w, r, &conference); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scheduleService.CreateConference(r.Context(), &conference); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"conference": conference}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetConference(w http.ResponseWriter, r *http.Request) {
	conferenceID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conference, err := h.scheduleService.GetConference(r.Context(), conferenceID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"conference": conference}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) ListConferences(w http.ResponseWriter, r *http.Request) {
	season, err := seasonQueryParam(r, h.currentSeason)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conferences, err := h.scheduleService.ListConferences(r.Context(), season)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"conferences": conferences}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) DeleteConference(w http.ResponseWriter, r *http.Request) {
	conferenceID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scheduleService.DeleteConference(r.Context(), conferenceID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BracketHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var input services.CreateGameInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.scheduleService.CreateGame(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.scheduleService.GetGame(r.Context(), gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetEntrants(w http.ResponseWriter, r *http.Request) {
	gameID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	home, away, err := h.bracketService.ResolvedEntrants(r.Context(), gameID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	response := jsonResponse{
		"home_team_id": home,
		"away_team_id": away,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scheduleService.DeleteGame(r.Context(), gameID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BracketHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	gameID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		WinnerTeamID int `json:"winner_team_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.bracketService.RecordResult(r.Context(), gameID, input.WinnerTeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) DeleteResult(w http.ResponseWriter, r *http.Request) {
	gameID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.bracketService.DeleteResult(r.Context(), gameID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BracketHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	conferenceID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	games, err := h.bracketService.ConferenceBracket(r.Context(), conferenceID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": games}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	conferenceID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	games, err := h.bracketService.Recompute(r.Context(), conferenceID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": games}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
