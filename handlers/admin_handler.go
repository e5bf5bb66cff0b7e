package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/services"
)

type AdminHandler struct {
	adminService services.AdminService
}

func NewAdminHandler(adminService services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ListApplicants(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListApplicants(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"applicants": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Role models.UserRole `json:"role"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.adminService.SetRole(r.Context(), userID, input.Role); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) PromoteVoters(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, h.adminService.PromoteVoters)
}

func (h *AdminHandler) DemoteVoters(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, h.adminService.DemoteVoters)
}

func (h *AdminHandler) ClearApplicationFlags(w http.ResponseWriter, r *http.Request) {
	h.runBatch(w, r, h.adminService.ClearApplicationFlags)
}

func (h *AdminHandler) runBatch(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, ids []int) []services.BatchOutcome) {
	var input struct {
		UserIDs []int `json:"user_ids"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.UserIDs) == 0 {
		badRequestResponse(w, r, errors.New("user_ids must not be empty"))
		return
	}

	outcomes := fn(r.Context(), input.UserIDs)
	if err := writeJSON(w, http.StatusOK, jsonResponse{"outcomes": outcomes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := idURLParam(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
