package proposal_api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	proposals "venuly/internal/proposals/service"
	"venuly/internal/utils"
)

type Handler struct {
	ProposalService *proposals.ProposalService
	Logger          *logger.Logger
}

// Routes mounts /api/proposals.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListProposals)
	r.With(auth.WithRole(models.RoleOrganizer, h.Logger)).Post("/", h.CreateProposal)
	r.Post("/pass/verify", h.VerifyPass)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetProposal)
		r.Patch("/", h.UpdateProposal)
		r.Get("/pass", h.BookingPass)
	})
	return r
}

func (h *Handler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireRole(r.Context(), models.RoleOrganizer)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req proposals.CreateProposalRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	proposal, err := h.ProposalService.CreateProposal(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"proposal": proposal})
}

func (h *Handler) ListProposals(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	q := r.URL.Query()
	list, err := h.ProposalService.ListProposals(r.Context(), id, q.Get("eventId"), models.ProposalStatus(q.Get("status")))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"proposals": list})
}

func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	proposal, err := h.ProposalService.GetProposal(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"proposal": proposal})
}

func (h *Handler) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req proposals.UpdateProposalRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	proposal, err := h.ProposalService.UpdateProposal(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"proposal": proposal})
}

func (h *Handler) BookingPass(w http.ResponseWriter, r *http.Request) {
	id, err := auth.RequireAuth(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	png, err := h.ProposalService.BookingPass(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// VerifyPass is used by venue staff scanning a pass; any signed-in user may call it.
func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireAuth(r.Context()); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	var req proposals.VerifyPassRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}

	result, err := h.ProposalService.VerifyPass(r.Context(), req)
	if err != nil {
		utils.WriteError(w, h.Logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}
