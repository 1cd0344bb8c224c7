package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hostelpass/internal/gateway/util"
	"hostelpass/internal/parent"
)

// ParentHandler exposes the parent-facing routes.
type ParentHandler struct {
	Parent *parent.Service
}

// RESTRejectRequest mirrors the expected JSON input for rejection routes
type RESTRejectRequest struct {
	Reason string `json:"reason"`
}

// GetStats handles GET /parent/stats
func (h *ParentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	stats, err := h.Parent.GetStats(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, stats)
}

// GetPendingRequests handles GET /parent/requests/pending
func (h *ParentHandler) GetPendingRequests(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	letters, err := h.Parent.GetPendingRequests(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, letters)
}

// GetHistory handles GET /parent/requests/history
func (h *ParentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	letters, err := h.Parent.GetHistory(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, letters)
}

// ApproveRequest handles POST /parent/requests/{id}/approve
func (h *ParentHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	pl, err := h.Parent.ApproveRequest(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pl)
}

// RejectRequest handles POST /parent/requests/{id}/reject
func (h *ParentHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody RESTRejectRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	pl, err := h.Parent.RejectRequest(r.Context(), p.ID, chi.URLParam(r, "id"), reqBody.Reason)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pl)
}
