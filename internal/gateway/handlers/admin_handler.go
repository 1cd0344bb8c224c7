package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hostelpass/internal/admin"
	"hostelpass/internal/gateway/util"
)

// AdminHandler exposes the account-administration routes.
type AdminHandler struct {
	Admin *admin.Service
}

// GetStats handles GET /admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Admin.GetStats(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, stats)
}

// AddStudent handles POST /admin/students
func (h *AdminHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	var reqBody admin.StudentRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.Admin.AddStudent(r.Context(), reqBody)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, st)
}

// AddParent handles POST /admin/parents
func (h *AdminHandler) AddParent(w http.ResponseWriter, r *http.Request) {
	var reqBody admin.ParentRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.Admin.AddParent(r.Context(), reqBody)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, p)
}

// AddWarden handles POST /admin/wardens
func (h *AdminHandler) AddWarden(w http.ResponseWriter, r *http.Request) {
	var reqBody admin.WardenRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	wd, err := h.Admin.AddWarden(r.Context(), reqBody)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, wd)
}

// GetStudents handles GET /admin/students
func (h *AdminHandler) GetStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Admin.GetStudents(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, students)
}

// GetParents handles GET /admin/parents
func (h *AdminHandler) GetParents(w http.ResponseWriter, r *http.Request) {
	parents, err := h.Admin.GetParents(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, parents)
}

// GetWardens handles GET /admin/wardens
func (h *AdminHandler) GetWardens(w http.ResponseWriter, r *http.Request) {
	wards, err := h.Admin.GetWardens(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, wards)
}

// DeleteAccount handles DELETE /admin/accounts/{role}/{id}
func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	id := chi.URLParam(r, "id")

	if err := h.Admin.DeleteAccount(r.Context(), role, id); err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Account deleted",
	})
}
