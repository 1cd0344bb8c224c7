package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hostelpass/internal/gateway/util"
	"hostelpass/internal/student"
)

// StudentHandler exposes the student-facing routes.
type StudentHandler struct {
	Student *student.Service
}

// RESTOutpassRequest mirrors the expected JSON input for /student/outpass
type RESTOutpassRequest struct {
	PlaceOfVisit string `json:"place_of_visit"`
}

// GetStats handles GET /student/stats
func (h *StudentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	stats, err := h.Student.GetStats(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, stats)
}

// GetProfile handles GET /student/profile
func (h *StudentHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	profile, err := h.Student.GetProfile(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, profile)
}

// RequestPL handles POST /student/permission-letters
func (h *StudentHandler) RequestPL(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody student.PLRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	pl, err := h.Student.RequestPL(r.Context(), p.ID, reqBody)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, pl)
}

// GetPLRequests handles GET /student/permission-letters
func (h *StudentHandler) GetPLRequests(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	letters, err := h.Student.GetPLRequests(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, letters)
}

// GetPLCard handles GET /student/permission-letters/{id}/card
func (h *StudentHandler) GetPLCard(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	pl, err := h.Student.GetPLCard(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pl)
}

// RequestOutpass handles POST /student/outpass
func (h *StudentHandler) RequestOutpass(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody RESTOutpassRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	outpass, err := h.Student.RequestOutpass(r.Context(), p.ID, reqBody.PlaceOfVisit)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, outpass)
}

// GetOutpassHistory handles GET /student/outpass/history
func (h *StudentHandler) GetOutpassHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	passes, err := h.Student.GetOutpassHistory(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, passes)
}

// GetActiveOutpass handles GET /student/outpass/active
func (h *StudentHandler) GetActiveOutpass(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	outpass, err := h.Student.GetActiveOutpass(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, outpass)
}
