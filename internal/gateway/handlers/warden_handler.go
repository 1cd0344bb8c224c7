package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hostelpass/internal/gateway/util"
	"hostelpass/internal/warden"
)

// WardenHandler exposes the warden-facing routes: request review, gate
// scanning, delay reports, and attendance.
type WardenHandler struct {
	Warden *warden.Service
}

// RESTScanRequest mirrors the expected JSON input for QR verification routes
type RESTScanRequest struct {
	QRData string `json:"qr_data"`
}

// RESTLogActionRequest mirrors the expected JSON input for gate logging routes
type RESTLogActionRequest struct {
	QRData string `json:"qr_data"`
	Action string `json:"action"`
}

// RESTAttendanceRequest mirrors the expected JSON input for POST /warden/attendance
type RESTAttendanceRequest struct {
	Date    time.Time               `json:"date"`
	Entries []warden.AttendanceMark `json:"entries"`
}

// GetStats handles GET /warden/stats
func (h *WardenHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	stats, err := h.Warden.GetStats(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, stats)
}

// GetStudents handles GET /warden/students?filter=in-hostel|on-vacation
func (h *WardenHandler) GetStudents(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	students, err := h.Warden.GetStudents(r.Context(), p.ID, r.URL.Query().Get("filter"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, students)
}

// GetPendingRequests handles GET /warden/requests/pending
func (h *WardenHandler) GetPendingRequests(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	letters, err := h.Warden.GetPendingRequests(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, letters)
}

// ApproveRequest handles POST /warden/requests/{id}/approve
func (h *WardenHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	pl, err := h.Warden.ApproveRequest(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pl)
}

// RejectRequest handles POST /warden/requests/{id}/reject
func (h *WardenHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody RESTRejectRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	pl, err := h.Warden.RejectRequest(r.Context(), p.ID, chi.URLParam(r, "id"), reqBody.Reason)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pl)
}

// VerifyQR handles POST /warden/scan/verify
func (h *WardenHandler) VerifyQR(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTScanRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Warden.VerifyQR(r.Context(), reqBody.QRData)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, result)
}

// LogEntryExit handles POST /warden/scan/log
func (h *WardenHandler) LogEntryExit(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody RESTLogActionRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := h.Warden.LogEntryExit(r.Context(), p.ID, reqBody.QRData, reqBody.Action)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, entry)
}

// VerifyOutpassQR handles POST /warden/outpass/scan/verify
func (h *WardenHandler) VerifyOutpassQR(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTScanRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Warden.VerifyOutpassQR(r.Context(), reqBody.QRData)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, result)
}

// LogOutpassAction handles POST /warden/outpass/scan/log
func (h *WardenHandler) LogOutpassAction(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody RESTLogActionRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	outpass, err := h.Warden.LogOutpassAction(r.Context(), p.ID, reqBody.QRData, reqBody.Action)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, outpass)
}

// GetActiveOutpasses handles GET /warden/outpass/active
func (h *WardenHandler) GetActiveOutpasses(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	passes, err := h.Warden.GetActiveOutpasses(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, passes)
}

// GetDelayedOutpasses handles GET /warden/outpass/delayed
func (h *WardenHandler) GetDelayedOutpasses(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	passes, err := h.Warden.GetDelayedOutpasses(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, passes)
}

// GetDelayedVacationStudents handles GET /warden/vacation/delayed
func (h *WardenHandler) GetDelayedVacationStudents(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	report, err := h.Warden.GetDelayedVacationStudents(r.Context(), p.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, report)
}

// GetAttendanceSheet handles GET /warden/attendance?date=2024-01-31
func (h *WardenHandler) GetAttendanceSheet(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			util.WriteJSONError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
			return
		}
		date = parsed
	}

	rows, err := h.Warden.GetAttendanceSheet(r.Context(), p.ID, date)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, rows)
}

// MarkAttendance handles POST /warden/attendance
func (h *WardenHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var reqBody RESTAttendanceRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Warden.MarkAttendance(r.Context(), p.ID, reqBody.Date, reqBody.Entries)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, result)
}

// GetAttendanceReport handles GET /warden/attendance/report?from=...&to=...
func (h *WardenHandler) GetAttendanceReport(w http.ResponseWriter, r *http.Request) {
	p, _ := util.PrincipalFrom(r.Context())

	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			util.WriteJSONError(w, http.StatusBadRequest, "from must be in YYYY-MM-DD format")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			util.WriteJSONError(w, http.StatusBadRequest, "to must be in YYYY-MM-DD format")
			return
		}
		to = parsed
	}

	records, err := h.Warden.GetAttendanceReport(r.Context(), p.ID, from, to)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, records)
}
