package handlers

import (
	"net/http"

	"hostelpass/internal/auth"
	"hostelpass/internal/gateway/util"
)

// AuthHandler exposes login and the password-reset cycle.
type AuthHandler struct {
	Auth *auth.Service
}

// RESTLoginRequest mirrors the expected JSON input for /auth/login
type RESTLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RESTForgotPasswordRequest mirrors the expected JSON input for /auth/forgot-password
type RESTForgotPasswordRequest struct {
	Email string `json:"email"`
}

// RESTResetPasswordRequest mirrors the expected JSON input for /auth/reset-password
type RESTResetPasswordRequest struct {
	Email       string `json:"email"`
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

// RESTChangePasswordRequest mirrors the expected JSON input for /auth/change-password
type RESTChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTLoginRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if reqBody.Email == "" || reqBody.Password == "" || reqBody.Role == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "Email, password, and role are required")
		return
	}

	result, err := h.Auth.Login(r.Context(), reqBody.Email, reqBody.Password, reqBody.Role)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   result.Token,
		"user": map[string]interface{}{
			"id":    result.ID,
			"name":  result.Name,
			"email": result.Email,
			"role":  result.Role,
		},
	})
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTForgotPasswordRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.Auth.ForgotPassword(r.Context(), reqBody.Email)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTResetPasswordRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), reqBody.Email, reqBody.ResetToken, reqBody.NewPassword); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password has been reset",
	})
}

// ChangePassword handles POST /auth/change-password (authenticated)
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := util.PrincipalFrom(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	var reqBody RESTChangePasswordRequest
	if err := util.DecodeBody(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if reqBody.NewPassword == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "New password is required")
		return
	}
	if reqBody.CurrentPassword == reqBody.NewPassword {
		util.WriteJSONError(w, http.StatusBadRequest, "New password cannot be the same as the current password")
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), p.ID, reqBody.CurrentPassword, reqBody.NewPassword); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Password changed successfully",
	})
}
