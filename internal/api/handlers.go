package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Keyhaven-io/keyhaven/internal/auth"
	"github.com/Keyhaven-io/keyhaven/internal/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type passwordChangeRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type authResponse struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the auth error taxonomy onto HTTP statuses. The
// generic kinds stay generic: no detail beyond the sentinel text.
func writeServiceError(w http.ResponseWriter, err error) {
	var fieldErrs auth.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		payload := map[string]interface{}{"errors": fieldErrs}
		if _, ok := fieldErrs["password"]; ok {
			payload["password_requirements"] = auth.PasswordRequirements()
		} else if _, ok := fieldErrs["new_password"]; ok {
			payload["password_requirements"] = auth.PasswordRequirements()
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, auth.ErrEmailAlreadyTaken):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"errors": map[string]string{"email": "a user with this email already exists"},
		})
	case errors.Is(err, auth.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, auth.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "email already verified")
	case errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusBadRequest, "invalid token")
	default:
		log.Printf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input auth.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, pair, err := api.auth.Register(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{User: user, Tokens: pair})
}

func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, pair, err := api.auth.Login(r.Context(), creds.Email, creds.Password, clientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: pair})
}

func (api *Api) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	access, err := api.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (api *Api) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.auth.Logout(r.Context(), req.Refresh, claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "logged out successfully")
}

// VerifyTokenHandler reports whether an access token is currently valid.
// Signature and expiry only; nothing is looked up in the store.
func (api *Api) VerifyTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := api.auth.Tokens().ValidateToken(req.Token); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeMessage(w, http.StatusOK, "token is valid")
}

func (api *Api) PasswordResetRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	// Identical response whether or not the email resolved
	writeMessage(w, http.StatusOK, "if an account exists, a password reset email has been sent")
}

func (api *Api) PasswordResetConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := api.auth.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "password reset successfully")
}

func (api *Api) EmailVerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := api.auth.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "email verified successfully")
}

func (api *Api) ResendVerificationHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := api.auth.ResendVerification(r.Context(), claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "verification email sent")
}

func (api *Api) PasswordChangeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := api.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "password changed successfully")
}

func (api *Api) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := api.auth.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
