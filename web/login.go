package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// Login exchanges email and password for a bearer token. Account
// standing is not checked here; the gate on metered endpoints handles
// suspended and blocked accounts so a suspended user can still see
// their own usage history.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Email and password required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), in.Email)
	if err != nil || len(user.PasswordHash) == 0 || !h.hasher.Compare(user.PasswordHash, in.Password) {
		// Same answer for unknown email and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	role := "user"
	if user.IsAdmin {
		role = "admin"
	}
	token, expiresAt, err := h.tokens.Issue(user.ID, user.Email, role)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		User: loginUser{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			IsAdmin:     user.IsAdmin,
		},
	})
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      loginUser `json:"user"`
}

type loginUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
}
