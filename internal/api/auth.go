package api

import (
	"net/http"

	"go.uber.org/zap"

	"waterbill/internal/auth"
)

type loginRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	TokenName string `json:"token_name"`
	ExpiresIn string `json:"expires_in"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// handleLogin exchanges credentials for a bearer token. Token expiry
// defaults to 30 days; "never" is accepted.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	u, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.error(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	expiresIn := req.ExpiresIn
	if expiresIn == "" {
		expiresIn = "30d"
	}
	expiresAt, err := auth.ParseExpirationDuration(expiresIn)
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	name := req.TokenName
	if name == "" {
		name = "login"
	}
	tok, raw, err := s.auth.CreateToken(r.Context(), u.ID, name, u.Role, expiresAt)
	if err != nil {
		s.log.Error("create token failed", zap.String("user", req.Username), zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	resp := loginResponse{Token: raw, Role: u.Role}
	if tok.ExpiresAt != nil {
		resp.ExpiresAt = tok.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin clerk viewer"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	u, err := s.auth.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		s.error(w, r, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, u)
}
