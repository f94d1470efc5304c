package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/fenlow/curate-api/internal/api/shared"
	"github.com/fenlow/curate-api/internal/config"
	"github.com/fenlow/curate-api/internal/service/auth"
)

// AuthHandler issues project-scoped tokens in exchange for the service
// API key.
type AuthHandler struct {
	jwtService  auth.JWTService
	keyVerifier auth.KeyVerifier
	authConfig  *config.AuthConfig
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	jwtService auth.JWTService,
	keyVerifier auth.KeyVerifier,
	authConfig *config.AuthConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		jwtService:  jwtService,
		keyVerifier: keyVerifier,
		authConfig:  authConfig,
		logger:      logger,
	}
}

// Token handles POST /api/auth/token. A valid service API key yields a
// JWT scoped to the requested project.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: api_key and project_id are required")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid project ID")
		return
	}

	if err := h.keyVerifier.Verify(h.authConfig.APIKeyHash, req.APIKey); err != nil {
		// Same response for mismatch and malformed hash so probing
		// reveals nothing about the configured credential.
		h.logger.Warn("service API key rejected",
			"project_id", projectID,
			"remote_addr", r.RemoteAddr)
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid API key")
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), projectID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to issue token", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: h.authConfig.TokenLifetimeMinutes * 60,
	})
}
