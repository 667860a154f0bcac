package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/finagent/internal/domain"
	"github.com/ashureev/finagent/internal/identity"
	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
)

const maxSetupBodySize = 64 << 10

// AccountHandler serves the signed-in user, frontend config, sign-in links
// and the employer HR onboarding state.
type AccountHandler struct {
	*Handler
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(base *Handler) *AccountHandler {
	return &AccountHandler{Handler: base}
}

// RegisterRoutes registers account routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/links", h.GetLinks)
		r.Get("/hr/setup", h.GetHRSetup)
		r.Put("/hr/setup", h.PutHRSetup)
		r.Delete("/hr/setup", h.DeleteHRSetup)
	})
}

// GetMe returns the current user's information.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    user.UserID,
		"username":   user.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
		"idle_secs":  int64(user.IdleFor(time.Now()).Seconds()),
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *AccountHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{
		"pace_scale":  1.0,
		"kyc_status":  "partial",
		"session_ttl": int64(time.Hour.Seconds()),
	}
	if h.cfg != nil {
		resp["pace_scale"] = h.cfg.PaceScale
		resp["kyc_status"] = h.cfg.KYCStatus
		resp["session_ttl"] = int64(h.cfg.SessionTTL.Seconds())
	}
	JSON(w, http.StatusOK, resp)
}

// GetLinks returns the external sign-in pages.
func (h *AccountHandler) GetLinks(w http.ResponseWriter, _ *http.Request) {
	links := map[string]string{}
	if h.cfg != nil {
		links["employee_sign_in"] = h.cfg.Links.EmployeeSignIn
		links["corporate_login"] = h.cfg.Links.CorporateLogin
	}
	JSON(w, http.StatusOK, links)
}

type hrSetupResponse struct {
	*domain.HRSetup
	Providers []domain.HRMSProvider `json:"providers"`
	Catalogue []domain.DataPoint    `json:"data_point_catalogue"`
}

// GetHRSetup returns the employer's HR onboarding state, or the defaults
// when onboarding has not been completed.
func (h *AccountHandler) GetHRSetup(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	setup, err := h.repo.GetHRSetup(r.Context(), userID)
	if err != nil {
		WriteError(w, fmt.Errorf("load hr setup: %w", err))
		return
	}
	if setup == nil {
		setup = &domain.HRSetup{UserID: userID, DataPoints: domain.DefaultDataPoints()}
	}
	JSON(w, http.StatusOK, hrSetupResponse{HRSetup: setup, Providers: domain.Providers, Catalogue: domain.DataPoints})
}

type hrSetupRequest struct {
	Provider   string   `json:"provider"`
	Domain     string   `json:"domain"`
	DataPoints []string `json:"data_points"`
}

// PutHRSetup validates and stores the onboarding choices and marks
// onboarding complete.
func (h *AccountHandler) PutHRSetup(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req hrSetupRequest
	if !DecodeJSON(w, r, maxSetupBodySize, &req) {
		return
	}
	setup := &domain.HRSetup{
		UserID:     userID,
		Complete:   true,
		Provider:   req.Provider,
		Domain:     req.Domain,
		DataPoints: req.DataPoints,
	}
	if err := setup.Validate(); err != nil {
		if errors.Is(err, domain.ErrUnknownProvider) || errors.Is(err, domain.ErrUnknownDataPoint) || errors.Is(err, domain.ErrRequiredDataPoint) {
			err = fmt.Errorf("%w: %v", errdefs.ErrInvalidArgument, err)
		}
		WriteError(w, err)
		return
	}
	if err := h.repo.UpsertHRSetup(r.Context(), setup); err != nil {
		WriteError(w, fmt.Errorf("save hr setup: %w", err))
		return
	}

	slog.Info("HR setup completed", "user_id", userID, "provider", setup.Provider, "data_points", len(setup.DataPoints))
	setup.UpdatedAt = time.Now()
	JSON(w, http.StatusOK, setup)
}

// DeleteHRSetup clears the onboarding state.
func (h *AccountHandler) DeleteHRSetup(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.repo.DeleteHRSetup(r.Context(), userID); err != nil {
		WriteError(w, fmt.Errorf("delete hr setup: %w", err))
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
