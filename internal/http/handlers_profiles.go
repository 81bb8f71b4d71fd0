package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	"github.com/arcadis/entreprise-os/internal/ports"
)

// ProfileHandlers exposes the administrative surface over profile records
// and the login audit trail. Routes mounting these handlers must sit behind
// the admin role gate.
type ProfileHandlers struct {
	Profiles ports.ProfileAdmin
	Audit    ports.LoginAuditRecorder
	Logger   *slog.Logger
}

type profileRequest struct {
	UserID    string          `json:"user_id"`
	Role      domainauth.Role `json:"role"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	CompanyID string          `json:"company_id"`
}

func (p profileRequest) toInput() ports.ProfileInput {
	return ports.ProfileInput{
		UserID:    p.UserID,
		Role:      p.Role,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		CompanyID: p.CompanyID,
	}
}

// List returns the active profiles of one company.
// GET /api/admin/profiles?company_id=<id>.
func (h *ProfileHandlers) List(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation_failed",
			Err:     errors.New("company_id is required"),
			Field:   "company_id",
		})
		return
	}

	profiles, err := h.Profiles.ListProfilesByCompany(r.Context(), companyID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// Create provisions a profile for an existing identity.
// POST /api/admin/profiles.
func (h *ProfileHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	profile, err := h.Profiles.CreateProfile(r.Context(), req.toInput())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, profile)
}

// Update rewrites a profile's attributes.
// PUT /api/admin/profiles/{user_id}.
func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.UserID = r.PathValue("user_id")

	profile, err := h.Profiles.UpdateProfile(r.Context(), req.toInput())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive toggles a profile's activation flag.
// POST /api/admin/profiles/{user_id}/active.
func (h *ProfileHandlers) SetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	userID := r.PathValue("user_id")
	if err := h.Profiles.SetProfileActive(r.Context(), userID, req.Active); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"user_id": userID, "is_active": req.Active})
}

// Delete soft-deletes a profile. The identity itself is untouched; a later
// sign-in attempt by this user is rejected as deleted.
// DELETE /api/admin/profiles/{user_id}.
func (h *ProfileHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if err := h.Profiles.SoftDeleteProfile(r.Context(), userID); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoginAudit returns the most recent login attempts, newest first.
// GET /api/admin/logins?limit=<n>.
func (h *ProfileHandlers) LoginAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "validation_failed",
				Err:     errors.New("limit must be an integer"),
				Field:   "limit",
			})
			return
		}
		limit = n
	}

	entries, err := h.Audit.ListRecent(r.Context(), limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
