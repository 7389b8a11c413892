package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/risk"
)

// ProfileHandler handles health profile endpoints.
type ProfileHandler struct {
	profiles *profile.Service
	logger   zerolog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles *profile.Service, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// GetProfile handles GET /v1/me/profile. Users without a saved profile get
// the defaults with stored=false.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load profile")
		response.InternalError(w, r, "failed to load profile")
		return
	}

	response.JSON(w, r, http.StatusOK, toProfileResponse(p))
}

// UpsertProfile handles PUT /v1/me/profile - create or replace the profile.
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.ProfileInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	p, err := h.profiles.Upsert(r.Context(), userID, toProfileInput(&req))
	if err != nil {
		var verr *profile.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, "validation failed", verr.Errors)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to save profile")
		response.InternalError(w, r, "failed to save profile")
		return
	}

	response.JSON(w, r, http.StatusOK, toProfileResponse(p))
}

func toProfileInput(req *models.ProfileInput) *profile.Input {
	in := &profile.Input{
		Age:            req.Age,
		Conditions:     req.Conditions,
		Sensitivity:    req.Sensitivity,
		Activity:       req.Activity,
		WearingMask:    req.WearingMask,
		HasAirPurifier: req.HasAirPurifier,
		OutdoorMinutes: req.OutdoorMinutes,
		Scale:          req.Scale,
		Locale:         req.Locale,
	}
	if req.Location != nil {
		in.Location = &profile.Location{Lat: req.Location.Lat, Lon: req.Location.Lon}
	}
	return in
}

func toProfileResponse(p *profile.Profile) models.Profile {
	resp := models.Profile{
		Age:            p.Age,
		Conditions:     p.Conditions,
		Sensitivity:    p.Sensitivity,
		Activity:       p.Activity,
		WearingMask:    p.WearingMask,
		HasAirPurifier: p.HasAirPurifier,
		OutdoorMinutes: p.OutdoorMinutes,
		Scale:          p.Scale,
		Locale:         p.Locale,
		Stored:         p.Stored,
	}
	if resp.Conditions == nil {
		resp.Conditions = []risk.Condition{}
	}
	if p.Location != nil {
		resp.Location = &models.Point{Lat: p.Location.Lat, Lon: p.Location.Lon}
	}
	if p.Stored {
		ts := models.Timestamp(p.UpdatedAt)
		resp.UpdatedAt = &ts
	}
	return resp
}
