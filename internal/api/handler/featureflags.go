package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service    *featureflags.Service
	airQuality *airquality.Service
	logger     zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler. airQuality may be
// nil; when set, its reading cache is dropped on invalidation too.
func NewFeatureFlagsHandler(service *featureflags.Service, airQuality *airquality.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, airQuality: airQuality, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.service.GetAllFlags(r.Context())

	flags := make([]models.FeatureFlag, 0, len(all))
	for _, f := range all {
		flags = append(flags, toFeatureFlag(f))
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Key < flags[j].Key })

	response.JSON(w, r, http.StatusOK, models.FeatureFlagList{Flags: flags})
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req models.FeatureFlagUpsertRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	var fieldErrors []models.FieldError
	flags := make([]*featureflags.Flag, 0, len(req.Flags))
	for i, f := range req.Flags {
		if f.Key == "" {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   fmt.Sprintf("flags[%d].key", i),
				Message: "is required",
				Code:    "required",
			})
			continue
		}
		flags = append(flags, &featureflags.Flag{Key: f.Key, Value: f.Value})
	}
	if len(req.Flags) == 0 {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "flags", Message: "must not be empty", Code: "required"})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "validation failed", fieldErrors)
		return
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		if errors.Is(err, featureflags.ErrInvalidFlagValue) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	out := make([]models.FeatureFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, toFeatureFlag(f))
	}
	response.JSON(w, r, http.StatusOK, models.FeatureFlagList{Flags: out})
}

// ResetFeatureFlag handles DELETE /v1/admin/feature-flags/{key}.
func (h *FeatureFlagsHandler) ResetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.service.ResetFlag(r.Context(), key); err != nil {
		if errors.Is(err, featureflags.ErrFlagNotFound) {
			response.NotFound(w, r, "no override stored for "+key)
			return
		}
		h.logger.Error().Err(err).Str("flag", key).Msg("failed to reset feature flag")
		response.InternalError(w, r, "failed to reset feature flag")
		return
	}
	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	if h.airQuality != nil {
		h.airQuality.InvalidateCache()
	}
	h.logger.Info().Str("user_id", GetUserID(r.Context())).Msg("caches invalidated")
	response.NoContent(w, r)
}

func toFeatureFlag(f *featureflags.Flag) models.FeatureFlag {
	out := models.FeatureFlag{Key: f.Key, Value: f.Value}
	if !f.UpdatedAt.IsZero() {
		ts := models.Timestamp(f.UpdatedAt)
		out.UpdatedAt = &ts
	}
	return out
}
