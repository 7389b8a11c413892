package handler

import (
	"net/http"

	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/risk"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	engine *risk.Engine
	flags  *featureflags.Service
}

// NewMetadataHandler creates a new MetadataHandler. flags may be nil.
func NewMetadataHandler(engine *risk.Engine, flags *featureflags.Service) *MetadataHandler {
	return &MetadataHandler{engine: engine, flags: flags}
}

// ListScales handles GET /v1/metadata/scales.
func (h *MetadataHandler) ListScales(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.NewScalesResponse(h.engine.Table(), defaultScale(r, h.engine, h.flags)))
}

// defaultScale is the flag-configured default scale when the engine knows
// it, and the point scale otherwise.
func defaultScale(r *http.Request, engine *risk.Engine, flags *featureflags.Service) risk.ScaleName {
	if flags != nil {
		if name := risk.ScaleName(flags.DefaultRiskScale(r.Context())); engine.HasScale(name) {
			return name
		}
	}
	return risk.ScalePoint
}
