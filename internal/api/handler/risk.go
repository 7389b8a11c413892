package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/risk"
)

// RiskHandler serves stateless risk computations.
type RiskHandler struct {
	engine *risk.Engine
	flags  *featureflags.Service
	logger zerolog.Logger
}

// NewRiskHandler creates a new RiskHandler. flags may be nil.
func NewRiskHandler(engine *risk.Engine, flags *featureflags.Service, logger zerolog.Logger) *RiskHandler {
	return &RiskHandler{engine: engine, flags: flags, logger: logger}
}

// Compute handles POST /v1/risk:compute. Nothing is stored.
func (h *RiskHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req models.ComputeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Scale == "" {
		req.Scale = defaultScale(r, h.engine, h.flags)
	}

	score, err := h.engine.Compute(req.Reading, req.Factors, req.Scale)
	if err != nil {
		if fe, ok := models.FieldErrorFromRisk(err); ok {
			response.BadRequest(w, r, "invalid risk input", []models.FieldError{fe})
			return
		}
		h.logger.Error().Err(err).Msg("risk computation failed")
		response.InternalError(w, r, "risk computation failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ComputeResponse{
		RiskScore:  *score,
		ComputedAt: models.Timestamp(time.Now()),
	})
}
