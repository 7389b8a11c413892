package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/assessment"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

// AssessmentHandler handles stored daily risk assessments.
type AssessmentHandler struct {
	assessments *assessment.Service
	logger      zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessments *assessment.Service, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, logger: logger}
}

// Assess handles POST /v1/me/risk/assessments. The body is optional; without
// a date today is assessed.
func (h *AssessmentHandler) Assess(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.AssessRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	a, err := h.assessments.Assess(r.Context(), userID, req.Date)
	if err != nil {
		h.writeError(w, r, err, req.Date)
		return
	}

	location := fmt.Sprintf("/v1/me/risk/assessments/%s", a.Date)
	response.Created(w, r, location, toAssessment(a))
}

// GetAssessment handles GET /v1/me/risk/assessments/{date}.
func (h *AssessmentHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")

	a, err := h.assessments.Get(r.Context(), userID, date)
	if err != nil {
		h.writeError(w, r, err, date)
		return
	}
	response.JSON(w, r, http.StatusOK, toAssessment(a))
}

// ListAssessments handles GET /v1/me/risk/assessments?from=&to=.
func (h *AssessmentHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	list, err := h.assessments.History(r.Context(), userID, from, to)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	items := make([]models.Assessment, 0, len(list))
	for _, a := range list {
		items = append(items, toAssessment(a))
	}
	response.JSON(w, r, http.StatusOK, models.AssessmentList{
		Items: items,
		Meta:  models.ListMeta{From: from, To: to, Count: len(items)},
	})
}

func (h *AssessmentHandler) writeError(w http.ResponseWriter, r *http.Request, err error, date string) {
	switch {
	case errors.Is(err, symptom.ErrInvalidDate), errors.Is(err, symptom.ErrInvalidRange):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, assessment.ErrAssessmentNotFound):
		response.NotFound(w, r, fmt.Sprintf("no assessment for %s", date))
	case errors.Is(err, profile.ErrNoLocation):
		response.Conflict(w, r, "set a location in your profile before assessing")
	case errors.Is(err, airquality.ErrProviderUnavailable), errors.Is(err, airquality.ErrNoMeasurements):
		response.ServiceUnavailable(w, r, "air quality data is temporarily unavailable")
	case risk.IsInputError(err):
		if fe, ok := models.FieldErrorFromRisk(err); ok {
			response.BadRequest(w, r, "stored profile is not valid for scoring", []models.FieldError{fe})
			return
		}
		response.BadRequest(w, r, err.Error(), nil)
	default:
		h.logger.Error().Err(err).Str("user_id", GetUserID(r.Context())).Msg("assessment request failed")
		response.InternalError(w, r, "assessment request failed")
	}
}

func toAssessment(a *assessment.Assessment) models.Assessment {
	out := models.Assessment{
		ID:        a.ID,
		Date:      a.Date,
		Scale:     a.Scale,
		Value:     a.Value,
		Raw:       a.Raw,
		Category:  a.Category,
		Breakdown: a.Breakdown,
		Detail:    a.Detail,
		Clamped:   a.Clamped,
		Reading: models.Reading{
			StationName: a.Reading.StationName,
			Provider:    a.Reading.Provider,
			PM25:        a.Reading.PM25,
			AQI:         a.Reading.AQI,
			Temperature: a.Reading.Temperature,
			Humidity:    a.Reading.Humidity,
			MeasuredAt:  models.Timestamp(a.Reading.MeasuredAt),
		},
		SymptomsLogged: a.SymptomsLogged,
		CreatedAt:      models.Timestamp(a.CreatedAt),
		UpdatedAt:      models.Timestamp(a.UpdatedAt),
	}
	if out.Breakdown == nil {
		out.Breakdown = risk.Breakdown{}
	}
	if a.Alert != nil {
		out.Alert = &models.AlertOutcome{
			Kind:   string(a.Alert.Kind),
			Sent:   a.Alert.Sent,
			Reason: a.Alert.Reason,
		}
	}
	return out
}
