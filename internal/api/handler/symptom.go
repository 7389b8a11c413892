package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

// SymptomHandler handles the daily symptom checklist.
type SymptomHandler struct {
	symptoms *symptom.Service
	logger   zerolog.Logger
}

// NewSymptomHandler creates a new SymptomHandler.
func NewSymptomHandler(symptoms *symptom.Service, logger zerolog.Logger) *SymptomHandler {
	return &SymptomHandler{symptoms: symptoms, logger: logger}
}

// GetEntry handles GET /v1/me/symptoms/{date}.
func (h *SymptomHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")

	e, err := h.symptoms.Get(r.Context(), userID, date)
	if err != nil {
		h.writeError(w, r, err, date)
		return
	}
	response.JSON(w, r, http.StatusOK, toSymptomEntry(e))
}

// PutEntry handles PUT /v1/me/symptoms/{date}, replacing the day's answers.
func (h *SymptomHandler) PutEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")

	var req models.SymptomEntryInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	e, err := h.symptoms.Log(r.Context(), userID, date, &symptom.LogInput{
		Symptoms:       req.Symptoms,
		OutdoorMinutes: req.OutdoorMinutes,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err, date)
		return
	}
	response.JSON(w, r, http.StatusOK, toSymptomEntry(e))
}

// DeleteEntry handles DELETE /v1/me/symptoms/{date}.
func (h *SymptomHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")

	if err := h.symptoms.Delete(r.Context(), userID, date); err != nil {
		h.writeError(w, r, err, date)
		return
	}
	response.NoContent(w, r)
}

// ListEntries handles GET /v1/me/symptoms?from=&to=.
func (h *SymptomHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	entries, err := h.symptoms.List(r.Context(), userID, from, to)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	items := make([]models.SymptomEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, toSymptomEntry(e))
	}
	response.JSON(w, r, http.StatusOK, models.SymptomEntryList{
		Items: items,
		Meta:  models.ListMeta{From: from, To: to, Count: len(items)},
	})
}

func (h *SymptomHandler) writeError(w http.ResponseWriter, r *http.Request, err error, date string) {
	var verr *symptom.ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, r, "validation failed", verr.Errors)
	case errors.Is(err, symptom.ErrInvalidDate), errors.Is(err, symptom.ErrInvalidRange):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, symptom.ErrEntryNotFound):
		response.NotFound(w, r, fmt.Sprintf("no symptom entry for %s", date))
	default:
		h.logger.Error().Err(err).Msg("symptom request failed")
		response.InternalError(w, r, "symptom request failed")
	}
}

func toSymptomEntry(e *symptom.Entry) models.SymptomEntry {
	out := models.SymptomEntry{
		Date:           e.Date,
		Symptoms:       e.Symptoms,
		OutdoorMinutes: e.OutdoorMinutes,
		Notes:          e.Notes,
		CreatedAt:      models.Timestamp(e.CreatedAt),
		UpdatedAt:      models.Timestamp(e.UpdatedAt),
	}
	if out.Symptoms == nil {
		out.Symptoms = []risk.SymptomReport{}
	}
	return out
}
