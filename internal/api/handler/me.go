package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/api/response"
)

// Eraser removes every record a service keeps for a user.
type Eraser interface {
	DeleteAll(ctx context.Context, userID string) error
}

// MeHandler handles account-wide endpoints.
type MeHandler struct {
	erasers map[string]Eraser
	logger  zerolog.Logger
}

// NewMeHandler creates a new MeHandler. erasers maps a data category, used in
// logs, to the service holding it.
func NewMeHandler(erasers map[string]Eraser, logger zerolog.Logger) *MeHandler {
	return &MeHandler{erasers: erasers, logger: logger}
}

// DeleteMe handles DELETE /v1/me - erase all of the user's health data.
// Every category is attempted; any failure yields a 500 and the request can
// be retried.
func (h *MeHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	failed := false
	for name, e := range h.erasers {
		if err := e.DeleteAll(r.Context(), userID); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Str("category", name).Msg("failed to erase user data")
			failed = true
		}
	}
	if failed {
		response.InternalError(w, r, "failed to erase all data, retry the request")
		return
	}

	h.logger.Info().Str("user_id", userID).Msg("user data erased")
	response.NoContent(w, r)
}
