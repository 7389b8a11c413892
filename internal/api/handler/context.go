package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustguard/dustguard/internal/api/middleware"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/symptom"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// GetUserID retrieves the authenticated user ID from the context.
// This is a convenience wrapper around middleware.GetUserID.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// requireUser returns the authenticated user ID, writing a 401 when absent.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return "", false
	}
	return userID, true
}

// decodeJSON decodes the request body into v. Unknown fields are rejected.
// An empty body is allowed when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return true
	}
	if err != nil {
		response.BadRequest(w, r, fmt.Sprintf("invalid JSON body: %v", err), nil)
		return false
	}
	if dec.More() {
		response.BadRequest(w, r, "invalid JSON body: trailing data", nil)
		return false
	}
	return true
}

// dateRange reads the from and to query parameters.
func dateRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	var errs []models.FieldError
	if from == "" {
		errs = append(errs, models.FieldError{Field: "from", Message: "is required", Code: "required"})
	}
	if to == "" {
		errs = append(errs, models.FieldError{Field: "to", Message: "is required", Code: "required"})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "from and to are required", errs)
		return "", "", false
	}

	if err := symptom.ValidateRange(from, to); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return "", "", false
	}
	return from, to, true
}
