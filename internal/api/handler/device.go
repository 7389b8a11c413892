package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/device"
)

// DeviceHandler handles Web Push subscription endpoints.
type DeviceHandler struct {
	devices *device.Service
	logger  zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{devices: devices, logger: logger}
}

// ListDevices handles GET /v1/me/devices - list push subscriptions.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	subs, err := h.devices.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list subscriptions")
		response.InternalError(w, r, "failed to list subscriptions")
		return
	}

	items := make([]models.PushSubscription, 0, len(subs))
	for _, s := range subs {
		items = append(items, toPushSubscription(s))
	}
	response.JSON(w, r, http.StatusOK, models.PushSubscriptionList{Items: items})
}

// RegisterDevice handles POST /v1/me/devices. A known endpoint is refreshed
// and answered with 200; a new one with 201.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.PushSubscriptionInput
	if !decodeJSON(w, r, &req, false) {
		return
	}

	sub, created, err := h.devices.Register(r.Context(), userID, &device.RegisterInput{
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		var verr *device.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, "validation failed", verr.Errors)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to register subscription")
		response.InternalError(w, r, "failed to register subscription")
		return
	}

	if !created {
		response.JSON(w, r, http.StatusOK, toPushSubscription(sub))
		return
	}
	response.Created(w, r, fmt.Sprintf("/v1/me/devices/%s", sub.ID), toPushSubscription(sub))
}

// UnregisterDevice handles DELETE /v1/me/devices/{subscriptionId}.
func (h *DeviceHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "subscriptionId")

	if err := h.devices.Unregister(r.Context(), userID, id); err != nil {
		if errors.Is(err, device.ErrSubscriptionNotFound) {
			response.NotFound(w, r, "subscription not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to remove subscription")
		response.InternalError(w, r, "failed to remove subscription")
		return
	}
	response.NoContent(w, r)
}

func toPushSubscription(s *device.Subscription) models.PushSubscription {
	return models.PushSubscription{
		ID:           s.ID,
		EndpointHost: s.EndpointHost(),
		UserAgent:    s.UserAgent,
		CreatedAt:    models.Timestamp(s.CreatedAt),
		UpdatedAt:    models.Timestamp(s.UpdatedAt),
	}
}
