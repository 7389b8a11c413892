package device_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/device"
)

func input(endpoint string) *device.RegisterInput {
	return &device.RegisterInput{
		Endpoint: endpoint,
		P256dh:   "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
		Auth:     "tBHItJI5svbpez7KI4CCXg",
	}
}

func TestService_Register(t *testing.T) {
	svc := device.NewService(device.NewInMemoryRepository(), zerolog.Nop())
	ctx := context.Background()

	sub, created, err := svc.Register(ctx, "user-1", input("https://fcm.googleapis.com/fcm/send/abc"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, strings.HasPrefix(sub.ID, "sub_"))
	assert.Equal(t, "fcm.googleapis.com", sub.EndpointHost())

	again, created, err := svc.Register(ctx, "user-1", input("https://fcm.googleapis.com/fcm/send/abc"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sub.ID, again.ID)

	subs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestService_Register_MovesEndpointBetweenUsers(t *testing.T) {
	svc := device.NewService(device.NewInMemoryRepository(), zerolog.Nop())
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "user-1", input("https://push.example/shared"))
	require.NoError(t, err)
	_, created, err := svc.Register(ctx, "user-2", input("https://push.example/shared"))
	require.NoError(t, err)
	assert.False(t, created)

	subs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	targets, err := svc.Targets(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "https://push.example/shared", targets[0].Endpoint)
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     *device.RegisterInput
		wantField string
	}{
		{"nil", nil, "subscription"},
		{"http endpoint", input("http://push.example/x"), "endpoint"},
		{"not a url", input("::"), "endpoint"},
		{"bad p256dh", func() *device.RegisterInput { in := input("https://push.example/x"); in.P256dh = "not base64!"; return in }(), "keys.p256dh"},
		{"empty auth", func() *device.RegisterInput { in := input("https://push.example/x"); in.Auth = ""; return in }(), "keys.auth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := device.NewService(device.NewInMemoryRepository(), zerolog.Nop())
			_, _, err := svc.Register(context.Background(), "user-1", tt.input)

			var verr *device.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Errors[0].Field)
		})
	}
}

func TestService_Register_Limit(t *testing.T) {
	svc := device.NewService(device.NewInMemoryRepository(), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < device.MaxSubscriptionsPerUser; i++ {
		_, _, err := svc.Register(ctx, "user-1", input(fmt.Sprintf("https://push.example/%d", i)))
		require.NoError(t, err)
	}

	_, _, err := svc.Register(ctx, "user-1", input("https://push.example/one-more"))
	var verr *device.ValidationError
	require.ErrorAs(t, err, &verr)

	// Refreshing a known endpoint is still allowed.
	_, _, err = svc.Register(ctx, "user-1", input("https://push.example/0"))
	assert.NoError(t, err)
}

func TestService_Unregister(t *testing.T) {
	svc := device.NewService(device.NewInMemoryRepository(), zerolog.Nop())
	ctx := context.Background()

	sub, _, err := svc.Register(ctx, "user-1", input("https://push.example/x"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Unregister(ctx, "user-2", sub.ID), device.ErrSubscriptionNotFound)
	require.NoError(t, svc.Unregister(ctx, "user-1", sub.ID))
	assert.ErrorIs(t, svc.Unregister(ctx, "user-1", sub.ID), device.ErrSubscriptionNotFound)
}

func TestService_DeleteAll(t *testing.T) {
	svc := device.NewService(device.NewInMemoryRepository(), zerolog.Nop())
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "user-1", input("https://fcm.googleapis.com/fcm/send/one"))
	require.NoError(t, err)
	_, _, err = svc.Register(ctx, "user-2", input("https://fcm.googleapis.com/fcm/send/two"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAll(ctx, "user-1"))

	subs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	subs, err = svc.List(ctx, "user-2")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
