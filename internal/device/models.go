// Package device manages the Web Push subscriptions alerts are delivered to.
package device

import (
	"errors"
	"net/url"
	"time"

	"github.com/dustguard/dustguard/internal/alert"
)

// Repository errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Subscription is a browser push subscription registered by the PWA.
type Subscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndpointHost returns the push service host for display purposes.
func (s *Subscription) EndpointHost() string {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}

// Target converts the subscription into the form carried by alerts.
func (s *Subscription) Target() alert.Subscription {
	return alert.Subscription{Endpoint: s.Endpoint, P256dh: s.P256dh, Auth: s.Auth}
}

// copySubscription creates a deep copy of a subscription.
func copySubscription(s *Subscription) *Subscription {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.UserAgent != nil {
		val := *s.UserAgent
		cpy.UserAgent = &val
	}
	return &cpy
}
