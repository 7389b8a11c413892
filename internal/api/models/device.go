package models

// PushSubscription is a registered Web Push subscription. Keys are never
// returned.
type PushSubscription struct {
	ID           string    `json:"id"`
	EndpointHost string    `json:"endpointHost"`
	UserAgent    *string   `json:"userAgent,omitempty"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
}

// PushSubscriptionKeys are the encryption keys of a browser subscription.
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscriptionInput is the body of POST /v1/me/devices, in the shape
// PushSubscription.toJSON() produces in the browser.
type PushSubscriptionInput struct {
	Endpoint  string               `json:"endpoint"`
	Keys      PushSubscriptionKeys `json:"keys"`
	UserAgent *string              `json:"userAgent,omitempty"`
}

// PushSubscriptionList lists a user's subscriptions.
type PushSubscriptionList struct {
	Items []PushSubscription `json:"items"`
}
