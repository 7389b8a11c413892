package models

// FeatureFlag is a flag as exposed by the admin API.
type FeatureFlag struct {
	Key       string     `json:"key"`
	Value     any        `json:"value"`
	UpdatedAt *Timestamp `json:"updatedAt,omitempty"`
}

// FeatureFlagList lists all known flags.
type FeatureFlagList struct {
	Flags []FeatureFlag `json:"flags"`
}

// FeatureFlagUpsertRequest is the body of PUT /v1/admin/feature-flags.
type FeatureFlagUpsertRequest struct {
	Flags []FeatureFlag `json:"flags"`
}
