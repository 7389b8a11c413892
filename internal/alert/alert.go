// Package alert decides when a risk assessment warrants a notification and
// delivers notifications to downstream channels.
package alert

import "github.com/dustguard/dustguard/internal/risk"

// Kind classifies an alert.
type Kind string

const (
	KindEmergency Kind = "emergency"
	KindUrgent    Kind = "urgent"
	KindRising    Kind = "rising"
)

// Thresholds on the 0-10 scale.
const (
	EmergencyThreshold = 8.0
	UrgentThreshold    = 6.0
	RisingFloor        = 3.0
	RisingDelta        = 2.0
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Kind Kind
	Send bool
}

// Evaluate decides whether a value on the 0-10 scale warrants an alert.
// previous is the user's prior value on the same scale, if any.
func Evaluate(current float64, previous *float64) Decision {
	switch {
	case current >= EmergencyThreshold:
		return Decision{Kind: KindEmergency, Send: true}
	case current >= UrgentThreshold:
		return Decision{Kind: KindUrgent, Send: true}
	case previous != nil && current >= RisingFloor && current-*previous > RisingDelta:
		return Decision{Kind: KindRising, Send: true}
	}
	return Decision{}
}

// NormalizeToPoint maps a value on the named scale onto the 0-10 scale used
// by Evaluate. Weighted (0-100) values are divided by ten.
func NormalizeToPoint(value float64, scale risk.ScaleName) float64 {
	if scale == risk.ScaleWeighted {
		return value / 10
	}
	return value
}
