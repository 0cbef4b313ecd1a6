// Package reading defines the canonical snapshot model shared by the
// weather and lift-status subsystems. A Reading is one normalized view of a
// subject (a resort's weather, or its lift set) at a point in time, tagged
// with where it came from and whether it is past its freshness window.
package reading

import "time"

// Origin identifies which tier or provider produced a Reading.
type Origin string

const (
	OriginProviderPrimary   Origin = "provider-primary"
	OriginProviderSecondary Origin = "provider-secondary"
	OriginPersistentStore   Origin = "persistent-store"
	OriginMemory            Origin = "memory"
)

// Reading is a snapshot for one subject. P is the subject-specific payload
// (weather.Payload or lifts.Payload).
type Reading[P any] struct {
	SubjectID string    `json:"subjectId"`
	FetchedAt time.Time `json:"fetchedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Origin    Origin    `json:"origin"`

	// Stale is set when the Reading is served past its TTL because no live
	// source succeeded. DegradationReason carries the provider failure that
	// forced the degradation.
	Stale             bool   `json:"stale"`
	DegradationReason string `json:"degradationReason,omitempty"`

	// Fallback is set when the secondary provider supplied the data after a
	// primary failure within the same fetch.
	Fallback       bool   `json:"fallback,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`

	Payload P `json:"payload"`
}

// Age returns how long ago the Reading was fetched.
func (r Reading[P]) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// Fresh reports whether the Reading is still within its TTL.
func (r Reading[P]) Fresh(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
