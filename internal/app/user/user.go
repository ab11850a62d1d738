/*
Package user contains core data structures related to user identity.

It defines the basic representation of a user within the chat system (the User struct)
and the subscription tiers gating daily message quotas.
*/
package user

import "time"

// Tier values gate daily message quotas.
const (
	TierStandard = "standard"
	TierPremium  = "premium"
)

// User represents the basic identity information of a chat participant.
// Fields use JSON tags for serialization in socket events.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// DisplayName is the name shown to other participants.
	DisplayName string `json:"displayName"`

	// Tier is the user's subscription level ("standard" or "premium").
	Tier string `json:"tier"`

	// Role is the user's application role (e.g. "user", "admin").
	Role string `json:"role"`

	// IsActive indicates whether the account is enabled. Inactive accounts
	// are degraded to guest identity on connection.
	IsActive bool `json:"-"`

	// LastActiveAt records the last time any of the user's connections showed activity.
	LastActiveAt time.Time `json:"-"`
}
