package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the chat server.
// It includes standard claims required by the JWT specification and custom claims
// necessary for identifying and authorizing users within the chat system.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unique identifier of the authenticated user.
	UserID string `json:"userId"`

	// DisplayName is the user's display name, carried in the token so the
	// real-time layer can label presence and typing events without a lookup.
	DisplayName string `json:"displayName"`

	// Tier is the user's subscription level ("standard" or "premium"),
	// gating daily message quotas.
	Tier string `json:"tier"`

	// Role is the user's role within the application (e.g. "user", "admin").
	Role string `json:"role"`
}
