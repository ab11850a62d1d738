/*
Package socket contains the real-time connection layer.

This file resolves the identity of an inbound connection. Resolution never
fails closed: a missing, invalid, or expired token degrades the connection to
a guest identity with a logged warning instead of rejecting it. This is a
deliberate availability-over-strictness choice carried over from the HTTP
layer's identity extraction.
*/
package socket

import (
	"context"
	"net/http"
	"strings"

	"vachat/internal/app/store"
	"vachat/internal/app/user"
	"vachat/internal/pkg/auth/jwt"
	"vachat/internal/pkg/logx"
	"vachat/internal/pkg/randx"
)

// Identity is the resolved identity of one connection: an authenticated user,
// or a guest scoped to the connection's lifetime.
type Identity struct {
	// User is nil for guest connections.
	User *user.User
}

// IsGuest reports whether the connection carries no durable identity.
func (id Identity) IsGuest() bool {
	return id.User == nil
}

// ResolveIdentity extracts a bearer token from the handshake (Authorization
// header or token query parameter), verifies it, and loads the corresponding
// user. Every failure path returns a guest identity.
func ResolveIdentity(ctx context.Context, r *http.Request, secretKey string, st store.Store) Identity {
	token := bearerToken(r)
	if token == "" {
		return Identity{}
	}

	payload, err := jwt.ParseToken(token, secretKey)
	if err != nil {
		logx.Warn("Invalid or expired token on socket handshake, degrading to guest.", "error", err.Error())
		return Identity{}
	}

	u, err := st.UserByID(ctx, payload.UserID)
	if err != nil {
		logx.Warn("Token user not found, degrading to guest.", "user_id", payload.UserID, "error", err.Error())
		return Identity{}
	}

	if !u.IsActive {
		logx.Warn("Token user is inactive, degrading to guest.", "user_id", payload.UserID)
		return Identity{}
	}

	return Identity{User: u}
}

// bearerToken pulls the token from the Authorization header, falling back to
// the token query parameter (browser WebSocket clients cannot set headers).
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}

// NewConnectionID mints the identifier that keys a connection's ephemeral
// state (guest sessions, rate-limit counters for guests).
func NewConnectionID() string {
	return randx.ConnectionID()
}
