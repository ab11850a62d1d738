/*
Package randx provides functions for generating unique identifiers.

It is primarily used to generate message and connection IDs for the real-time layer.
*/
package randx

import "github.com/google/uuid"

// ID generates a standard UUID v4 string, used for message and guest-message identifiers.
func ID() string {
	return uuid.New().String()
}

// ConnectionID generates a unique identifier for a socket connection.
func ConnectionID() string {
	return "conn_" + uuid.New().String()
}
