/*
Package handler provides the HTTP handler function for WebSocket connection
upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for
connection-level rate limiting, identity resolution, upgrading the HTTP
connection to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"vachat/internal/app/socket"
	"vachat/internal/pkg/errs"
	"vachat/internal/pkg/limiter"
	"vachat/internal/pkg/logx"
	"vachat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		// Identity resolution never rejects: a bad token degrades to guest.
		identity := socket.ResolveIdentity(r.Context(), r, deps.Config.JWTSecret, deps.Store)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := socket.NewClient(deps.Gateway, conn, identity)

		go client.WritePump()

		logx.Info("WebSocket connection established",
			"connection_id", client.ConnectionID(),
			"is_guest", identity.IsGuest(),
		)

		deps.Gateway.HandleConnect(r.Context(), client, r.UserAgent())

		client.ReadPump()
	}
}
