package handler

import (
	"vachat/internal/app/socket"
	"vachat/internal/app/store"
	"vachat/internal/configs"
)

// AppDeps bundles the wired application services the HTTP layer needs.
type AppDeps struct {
	Gateway *socket.Gateway
	Store   store.Store
	Config  *configs.AppConfig
}
