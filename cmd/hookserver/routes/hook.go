package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/pluginsite/registry/cmd/hookserver/container"
	"github.com/pluginsite/registry/cmd/hookserver/handlers"
)

// RegisterHookRoutes registers the webhook endpoint and returns the handler
// so the server can drain it on shutdown.
func RegisterHookRoutes(e *echo.Echo, ctn *container.Container) *handlers.HookHandler {
	h := handlers.NewHookHandler(ctn)

	e.POST("/hook", h.Receive)

	return h
}
