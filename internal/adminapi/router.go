// Package adminapi is the JWT protected management surface: operator
// accounts, instance provisioning and the operational views that sit
// on top of the gateway.
package adminapi

import (
	"github.com/talkincode/wagate/internal/wamanager"
	"github.com/talkincode/wagate/internal/webserver"
)

var manager *wamanager.Manager

// InitRouter binds the session manager and registers all management
// routes. Call after webserver.Init.
func InitRouter(m *wamanager.Manager) {
	manager = m

	webserver.PubPOST("/auth/login", postLogin)
	webserver.PubGET("/health", getHealth)

	registerInstanceRoutes()
	registerOperatorRoutes()
	registerSettingsRoutes()
	registerMetricsRoutes()
}
