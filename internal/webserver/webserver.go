// Package webserver owns the echo instance shared by the management
// API and the gateway API. Route handlers live in their own packages
// and register themselves through the Api*/Gw* helpers; this package
// only wires middleware and serves.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/wagate/config"
	"github.com/talkincode/wagate/internal/domain"
)

const (
	// InstanceContextKey holds the *domain.WaInstance resolved by the
	// gateway token middleware.
	InstanceContextKey = "wa_instance"
	dbContextKey       = "wagate_db"
)

// InstanceTokenLookup resolves a gateway bearer token to its instance.
type InstanceTokenLookup func(ctx context.Context, token string) (*domain.WaInstance, error)

type WebServer struct {
	cfg    *config.AppConfig
	db     *gorm.DB
	lookup InstanceTokenLookup
	root   *echo.Echo
	api    *echo.Group
	gw     *echo.Group
}

var server *WebServer

// Init builds the echo instance and the two route groups. Must run
// before any handler package registers routes.
func Init(cfg *config.AppConfig, db *gorm.DB, lookup InstanceTokenLookup) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(injectDB(db))
	e.Use(requestLogger())

	s := &WebServer{cfg: cfg, db: db, lookup: lookup, root: e}
	s.api = e.Group("/api", echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.Web.Secret),
	}))
	s.gw = e.Group("", instanceTokenMiddleware(lookup))
	server = s
}

// Instance returns the raw echo instance, for tests and for routes
// that bypass both auth schemes (login, health).
func Instance() *echo.Echo {
	return server.root
}

// Start serves until the listener fails or Shutdown is called.
func Start() error {
	addr := fmt.Sprintf("%s:%d", server.cfg.Web.Host, server.cfg.Web.Port)
	zap.L().Info("web server starting", zap.String("listen", addr))
	err := server.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func Shutdown(ctx context.Context) error {
	return server.root.Shutdown(ctx)
}

// ApiGET registers a JWT protected management route under /api.
func ApiGET(path string, h echo.HandlerFunc)    { server.api.GET(path, h) }
func ApiPOST(path string, h echo.HandlerFunc)   { server.api.POST(path, h) }
func ApiPUT(path string, h echo.HandlerFunc)    { server.api.PUT(path, h) }
func ApiDELETE(path string, h echo.HandlerFunc) { server.api.DELETE(path, h) }

// GwGET registers an instance token scoped gateway route.
func GwGET(path string, h echo.HandlerFunc)    { server.gw.GET(path, h) }
func GwPOST(path string, h echo.HandlerFunc)   { server.gw.POST(path, h) }
func GwPUT(path string, h echo.HandlerFunc)    { server.gw.PUT(path, h) }
func GwDELETE(path string, h echo.HandlerFunc) { server.gw.DELETE(path, h) }

// PubGET registers an unauthenticated route (login, health probes).
func PubGET(path string, h echo.HandlerFunc)  { server.root.GET(path, h) }
func PubPOST(path string, h echo.HandlerFunc) { server.root.POST(path, h) }

// GetDB returns the gorm handle injected into every request.
func GetDB(c echo.Context) *gorm.DB {
	return c.Get(dbContextKey).(*gorm.DB)
}

// GetInstance returns the instance resolved by the gateway token
// middleware, or nil outside the gateway group.
func GetInstance(c echo.Context) *domain.WaInstance {
	inst, _ := c.Get(InstanceContextKey).(*domain.WaInstance)
	return inst
}

// JwtSecret exposes the signing key to the login handler.
func JwtSecret() []byte {
	return []byte(server.cfg.Web.Secret)
}

func JwtExpire() time.Duration {
	hours := server.cfg.Web.JwtExpire
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func injectDB(db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(dbContextKey, db)
			return next(c)
		}
	}
}

// instanceTokenMiddleware authenticates gateway calls with the
// instance's bearer token and binds the instance to the request.
func instanceTokenMiddleware(lookup InstanceTokenLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing instance token")
			}
			inst, err := lookup(c.Request().Context(), token)
			if err != nil || inst == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid instance token")
			}
			c.Set(InstanceContextKey, inst)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if t := c.Request().Header.Get("X-Api-Token"); t != "" {
		return t
	}
	return c.QueryParam("token")
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Status >= http.StatusInternalServerError {
				zap.L().Error("http request",
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Error(v.Error))
			} else {
				zap.L().Debug("http request",
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status))
			}
			return nil
		},
	})
}
