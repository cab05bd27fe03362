package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/auth"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/config"
	"github.com/greenbudget/backend/internal/controllers/healthz"
	v1 "github.com/greenbudget/backend/internal/controllers/v1"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// This is set at build time with -ldflags "-X".
var version = "0.0.0"

// Version returns the software version of the backend.
func Version() string {
	return version
}

// Config creates the router and sets up its middlewares.
//
// The returned teardown function flushes the tracer provider and must be
// called when the router is not used anymore.
func Config(cfg *config.Config) (*gin.Engine, func(), error) {
	shutdown, err := tracing.Init(version, cfg.Environment, cfg.TracingStdout)
	if err != nil {
		return nil, func() {}, err
	}

	teardown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("tracer provider shutdown")
		}
	}

	// Set up the router and middlewares
	r := gin.New()

	// Don’t process X-Forwarded-For header as we do not do anything with
	// client IPs
	r.ForwardedByClientIP = false

	// Send a HTTP 405 (Method not allowed) for all paths where there is
	// a handler, but not for the specific method used
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(RequestLogger(log.Logger))
	r.Use(MetricsMiddleware())
	r.Use(URLMiddleware(cfg.APIURL))

	// CORS settings
	if len(cfg.CORSAllowOrigins) > 0 {
		log.Debug().Strs("allowOrigins", cfg.CORSAllowOrigins).Msg("CORS")

		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowOrigins,
			AllowMethods:     []string{"OPTIONS", "GET", "POST", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	// Disable the gin debug route printing as it clutters logs (and test logs)
	gin.DebugPrintRouteFunc = func(_, _, _ string, _ int) {}

	// Don’t trust any proxy. We do not process any client IPs,
	// therefore we don’t need to trust anyone here.
	_ = r.SetTrustedProxies([]string{})

	return r, teardown, nil
}

// AttachRoutes attaches the API routes to the router group that is passed.
//
// Everything below /v1 requires authentication. A nil store disables the
// read model cache.
func AttachRoutes(cfg *config.Config, db *gorm.DB, store *cache.Store, group *gin.RouterGroup) {
	// Register the profiler routes if enabled
	if cfg.EnablePprof {
		pprof.RouteRegister(group, "debug/pprof")
	}

	group.GET("", GetRoot)
	group.OPTIONS("", OptionsRoot)
	group.GET("/version", GetVersion)
	group.OPTIONS("/version", OptionsVersion)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthz.RegisterRoutes(group.Group("/healthz"))

	parser := auth.NewParser(cfg.Auth.Secret)
	v1.New(db, store).RegisterRoutes(group.Group("/v1", auth.Middleware(parser, db)))
}

type RootResponse struct {
	Links RootLinks `json:"links"`
}

type RootLinks struct {
	Healthz string `json:"healthz" example:"https://example.com/api/healthz"`
	Metrics string `json:"metrics" example:"https://example.com/api/metrics"`
	Version string `json:"version" example:"https://example.com/api/version"`
	V1      string `json:"v1" example:"https://example.com/api/v1"`
}

// GetRoot lists the endpoints of the API.
func GetRoot(c *gin.Context) {
	url := httputil.RequestURL(c)

	c.JSON(http.StatusOK, RootResponse{
		Links: RootLinks{
			Healthz: url + "healthz",
			Metrics: url + "metrics",
			Version: url + "version",
			V1:      url + "v1",
		},
	})
}

func OptionsRoot(c *gin.Context) {
	httputil.OptionsGet(c)
}

type VersionResponse struct {
	Data VersionObject `json:"data"`
}

type VersionObject struct {
	Version string `json:"version" example:"1.1.0"`
}

// GetVersion returns the software version of the API.
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{
		Data: VersionObject{
			Version: version,
		},
	})
}

func OptionsVersion(c *gin.Context) {
	httputil.OptionsGet(c)
}
