// Package healthz reports if the backend can serve requests.
package healthz

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes registers the routes for the healthz endpoint.
func RegisterRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", Options)
	r.GET("", Get)
}

func Options(c *gin.Context) {
	httputil.OptionsGet(c)
}

type Response struct {
	Error string `json:"error,omitempty" example:"the database cannot be accessed"`
}

// Get returns the application health and, if not healthy, an error.
func Get(c *gin.Context) {
	sqlDB, err := models.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}

	if err != nil {
		log.Error().Str("request-id", requestid.Get(c)).Err(err).Msg("healthz")
		c.JSON(http.StatusInternalServerError, Response{Error: "the database cannot be accessed"})
		return
	}

	c.JSON(http.StatusOK, Response{})
}
