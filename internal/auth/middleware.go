package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const actorKey = "greenbudget-actor"

// Middleware authenticates requests with a bearer token and records the
// actor as a user.
func Middleware(parser *Parser, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			httputil.NewError(c, http.StatusUnauthorized, ErrUnauthenticated)
			return
		}

		actor, err := parser.Parse(token)
		if err != nil {
			log.Debug().Str("request-id", requestid.Get(c)).Err(err).Msg("authentication")
			httputil.NewError(c, http.StatusUnauthorized, ErrUnauthenticated)
			return
		}

		err = models.EnsureUser(db.WithContext(c.Request.Context()), actor.User())
		if err != nil {
			log.Error().Str("request-id", requestid.Get(c)).Err(err).Msg("recording user")
			httputil.NewError(c, http.StatusInternalServerError, errors.New("the user could not be recorded"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// FromContext returns the actor of an authenticated request.
func FromContext(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}

	actor, ok := v.(Actor)
	return actor, ok
}
