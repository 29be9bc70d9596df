package hub

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/config"
	"github.com/dkeye/playroom/internal/domain"
)

const (
	identityHeader = "X-Playroom-Identity"
	nameHeader     = "X-Playroom-Name"
)

// IdentityMiddleware requires the caller identity header on every API call.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(identityHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}
		c.Set("identity", id)
		c.Set("display_name", c.GetHeader(nameHeader))
		c.Next()
	}
}

func SetupRouter(cfg *config.Config) (*gin.Engine, *Controller) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	streams := NewStreams()
	ctl := &Controller{
		Store:   NewStore(streams.Send),
		Streams: streams,
		Limiter: NewRateLimiter(cfg.RateLimit, time.Minute),
	}

	api := r.Group("/api")
	api.Use(IdentityMiddleware())

	api.POST("/lobbies", ctl.handleCreate)
	api.GET("/lobbies", ctl.handleList)
	api.GET("/lobbies/:id", ctl.handleGet)
	api.POST("/lobbies/:id/join", ctl.handleJoin)
	api.POST("/lobbies/:id/leave", ctl.handleLeave)
	api.PUT("/lobbies/:id/metadata", ctl.handleSetMetadata)
	api.PUT("/lobbies/:id/joinable", ctl.handleSetJoinable)
	api.POST("/lobbies/:id/invite", ctl.handleInvite)
	api.POST("/lobbies/:id/ban", ctl.handleBan)
	api.GET("/events", ctl.handleEvents)

	log.Info().Str("module", "hub").Msg("router setup")
	return r, ctl
}

func identityOf(c *gin.Context) domain.Identity {
	return domain.Identity(c.GetString("identity"))
}
