package hub

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/playroom/internal/domain"
)

// Controller wires the REST surface to the store and stream registry.
type Controller struct {
	Store   *Store
	Streams *Streams
	Limiter *RateLimiter
}

type createLobbyRequest struct {
	MaxMembers int    `json:"max_members" binding:"required,min=1"`
	HostAddr   string `json:"host_addr"`
}

type metadataRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

type joinableRequest struct {
	Joinable bool `json:"joinable"`
}

type inviteRequest struct {
	To       string `json:"to" binding:"required"`
	AutoJoin bool   `json:"auto_join"`
}

type banRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// apiError maps store errors to status plus a stable machine code.
func apiError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, errNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, errNotMember):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, errFull):
		status, code = http.StatusConflict, "full"
	case errors.Is(err, errNotJoinable):
		status, code = http.StatusConflict, "full"
	case errors.Is(err, errBanned):
		status, code = http.StatusForbidden, "banned"
	case errors.Is(err, errQuotaExceeded):
		status, code = http.StatusTooManyRequests, "quota_exceeded"
	case errors.Is(err, errNotOwner):
		status, code = http.StatusForbidden, "not_owner"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}
	c.JSON(status, gin.H{"error": code})
}

func (ctl *Controller) handleCreate(c *gin.Context) {
	who := identityOf(c)
	if !ctl.Limiter.Allow(who) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "quota_exceeded"})
		return
	}
	var req createLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	s, err := ctl.Store.Create(who, c.GetString("display_name"), req.MaxMembers, req.HostAddr)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (ctl *Controller) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.Store.List())
}

func (ctl *Controller) handleGet(c *gin.Context) {
	s, err := ctl.Store.Get(domain.SessionID(c.Param("id")), identityOf(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (ctl *Controller) handleJoin(c *gin.Context) {
	who := identityOf(c)
	if !ctl.Limiter.Allow(who) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "quota_exceeded"})
		return
	}
	s, err := ctl.Store.Join(domain.SessionID(c.Param("id")), who, c.GetString("display_name"))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (ctl *Controller) handleLeave(c *gin.Context) {
	if err := ctl.Store.Leave(domain.SessionID(c.Param("id")), identityOf(c)); err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) handleSetMetadata(c *gin.Context) {
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if err := ctl.Store.SetMetadata(domain.SessionID(c.Param("id")), identityOf(c), req.Key, req.Value); err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) handleSetJoinable(c *gin.Context) {
	var req joinableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if err := ctl.Store.SetJoinable(domain.SessionID(c.Param("id")), identityOf(c), req.Joinable); err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) handleInvite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	err := ctl.Store.Invite(domain.SessionID(c.Param("id")), identityOf(c), domain.Identity(req.To), req.AutoJoin)
	if err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) handleBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if err := ctl.Store.Ban(domain.SessionID(c.Param("id")), identityOf(c), domain.Identity(req.Identity)); err != nil {
		apiError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) handleEvents(c *gin.Context) {
	who := identityOf(c)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Msg("events upgrade")
		return
	}
	ctl.Streams.Attach(who, ws)
}
