package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/pqvoice/internal/adapters/signal"
	"github.com/dkeye/pqvoice/internal/app/orch"
	"github.com/dkeye/pqvoice/internal/config"
	"github.com/dkeye/pqvoice/internal/core"
	"github.com/dkeye/pqvoice/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type createRoomRequest struct {
	Name            string  `json:"name"`
	MaxParticipants *uint32 `json:"max_participants"`
}

// SetupRouter wires the admin REST API and the WebSocket signaling
// endpoint.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": o.Registry.Len(),
			"rooms":       len(o.Rooms.List()),
		})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.ListRooms()})
	})

	api.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": o.ListUsers()})
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		room, err := o.CreateRoom(req.Name, req.MaxParticipants)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("module", "adapters.http").Str("room_id", string(room.ID())).Msg("room created via api")
		c.JSON(http.StatusCreated, orch.RoomInfoOf(room.Info()))
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		room, ok := o.Rooms.GetRoom(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": core.ErrRoomNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"room":         orch.RoomInfoOf(room.Info()),
			"participants": orch.ParticipantInfos(room),
		})
	})

	setLock := func(locked bool) gin.HandlerFunc {
		return func(c *gin.Context) {
			err := o.LockRoom(domain.RoomID(c.Param("id")), locked)
			if errors.Is(err, core.ErrRoomNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.Status(http.StatusNoContent)
		}
	}
	api.POST("/rooms/:id/lock", setLock(true))
	api.POST("/rooms/:id/unlock", setLock(false))

	api.DELETE("/rooms/:id", func(c *gin.Context) {
		if !o.DeleteRoom(domain.RoomID(c.Param("id"))) {
			c.JSON(http.StatusNotFound, gin.H{"error": core.ErrRoomNotFound.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	if ctl != nil {
		api.GET("/ws/signal", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("addr", c.ClientIP()).Msg("ws signal endpoint hit")
			ctl.HandleSignal(ctx, c)
		})
	}

	return r
}
