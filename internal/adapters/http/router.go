// Package http serves the local UI API: chat, calls and a server-sent event
// stream of state changes.
package http

import (
	"context"

	"github.com/dkeye/VoiceClient/internal/app/call"
	"github.com/dkeye/VoiceClient/internal/app/chat"
	"github.com/dkeye/VoiceClient/internal/app/orch"
	"github.com/dkeye/VoiceClient/internal/config"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ChatService interface {
	Self() domain.UserID
	Active() domain.ConversationRef
	SetActive(ctx context.Context, ref domain.ConversationRef) error
	Messages(ref domain.ConversationRef) []domain.ChatMessage
	SendText(ctx context.Context, content string) (domain.ChatMessage, error)
	DeleteForMe(id domain.MessageID) bool
	Connectivity() orch.Connectivity
	SubscribeConnectivity(fn func(orch.Connectivity))
	SubscribeMessages(fn chat.Listener)
}

type CallService interface {
	StartCall(ctx context.Context, peer domain.UserID, kind domain.MediaKind) error
	AcceptCall(ctx context.Context) error
	RejectCall(ctx context.Context) error
	EndCall(ctx context.Context) error
	SetMicEnabled(enabled bool) error
	SetVideoEnabled(enabled bool) error
	Snapshot() (call.Snapshot, bool)
	Subscribe(fn func(call.Snapshot, bool))
}

type handlers struct {
	chat  ChatService
	calls CallService
	hub   *Hub
}

func SetupRouter(cfg *config.Config, chat ChatService, calls CallService, hub *Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	h := &handlers{chat: chat, calls: calls, hub: hub}
	api := r.Group("/api")

	api.GET("/status", h.status)
	api.PUT("/active", h.setActive)
	api.GET("/messages", h.messages)
	api.POST("/messages", h.sendMessage)
	api.DELETE("/messages/:id", h.deleteMessage)

	cg := api.Group("/calls")
	cg.GET("", h.callState)
	cg.POST("", h.startCall)
	cg.POST("/accept", h.acceptCall)
	cg.POST("/reject", h.rejectCall)
	cg.POST("/end", h.endCall)
	cg.PUT("/mic", h.setMic)
	cg.PUT("/video", h.setVideo)

	api.GET("/events", h.events)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
