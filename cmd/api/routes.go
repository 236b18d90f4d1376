package main

import (
	"net/http"
	"os"
	"path/filepath"

	"collections-portal/internal/httpapi"
	"collections-portal/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, voice telephony.VoiceWebhookHandler, staticDir string) {
	r.GET("/health", h.Health)

	// Provider-facing routes (public).
	// NOTE: /voice should be protected by provider signature validation in production.
	r.GET("/token", h.Token)
	r.POST("/voice", voice.HandleVoice)

	// Account store
	accounts := r.Group("/accounts")
	{
		accounts.POST("", h.AddAccount)
		accounts.GET("", h.ListAccounts)
		accounts.GET("/stats", h.AccountStats)
		accounts.GET("/:id", h.GetAccount)
	}

	// Call history
	history := r.Group("/history")
	{
		history.GET("", h.ListHistory)
		history.DELETE("", h.ClearHistory)
	}

	// Call session control plane
	sess := r.Group("/session")
	{
		sess.GET("", h.SessionStatus)
		sess.POST("/dial", h.Dial)
		sess.POST("/end", h.EndCall)
		sess.POST("/mute", h.ToggleMute)
		sess.POST("/hold", h.ToggleHold)
		sess.POST("/digits", h.SendDigit)
	}

	// Portal assets. The root document is plumbing; it falls back to a
	// service descriptor when no assets are deployed alongside the binary.
	index := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		r.Static("/public", staticDir)
		r.GET("/", func(c *gin.Context) {
			c.File(index)
		})
		return
	}
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "collections-portal", "status": "ok"})
	})
}
