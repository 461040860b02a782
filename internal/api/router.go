// Package api is the HTTP surface of the matrimony backend.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/auth"
	"github.com/sengunthar/matrimony/internal/realtime"
	"github.com/sengunthar/matrimony/internal/service/account"
	"github.com/sengunthar/matrimony/internal/service/match"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
)

// Deps are the services the handlers call into. Hub may be nil, which
// disables /ws.
type Deps struct {
	Accounts *account.Service
	Matches  *match.Service
	Sink     *notify.Sink
	Hub      *realtime.Hub
	Issuer   *auth.Issuer
	Store    storage.Store
}

// Handler holds the route handlers.
type Handler struct {
	appCtx *app.AppContext
	Deps
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(appCtx *app.AppContext, deps Deps) *gin.Engine {
	h := &Handler{appCtx: appCtx, Deps: deps}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), accessLog(appCtx.Logger), cors(appCtx.Config.HTTP.CORSOrigins))

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Server is running") })

	if local, ok := deps.Store.(*storage.Local); ok {
		r.Static(local.URLPrefix, local.Dir)
	}
	if deps.Hub != nil {
		r.GET("/ws", h.Socket)
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)

		api.POST("/auth/signup", h.Signup)
		api.POST("/auth/login", h.Login)
		api.POST("/admin/login", h.AdminLogin)

		admin := api.Group("/admin")
		admin.Use(h.requireAdmin())
		{
			admin.GET("/pending", h.ListPending)
			admin.POST("/verify/:id", h.Verify)
		}

		// member routes that need an approved account
		active := api.Group("")
		active.Use(h.requireUser(true))
		{
			active.GET("/profiles", h.BrowseProfiles)
			active.GET("/profile/:id", h.GetProfile)
			active.POST("/profile/:id/match-request", h.SendMatchRequest)
			active.GET("/match-requests", h.ListMatchRequests)
			active.POST("/match-requests/:id/accept", h.AcceptMatchRequest)
			active.POST("/match-requests/:id/reject", h.RejectMatchRequest)
		}

		inbox := api.Group("/notifications")
		inbox.Use(h.requireUser(false))
		{
			inbox.GET("", h.ListNotifications)
			inbox.GET("/unread-count", h.UnreadCount)
			inbox.POST("/:id/read", h.MarkNotificationRead)
		}
	}

	return r
}

// Health reports liveness together with database reachability.
func (h *Handler) Health(c *gin.Context) {
	status, code := "OK", http.StatusOK
	if sqlDB, err := h.appCtx.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status, code = "DEGRADED", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "timestamp": time.Now().UTC()})
}

func (h *Handler) log() *slog.Logger {
	return h.appCtx.Logger.With("component", "api")
}
