package api

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sengunthar/matrimony/internal/auth"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
)

// Socket upgrades to a websocket that receives the caller's new
// notifications. Browsers cannot set headers on the handshake, so the
// token may come as ?token= instead of a bearer header.
func (h *Handler) Socket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = bearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	p, err := h.Issuer.Verify(token)
	if err != nil {
		abortWithError(c, err)
		return
	}
	u, ok := p.(auth.User)
	if !ok {
		abortWithError(c, svcErr.ErrForbidden)
		return
	}
	if _, err := h.Accounts.GetUser(c.Request.Context(), u.UserID); err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.log().Debug("websocket upgrade failed", "user_id", u.UserID, "err", err)
		return
	}
	h.Hub.Serve(u.UserID, conn)
}

func (h *Handler) upgrader() *websocket.Upgrader {
	origins := h.appCtx.Config.HTTP.CORSOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}
