package api

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sengunthar/matrimony/internal/auth"
	"github.com/sengunthar/matrimony/internal/db"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
)

const (
	ctxPrincipal = "principal"
	ctxUser      = "user"
)

// requireUser authenticates a member token. With active set, the account
// must also be approved; the status is read fresh on every request.
func (h *Handler) requireUser(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.authenticate(c)
		if !ok {
			return
		}
		u, isUser := p.(auth.User)
		if !isUser {
			abortWithError(c, svcErr.ErrForbidden)
			return
		}

		var (
			user *db.User
			err  error
		)
		if active {
			user, err = h.Accounts.RequireActive(c.Request.Context(), u.UserID)
		} else {
			user, err = h.Accounts.GetUser(c.Request.Context(), u.UserID)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ctxPrincipal, p)
		c.Set(ctxUser, user)
		c.Next()
	}
}

// requireAdmin authenticates an operator token.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.authenticate(c)
		if !ok {
			return
		}
		if p.Role() != auth.RoleAdmin {
			abortWithError(c, svcErr.ErrForbidden)
			return
		}
		c.Set(ctxPrincipal, p)
		c.Next()
	}
}

func (h *Handler) authenticate(c *gin.Context) (auth.Principal, bool) {
	token, found := bearerToken(c.GetHeader("Authorization"))
	if !found {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return nil, false
	}
	p, err := h.Issuer.Verify(token)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return p, true
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// currentUser returns the member loaded by requireUser.
func currentUser(c *gin.Context) *db.User {
	return c.MustGet(ctxUser).(*db.User)
}

// cors allows the configured origins ("*" allows any) with the methods and
// headers the web client uses.
func cors(origins []string) gin.HandlerFunc {
	wildcard := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (wildcard || slices.Contains(origins, origin)) {
			hdr := c.Writer.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			hdr.Set("Access-Control-Allow-Credentials", "true")
			hdr.Set("Access-Control-Expose-Headers", nextPageHeader)
			hdr.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func accessLog(log *slog.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
