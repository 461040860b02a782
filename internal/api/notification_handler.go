package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's inbox, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	views, err := h.Sink.ListFor(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// UnreadCount reports how many notifications are still unread.
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.Sink.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// MarkNotificationRead flags one of the caller's notifications as read.
// Unknown ids and other members' notifications are ignored.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "id", "notification")
	if !ok {
		return
	}
	if err := h.Sink.MarkRead(c.Request.Context(), id, currentUser(c).ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
