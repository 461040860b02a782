package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sengunthar/matrimony/internal/db"
)

type pendingUser struct {
	ID        uint64        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Status    db.UserStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// ListPending returns accounts awaiting approval, oldest first.
func (h *Handler) ListPending(c *gin.Context) {
	users, err := h.Accounts.ListPending(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]pendingUser, 0, len(users))
	for _, u := range users {
		out = append(out, pendingUser{ID: u.ID, Name: u.Name, Email: u.Email, Status: u.Status, CreatedAt: u.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

// Verify approves a pending account.
func (h *Handler) Verify(c *gin.Context) {
	id, ok := idParam(c, "id", "user")
	if !ok {
		return
	}
	user, err := h.Accounts.Activate(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": fmt.Sprintf("User %s activated successfully", user.Email),
	})
}
