package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/service/match"
)

// nextPageHeader carries the browse cursor so the body stays a plain array.
const nextPageHeader = "X-Next-Page-Token"

// BrowseProfiles lists other active members, newest first.
// Query: limit (default 20, max 100), page_token.
func (h *Handler) BrowseProfiles(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, svcErr.Validation("limit must be a number"))
			return
		}
		limit = n
	}

	page, err := h.Matches.BrowseProfiles(c.Request.Context(), currentUser(c).ID, c.Query("page_token"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if page.NextPageToken != nil {
		c.Header(nextPageHeader, *page.NextPageToken)
	}
	c.JSON(http.StatusOK, page.Profiles)
}

func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := idParam(c, "id", "profile")
	if !ok {
		return
	}
	view, err := h.Matches.ProfileView(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) SendMatchRequest(c *gin.Context) {
	id, ok := idParam(c, "id", "profile")
	if !ok {
		return
	}
	if _, err := h.Matches.SendRequest(c.Request.Context(), currentUser(c).ID, id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Match request sent successfully!"})
}

// ListMatchRequests shows pending requests addressed to the caller.
func (h *Handler) ListMatchRequests(c *gin.Context) {
	reqs, err := h.Matches.IncomingRequests(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) AcceptMatchRequest(c *gin.Context) {
	h.respond(c, match.Accept, "Match request accepted! Contact details shared via notifications.")
}

func (h *Handler) RejectMatchRequest(c *gin.Context) {
	h.respond(c, match.Reject, "Match request rejected")
}

func (h *Handler) respond(c *gin.Context, decision match.Decision, message string) {
	id, ok := idParam(c, "id", "request")
	if !ok {
		return
	}
	if _, err := h.Matches.Respond(c.Request.Context(), id, currentUser(c).ID, decision); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": message})
}
