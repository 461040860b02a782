package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/logger"
)

// abortWithError renders err as {"error": msg}. Internal causes are logged
// and replaced with a generic message.
func abortWithError(c *gin.Context, err error) {
	status := svcErr.HTTPStatus(err)
	if svcErr.KindOf(err) == svcErr.KindInternal {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": svcErr.Public(err)})
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name, what string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, svcErr.Validation("Invalid "+what+" ID"))
		return 0, false
	}
	return id, true
}
