package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (r *Router) getAppLogs(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}
	snap := r.service.GetAppLogs(since)
	c.JSON(http.StatusOK, snap)
}
