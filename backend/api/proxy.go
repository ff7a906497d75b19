package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hunter/backend/domain"
	"hunter/backend/service/proxy"
)

// Process handlers

func (r *Router) inspectProcess(c *gin.Context) {
	state, err := r.service.ProcessState(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (r *Router) getProcessStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.service.ProxyState())
}

func (r *Router) launchProcess(c *gin.Context) {
	if err := r.service.Launch(c.Request.Context()); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.service.ProxyState())
}

func (r *Router) terminateProcess(c *gin.Context) {
	var req struct {
		PID *uint32 `json:"pid"`
	}
	// 请求体可选：为空表示结束当前子进程
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	if err := r.service.Terminate(c.Request.Context(), req.PID); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.service.ProxyState())
}

func (r *Router) getDaemon(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"daemon": r.service.ProxyState().Daemon})
}

func (r *Router) toggleDaemon(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"daemon": r.service.ToggleDaemon()})
}

func (r *Router) getExecutable(c *gin.Context) {
	c.JSON(http.StatusOK, r.service.Executable())
}

func (r *Router) getChildLogs(c *gin.Context) {
	stream, err := proxy.ParseLogStream(c.Query("stream"))
	if err != nil {
		badRequest(c, err)
		return
	}
	since, ok := parseSince(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.service.ChildLogs(stream, since))
}

func (r *Router) writeNodeConfig(c *gin.Context) {
	var node domain.ServerNode
	if err := c.ShouldBindJSON(&node); err != nil {
		badRequest(c, err)
		return
	}
	if err := r.service.WriteNodeConfig(c.Request.Context(), node); err != nil {
		r.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseSince(c *gin.Context) (int64, bool) {
	raw := c.Query("since")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		badRequest(c, errors.New("invalid 'since' parameter: must be a non-negative integer"))
		return 0, false
	}
	return v, true
}
