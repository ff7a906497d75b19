package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// System proxy / autostart / connectivity handlers

func (r *Router) getSystemProxy(c *gin.Context) {
	enabled, err := r.service.SystemProxyEnabled(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (r *Router) enableSystemProxy(c *gin.Context) {
	if err := r.service.EnableSystemProxy(c.Request.Context()); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

func (r *Router) disableSystemProxy(c *gin.Context) {
	if err := r.service.DisableSystemProxy(c.Request.Context()); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

func (r *Router) getAutostart(c *gin.Context) {
	enabled, err := r.service.AutostartEnabled()
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (r *Router) setAutostart(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := r.service.SetAutostart(*req.Enabled); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

func (r *Router) checkConnectivity(c *gin.Context) {
	res, err := r.service.CheckConnectivity(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
