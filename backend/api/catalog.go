package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hunter/backend/domain"
)

// Catalog handlers

func (r *Router) getCatalog(c *gin.Context) {
	catalog, err := r.service.Catalog(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (r *Router) replaceCatalog(c *gin.Context) {
	var req domain.Catalog
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := r.service.ReplaceCatalog(c.Request.Context(), req)
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (r *Router) saveCatalog(c *gin.Context) {
	if err := r.service.SaveCatalog(); err != nil {
		r.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type localRequest struct {
	Address *string `json:"addr"`
	Port    *uint16 `json:"port"`
}

func (r *Router) updateLocal(c *gin.Context) {
	var req localRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	var err error
	switch {
	case req.Address != nil && req.Port != nil:
		err = r.service.SetLocal(ctx, domain.LocalEndpoint{Address: *req.Address, Port: *req.Port})
	case req.Address != nil:
		err = r.service.SetLocalAddr(ctx, *req.Address)
	case req.Port != nil:
		err = r.service.SetLocalPort(ctx, *req.Port)
	default:
		badRequest(c, errors.New("addr or port is required"))
		return
	}
	if err != nil {
		r.handleError(c, err)
		return
	}
	r.respondCatalog(c)
}

func (r *Router) updatePAC(c *gin.Context) {
	var req struct {
		PAC string `json:"pac" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := r.service.SetPAC(c.Request.Context(), req.PAC); err != nil {
		r.handleError(c, err)
		return
	}
	r.respondCatalog(c)
}

func (r *Router) updateLogLevel(c *gin.Context) {
	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	level, err := domain.ParseLogLevel(req.Level)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := r.service.SetLogLevel(c.Request.Context(), level); err != nil {
		r.handleError(c, err)
		return
	}
	r.respondCatalog(c)
}

func (r *Router) respondCatalog(c *gin.Context) {
	catalog, err := r.service.Catalog(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// Node handlers

func (r *Router) addNode(c *gin.Context) {
	var node domain.ServerNode
	if err := c.ShouldBindJSON(&node); err != nil {
		badRequest(c, err)
		return
	}
	added, err := r.service.AddNode(c.Request.Context(), node)
	if err != nil {
		r.handleError(c, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"added": added})
}

func (r *Router) updateNode(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid node index %q", c.Param("index")))
		return
	}
	var node domain.ServerNode
	if err := c.ShouldBindJSON(&node); err != nil {
		badRequest(c, err)
		return
	}
	if err := r.service.UpdateNode(c.Request.Context(), index, node); err != nil {
		r.handleError(c, err)
		return
	}
	r.respondCatalog(c)
}

func (r *Router) deleteNode(c *gin.Context) {
	if err := r.service.DeleteNode(c.Request.Context(), c.Param("name")); err != nil {
		r.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) getActiveNode(c *gin.Context) {
	node, err := r.service.ActiveNode(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node})
}

func (r *Router) switchNode(c *gin.Context) {
	if err := r.service.SwitchNode(c.Request.Context(), c.Param("name")); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.service.ProxyState())
}
