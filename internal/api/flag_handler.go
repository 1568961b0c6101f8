package api

import (
	"context"
	"errors"
	"net/http"

	"flagstore/internal/dto/req"
	"flagstore/internal/dto/resp"
	"flagstore/internal/service"

	"github.com/gin-gonic/gin"
)

type FlagProvider interface {
	Get(ctx context.Context, name string) (*resp.FlagItem, error)
	Set(ctx context.Context, name string, value bool) (*resp.FlagItem, error)
	List(ctx context.Context) ([]resp.FlagItem, error)
	Delete(ctx context.Context, name string) (bool, error)
	Health(ctx context.Context) error
}

type FlagHandler struct {
	service FlagProvider
}

func NewFlagHandler(service FlagProvider) *FlagHandler {
	return &FlagHandler{service: service}
}

func (h *FlagHandler) GetFlag(c *gin.Context) {
	var r req.FlagNameRequest
	if err := c.ShouldBindUri(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}

	item, err := h.service.Get(c.Request.Context(), r.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "flag not configured"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *FlagHandler) SetFlag(c *gin.Context) {
	var uri req.FlagNameRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}

	var body req.SetFlagRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON format error"})
		return
	}

	item, err := h.service.Set(c.Request.Context(), uri.Name, *body.Value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *FlagHandler) ListFlags(c *gin.Context) {
	flags, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flags)
}

func (h *FlagHandler) DeleteFlag(c *gin.Context) {
	var r req.FlagNameRequest
	if err := c.ShouldBindUri(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), r.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.DeleteFlagResponse{Deleted: deleted})
}

func (h *FlagHandler) HealthCheck(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidFlagName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrFlagExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
