package gateway

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/c360/envmon/device"
	"github.com/c360/envmon/errors"
)

func (s *Server) handleListDevices(c *gin.Context) {
	devices, err := s.store.ListDevices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (s *Server) handleListActive(c *gin.Context) {
	devices, err := s.store.ListActiveDevices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (s *Server) handleListActiveByProtocol(c *gin.Context) {
	protocol, err := device.ParseProtocol(c.Param("protocol"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unknown protocol"})
		return
	}

	devices, err := s.store.ListActiveDevicesByProtocol(c.Request.Context(), protocol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (s *Server) handleGetDevice(c *gin.Context) {
	d, err := s.store.GetDevice(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, errors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "device not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "query failed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleCreateDevice(c *gin.Context) {
	var d device.Device
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed device"})
		return
	}

	created, err := s.store.CreateDevice(c.Request.Context(), d)
	if errors.IsInvalid(err) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateDevice(c *gin.Context) {
	var d device.Device
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed device"})
		return
	}
	d.ID = c.Param("id")

	updated, err := s.store.UpdateDevice(c.Request.Context(), d)
	if stderrors.Is(err, errors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "device not found"})
		return
	}
	if errors.IsInvalid(err) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "update failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteDevice(c *gin.Context) {
	err := s.store.DeleteDevice(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, errors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "device not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
