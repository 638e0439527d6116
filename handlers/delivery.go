package handlers

import (
	"net/http"

	"smartbite-api/middleware"
	"smartbite-api/models"
	"smartbite-api/orders"

	"github.com/gin-gonic/gin"
)

// GetAvailableDeliveries lists ready orders no agent has claimed, oldest first
func (a *API) GetAvailableDeliveries(c *gin.Context) {
	var list []models.Order
	err := a.DB.WithContext(c.Request.Context()).
		Preload("Restaurant").Preload("Items").
		Where("status = ? AND agent_id IS NULL", models.StatusReady).
		Order("created_at asc").
		Find(&list).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "orders": list})
}

// GetMyDeliveries returns all orders assigned to the logged-in agent
func (a *API) GetMyDeliveries(c *gin.Context) {
	var list []models.Order
	query := a.DB.WithContext(c.Request.Context()).
		Preload("Items").Preload("Restaurant").Preload("Customer").
		Where("agent_id = ?", middleware.GetUserID(c))
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("updated_at desc").Find(&list).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "orders": list})
}

// AcceptDelivery claims a ready order for the calling agent
func (a *API) AcceptDelivery(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	agentID := middleware.GetUserID(c)
	if err := a.Orders.AcceptDelivery(c.Request.Context(), id, agentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Delivery accepted",
		"order_id": id,
		"agent_id": agentID,
		"status":   models.StatusInTransit,
	})
}

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// RecordLocation appends the agent's position to the order's trail
func (a *API) RecordLocation(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	ping, err := a.Orders.RecordLocation(c.Request.Context(), id, middleware.GetUserID(c), *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"location": ping})
}

// TrackOrder returns the delivery trail as a GeoJSON feature
func (a *API) TrackOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	pings, err := a.Orders.Track(c.Request.Context(), id, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	feature := orders.TrackFeature(id, pings)
	if feature == nil {
		c.JSON(http.StatusOK, gin.H{
			"type":       "Feature",
			"geometry":   nil,
			"properties": gin.H{"order_id": id, "points": 0},
		})
		return
	}
	c.JSON(http.StatusOK, feature)
}
