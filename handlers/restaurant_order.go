package handlers

import (
	"net/http"

	"smartbite-api/middleware"
	"smartbite-api/models"
	"smartbite-api/statemachine"

	"github.com/gin-gonic/gin"
)

// GetRestaurantOrders returns all orders for the restaurant owner
func (a *API) GetRestaurantOrders(c *gin.Context) {
	db := a.DB.WithContext(c.Request.Context())
	restaurant, err := a.ownedRestaurant(db, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	var list []models.Order
	query := db.Preload("Items").Preload("Customer").Preload("Agent").
		Where("restaurant_id = ?", restaurant.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at desc").Find(&list).Error; err != nil {
		respondError(c, err)
		return
	}

	summary := map[models.OrderStatus]int{}
	for _, o := range list {
		summary[o.Status]++
	}
	c.JSON(http.StatusOK, gin.H{
		"restaurant":    restaurant.Name,
		"order_summary": summary,
		"count":         len(list),
		"orders":        list,
	})
}

type UpdateOrderStatusRequest struct {
	Status  models.OrderStatus `json:"status" binding:"required"`
	AgentID *uint              `json:"agent_id"`
	Note    string             `json:"note"`
}

// UpdateOrderStatus moves an order along its lifecycle. Owners drive the
// kitchen steps, agents the delivery steps; admins may do either.
func (a *API) UpdateOrderStatus(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	if err := a.Orders.UpdateStatus(c.Request.Context(), id, actor(c), req.Status, req.AgentID, req.Note); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           "Order status updated",
		"order_id":          id,
		"current_status":    req.Status,
		"valid_next_states": statemachine.ValidTransitionsFrom(req.Status),
	})
}
