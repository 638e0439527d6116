package handlers

import (
	"net/http"
	"time"

	"smartbite-api/middleware"
	"smartbite-api/models"
	"smartbite-api/orders"

	"github.com/gin-gonic/gin"
)

type PlaceOrderRequest struct {
	RestaurantID    uint              `json:"restaurant_id" binding:"required"`
	Items           []orders.CartLine `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	CustomerPhone   string            `json:"customer_phone"`
	PaymentMethod   string            `json:"payment_method"`
}

// PlaceOrder creates a new order priced against the current menu (customer only)
func (a *API) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	res, err := a.Orders.CreateOrder(c.Request.Context(), orders.CreateOrderInput{
		CustomerID:      middleware.GetUserID(c),
		RestaurantID:    req.RestaurantID,
		Lines:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		CustomerPhone:   req.CustomerPhone,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetMyOrders returns all orders for the logged-in customer
func (a *API) GetMyOrders(c *gin.Context) {
	var list []models.Order
	query := a.DB.WithContext(c.Request.Context()).
		Preload("Items").Preload("Restaurant").
		Where("customer_id = ?", middleware.GetUserID(c))
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at desc").Find(&list).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "orders": list})
}

// GetOrderDetail returns a single order with its history to anyone
// involved in it
func (a *API) GetOrderDetail(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	order, err := a.Orders.GetOrder(c.Request.Context(), id, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":           order,
		"minutes_elapsed": int(time.Since(order.CreatedAt).Minutes()),
	})
}
