package handlers

import (
	"errors"
	"net/http"

	"smartbite-api/apperror"
	"smartbite-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminGetAllOrders returns all orders with a per-status summary
func (a *API) AdminGetAllOrders(c *gin.Context) {
	var list []models.Order
	query := a.DB.WithContext(c.Request.Context()).
		Preload("Items").Preload("Customer").Preload("Restaurant").Preload("Agent").Preload("StatusHistory")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if restaurantID := c.Query("restaurant_id"); restaurantID != "" {
		query = query.Where("restaurant_id = ?", restaurantID)
	}
	if err := query.Order("created_at desc").Find(&list).Error; err != nil {
		respondError(c, err)
		return
	}

	summary := map[models.OrderStatus]int{}
	revenue := decimal.Zero
	for _, o := range list {
		summary[o.Status]++
		if o.Status == models.StatusDelivered {
			revenue = revenue.Add(o.Total)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"order_summary": summary,
		"total_revenue": revenue,
		"count":         len(list),
		"orders":        list,
	})
}

// AdminGetAllUsers returns all users, optionally by role
func (a *API) AdminGetAllUsers(c *gin.Context) {
	var users []models.User
	query := a.DB.WithContext(c.Request.Context())
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Order("id asc").Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// AdminGetAllRestaurants returns every restaurant, active or not
func (a *API) AdminGetAllRestaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	err := a.DB.WithContext(c.Request.Context()).
		Preload("Owner").Preload("Categories").
		Order("id asc").
		Find(&restaurants).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

// AdminSetRestaurantActive opens or closes a restaurant for new orders
func (a *API) AdminSetRestaurantActive(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	var restaurant models.Restaurant
	db := a.DB.WithContext(c.Request.Context())
	if err := db.First(&restaurant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperror.ErrRestaurantNotFound
		}
		respondError(c, err)
		return
	}
	if err := db.Model(&restaurant).Update("is_active", *req.IsActive).Error; err != nil {
		respondError(c, err)
		return
	}
	restaurant.IsActive = *req.IsActive
	logrus.WithFields(logrus.Fields{"restaurant_id": id, "is_active": *req.IsActive}).Info("Restaurant activation changed")
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant updated", "restaurant": restaurant})
}
