package handlers

import (
	"errors"
	"net/http"
	"strings"

	"smartbite-api/apperror"
	"smartbite-api/models"
	"smartbite-api/statemachine"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRestaurants returns active restaurants, optionally filtered by town,
// category or a name search
func (a *API) ListRestaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	query := a.DB.WithContext(c.Request.Context()).
		Preload("Categories").
		Where("is_active = ?", true)

	if town := strings.TrimSpace(c.Query("town")); town != "" {
		query = query.Where("LOWER(town) = LOWER(?)", town)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("id IN (?)", a.DB.Model(&models.RestaurantCategory{}).
			Select("restaurant_id").
			Where("LOWER(category) = LOWER(?)", category))
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	if err := query.Order("name asc").Find(&restaurants).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(restaurants),
		"restaurants": restaurants,
	})
}

// GetRestaurant returns a single restaurant with its categories
func (a *API) GetRestaurant(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var restaurant models.Restaurant
	err = a.DB.WithContext(c.Request.Context()).Preload("Categories").First(&restaurant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = apperror.ErrRestaurantNotFound
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

// GetMenu returns the menu for a specific restaurant
func (a *API) GetMenu(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	db := a.DB.WithContext(c.Request.Context())
	var restaurant models.Restaurant
	if err := db.First(&restaurant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = apperror.ErrRestaurantNotFound
		}
		respondError(c, err)
		return
	}

	var items []models.MenuItem
	query := db.Where("restaurant_id = ?", restaurant.ID)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if c.Query("available") == "true" {
		query = query.Where("is_available = ?", true)
	}
	if err := query.Order("category asc, name asc").Find(&items).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurant": restaurant.Name,
		"count":      len(items),
		"menu":       items,
	})
}

// GetStateMachineInfo returns the full order lifecycle for documentation
func (a *API) GetStateMachineInfo(c *gin.Context) {
	actors := map[models.OrderStatus]string{
		models.StatusPreparing: "owner",
		models.StatusReady:     "owner",
		models.StatusInTransit: "agent (self-assign) or owner",
		models.StatusDelivered: "assigned agent",
		models.StatusCancelled: "owner or assigned agent",
	}
	var info []gin.H
	var terminal []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range statemachine.GetAllTransitions() {
		info = append(info, gin.H{"from": t.From, "to": t.To, "actor": actors[t.To] + ", admin"})
		if statemachine.IsTerminal(t.To) && !seen[t.To] {
			seen[t.To] = true
			terminal = append(terminal, t.To)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine":   info,
		"terminal_states": terminal,
		"description":     "SmartBite order lifecycle",
	})
}
