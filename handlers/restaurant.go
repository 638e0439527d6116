package handlers

import (
	"errors"
	"net/http"
	"strings"

	"smartbite-api/apperror"
	"smartbite-api/middleware"
	"smartbite-api/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Restaurant Management ────────────────────────────────────────────────────

type CreateRestaurantRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Town        string          `json:"town" binding:"required"`
	Address     string          `json:"address" binding:"required"`
	Phone       string          `json:"phone" binding:"required"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	MinOrder    decimal.Decimal `json:"min_order"`
	Categories  []string        `json:"categories"`
}

func (a *API) ownedRestaurant(db *gorm.DB, ownerID uint) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := db.Where("owner_id = ?", ownerID).First(&restaurant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrRestaurantNotFound.Withf("no restaurant found for your account")
		}
		return nil, err
	}
	return &restaurant, nil
}

// CreateRestaurant lets an owner create their single restaurant
func (a *API) CreateRestaurant(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var req CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if req.DeliveryFee.IsNegative() || req.MinOrder.IsNegative() {
		respondError(c, apperror.ErrValidation.Withf("fees must not be negative"))
		return
	}

	restaurant := models.Restaurant{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Town:        strings.TrimSpace(req.Town),
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		DeliveryFee: req.DeliveryFee,
		MinOrder:    req.MinOrder,
		IsActive:    true,
		Categories:  models.CategorySet(req.Categories),
	}
	err := a.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Restaurant{}).Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperror.ErrDuplicateRestaurant
		}
		return tx.Create(&restaurant).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Restaurant created", "restaurant": restaurant})
}

// GetMyRestaurant fetches the restaurant owned by the logged-in user
func (a *API) GetMyRestaurant(c *gin.Context) {
	db := a.DB.WithContext(c.Request.Context()).Preload("Categories").Preload("MenuItems")
	restaurant, err := a.ownedRestaurant(db, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

// UpdateRestaurant applies a partial update; categories, when given,
// replace the whole set
func (a *API) UpdateRestaurant(c *gin.Context) {
	var patch models.RestaurantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, bindError(err))
		return
	}
	cols := patch.Columns()
	for _, k := range []string{"name", "address", "phone", "town"} {
		if v, ok := cols[k]; ok && v == "" {
			respondError(c, apperror.ErrValidation.Withf("%s must not be empty", k))
			return
		}
	}

	var restaurant *models.Restaurant
	err := a.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		restaurant, err = a.ownedRestaurant(tx, middleware.GetUserID(c))
		if err != nil {
			return err
		}
		if len(cols) > 0 {
			if err := tx.Model(restaurant).Updates(cols).Error; err != nil {
				return err
			}
		}
		if patch.Categories != nil {
			if err := tx.Where("restaurant_id = ?", restaurant.ID).Delete(&models.RestaurantCategory{}).Error; err != nil {
				return err
			}
			set := models.CategorySet(*patch.Categories)
			for i := range set {
				set[i].RestaurantID = restaurant.ID
			}
			if len(set) > 0 {
				if err := tx.Create(&set).Error; err != nil {
					return err
				}
			}
		}
		return tx.Preload("Categories").First(restaurant, restaurant.ID).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant updated", "restaurant": restaurant})
}

// ── Menu Management ─────────────────────────────────────────────────────────

type CreateMenuItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	PrepTime    int             `json:"prep_time_minutes" binding:"min=0"`
	IsAvailable *bool           `json:"is_available"`
}

// AddMenuItem adds a new item to the restaurant's menu
func (a *API) AddMenuItem(c *gin.Context) {
	var req CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if !req.Price.IsPositive() {
		respondError(c, apperror.ErrValidation.Withf("price must be greater than zero"))
		return
	}

	restaurant, err := a.ownedRestaurant(a.DB.WithContext(c.Request.Context()), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	item := models.MenuItem{
		RestaurantID: restaurant.ID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price,
		Category:     strings.TrimSpace(req.Category),
		PrepTime:     req.PrepTime,
		IsAvailable:  req.IsAvailable == nil || *req.IsAvailable,
	}
	if item.Category == "" {
		item.Category = "Main Course"
	}
	if item.PrepTime == 0 {
		item.PrepTime = 15
	}
	if err := a.DB.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

// ownedMenuItem loads a menu item and checks it belongs to the caller
func (a *API) ownedMenuItem(c *gin.Context) (*models.MenuItem, error) {
	itemID, err := idParam(c, "itemId")
	if err != nil {
		return nil, err
	}
	db := a.DB.WithContext(c.Request.Context())
	var item models.MenuItem
	if err := db.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrMenuItemNotFound
		}
		return nil, err
	}
	restaurant, err := a.ownedRestaurant(db, middleware.GetUserID(c))
	if err != nil {
		return nil, err
	}
	if restaurant.ID != item.RestaurantID {
		return nil, apperror.ErrForbidden.Withf("you don't own this menu item")
	}
	return &item, nil
}

// UpdateMenuItem updates a menu item (only by the owner)
func (a *API) UpdateMenuItem(c *gin.Context) {
	item, err := a.ownedMenuItem(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var patch models.MenuItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, bindError(err))
		return
	}
	if patch.Price != nil && !patch.Price.IsPositive() {
		respondError(c, apperror.ErrValidation.Withf("price must be greater than zero"))
		return
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		respondError(c, apperror.ErrValidation.Withf("name must not be empty"))
		return
	}

	db := a.DB.WithContext(c.Request.Context())
	if cols := patch.Columns(); len(cols) > 0 {
		if err := db.Model(item).Updates(cols).Error; err != nil {
			respondError(c, err)
			return
		}
	}
	if err := db.First(item, item.ID).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeleteMenuItem removes a menu item. Past orders keep their snapshot.
func (a *API) DeleteMenuItem(c *gin.Context) {
	item, err := a.ownedMenuItem(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := a.DB.WithContext(c.Request.Context()).Delete(item).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}
