// Package orders is the order engine: it prices carts against the live menu,
// persists orders atomically and drives the status lifecycle, including
// delivery claims by agents.
package orders

import (
	"context"
	"errors"
	"strings"

	"smartbite-api/apperror"
	"smartbite-api/models"
	"smartbite-api/notify"
	"smartbite-api/statemachine"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID uint
	Role   models.UserRole
}

type CartLine struct {
	MenuItemID uint `json:"menu_item_id"`
	Quantity   int  `json:"quantity"`
}

type CreateOrderInput struct {
	CustomerID      uint
	RestaurantID    uint
	Lines           []CartLine
	DeliveryAddress string
	CustomerPhone   string
	PaymentMethod   string
}

type CreateOrderResult struct {
	OrderID uint            `json:"orderId"`
	Total   decimal.Decimal `json:"total"`
}

type Service struct {
	db      *gorm.DB
	emitter notify.Emitter
}

func NewService(db *gorm.DB, emitter notify.Emitter) *Service {
	if emitter == nil {
		emitter = notify.Discard{}
	}
	return &Service{db: db, emitter: emitter}
}

// CreateOrder prices every cart line against the current menu and stores
// the order and its lines in one transaction.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if len(in.Lines) == 0 {
		return nil, apperror.ErrEmptyCart
	}
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, apperror.ErrInvalidQuantity.Withf("quantity for menu item %d must be greater than zero", l.MenuItemID)
		}
	}
	address := strings.TrimSpace(in.DeliveryAddress)
	phone := strings.TrimSpace(in.CustomerPhone)
	if address == "" || phone == "" {
		return nil, apperror.ErrMissingDeliveryInfo
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "cash"
	}

	var order models.Order
	var ownerID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var restaurant models.Restaurant
		if err := tx.First(&restaurant, in.RestaurantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.ErrRestaurantNotFound
			}
			return err
		}
		if !restaurant.IsActive {
			return apperror.ErrRestaurantClosed
		}
		ownerID = restaurant.OwnerID

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(in.Lines))
		for _, l := range in.Lines {
			var menuItem models.MenuItem
			err := tx.Where("id = ? AND restaurant_id = ? AND is_available = ?", l.MenuItemID, in.RestaurantID, true).
				First(&menuItem).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.ErrInvalidItem.Withf("menu item %d not available", l.MenuItemID)
			}
			if err != nil {
				return err
			}
			menuItemID := menuItem.ID
			line := models.OrderItem{
				MenuItemID: &menuItemID,
				Quantity:   l.Quantity,
				Price:      menuItem.Price,
				Name:       menuItem.Name,
			}
			total = total.Add(line.Subtotal())
			items = append(items, line)
		}

		order = models.Order{
			CustomerID:      in.CustomerID,
			RestaurantID:    in.RestaurantID,
			Status:          models.StatusPending,
			Total:           total,
			DeliveryAddress: address,
			CustomerPhone:   phone,
			PaymentMethod:   method,
			PaymentStatus:   models.PaymentStatusPending,
			Items:           items,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  models.StatusPending,
			ChangedBy: in.CustomerID,
			Note:      "Order placed by customer",
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"restaurant_id": order.RestaurantID,
		"total":         order.Total.String(),
	}).Info("Order created")

	s.emitter.Emit(notify.Event{
		Name: notify.EventNewOrder,
		Payload: notify.NewOrderPayload{
			OrderID:      order.ID,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			Total:        order.Total,
		},
		UserIDs: notify.Recipients(order.CustomerID, ownerID),
	})

	return &CreateOrderResult{OrderID: order.ID, Total: order.Total}, nil
}

// UpdateStatus moves an order one step along its lifecycle (or cancels it).
// agentID, when given, is written in the same update.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, by Actor, newStatus models.OrderStatus, agentID *uint, note string) error {
	if !statemachine.Known(newStatus) {
		return apperror.ErrInvalidTransition.Withf("unknown status %q", newStatus)
	}

	var order models.Order
	var assigned *uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Restaurant").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.ErrOrderNotFound
			}
			return err
		}
		if !canUpdate(order, by, newStatus) {
			return apperror.ErrForbidden.Withf("not authorized to update this order")
		}
		if err := statemachine.CanTransition(order.Status, newStatus); err != nil {
			return err
		}

		assigned = agentID
		selfAssign := false
		if by.Role == models.RoleAgent {
			if assigned != nil && *assigned != by.UserID {
				return apperror.ErrForbidden.Withf("agents can only assign themselves")
			}
			if assigned == nil && order.AgentID == nil && newStatus == models.StatusInTransit {
				id := by.UserID
				assigned = &id
			}
			selfAssign = assigned != nil
		}

		updates := map[string]interface{}{"status": newStatus}
		if assigned != nil {
			if !statemachine.AllowsAgent(newStatus) {
				return apperror.ErrInvalidAgent.Withf("an agent can only be assigned when the order is %s or later", models.StatusInTransit)
			}
			if err := requireAgent(tx, *assigned); err != nil {
				return err
			}
			updates["agent_id"] = *assigned
		}

		q := tx.Model(&models.Order{}).Where("id = ? AND status = ?", order.ID, order.Status)
		if selfAssign {
			q = q.Where("(agent_id IS NULL OR agent_id = ?)", by.UserID)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.ErrInvalidTransition.Withf("order %d changed concurrently", order.ID)
		}

		return tx.Create(&models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   newStatus,
			ChangedBy:  by.UserID,
			Note:       note,
		}).Error
	})
	if err != nil {
		return err
	}

	if assigned == nil {
		assigned = order.AgentID
	}
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     order.Status,
		"to":       newStatus,
		"by":       by.UserID,
	}).Info("Order status updated")
	s.emitStatus(order, newStatus, assigned)
	return nil
}

// AcceptDelivery claims a ready, unassigned order for agentID. The claim is
// a single conditional update, so concurrent callers cannot both win.
func (s *Service) AcceptDelivery(ctx context.Context, orderID, agentID uint) error {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireAgent(tx, agentID); err != nil {
			return err
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND agent_id IS NULL", orderID, models.StatusReady).
			Updates(map[string]interface{}{
				"agent_id": agentID,
				"status":   models.StatusInTransit,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperror.ErrOrderNotFound
			}
			return apperror.ErrNotAvailable
		}
		if err := tx.Preload("Restaurant").First(&order, orderID).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:    orderID,
			FromStatus: models.StatusReady,
			ToStatus:   models.StatusInTransit,
			ChangedBy:  agentID,
			Note:       "Delivery accepted by agent",
		}).Error
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"order_id": orderID, "agent_id": agentID}).Info("Delivery accepted")
	s.emitStatus(order, models.StatusInTransit, &agentID)
	return nil
}

// canUpdate: admins always; owners of the order's restaurant; agents already
// assigned to the order, or any agent moving it to in_transit.
func canUpdate(order models.Order, by Actor, newStatus models.OrderStatus) bool {
	switch by.Role {
	case models.RoleAdmin:
		return true
	case models.RoleOwner:
		return order.Restaurant != nil && order.Restaurant.OwnerID == by.UserID
	case models.RoleAgent:
		if order.AgentID != nil && *order.AgentID == by.UserID {
			return true
		}
		return newStatus == models.StatusInTransit
	}
	return false
}

func requireAgent(tx *gorm.DB, userID uint) error {
	var user models.User
	if err := tx.Select("id", "role").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrInvalidAgent.Withf("user %d does not exist", userID)
		}
		return err
	}
	if user.Role != models.RoleAgent {
		return apperror.ErrInvalidAgent.Withf("user %d is not a delivery agent", userID)
	}
	return nil
}

func (s *Service) emitStatus(order models.Order, status models.OrderStatus, agentID *uint) {
	var ownerID, agent uint
	if order.Restaurant != nil {
		ownerID = order.Restaurant.OwnerID
	}
	if agentID != nil {
		agent = *agentID
	}
	ev := notify.Event{
		Name: notify.EventOrderStatusUpdate,
		Payload: notify.OrderStatusPayload{
			OrderID:      order.ID,
			Status:       status,
			RestaurantID: order.RestaurantID,
			CustomerID:   order.CustomerID,
			AgentID:      agentID,
		},
		UserIDs: notify.Recipients(order.CustomerID, ownerID, agent),
	}
	if status == models.StatusReady {
		ev.Roles = []models.UserRole{models.RoleAgent}
	}
	s.emitter.Emit(ev)
}
