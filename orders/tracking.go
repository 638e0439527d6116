package orders

import (
	"context"
	"errors"
	"time"

	"smartbite-api/apperror"
	"smartbite-api/models"
	"smartbite-api/notify"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gorm.io/gorm"
)

// GetOrder loads an order with its lines and history if the actor may see it
func (s *Service) GetOrder(ctx context.Context, orderID uint, by Actor) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items.MenuItem").
		Preload("Restaurant").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Agent").
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canView(order, by) {
		return nil, apperror.ErrForbidden.Withf("this order does not belong to you")
	}
	return &order, nil
}

func canView(order models.Order, by Actor) bool {
	switch by.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return order.CustomerID == by.UserID
	case models.RoleOwner:
		return order.Restaurant != nil && order.Restaurant.OwnerID == by.UserID
	case models.RoleAgent:
		return order.AgentID != nil && *order.AgentID == by.UserID
	}
	return false
}

// RecordLocation appends a position to the delivery trail of an order the
// agent is currently delivering.
func (s *Service) RecordLocation(ctx context.Context, orderID, agentID uint, lat, lng float64) (*models.DeliveryLocationPing, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, apperror.ErrInvalidLocation
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.AgentID == nil || *order.AgentID != agentID {
		return nil, apperror.ErrForbidden.Withf("you are not the assigned agent for this order")
	}
	if order.Status != models.StatusInTransit {
		return nil, apperror.ErrNotTracking
	}

	ping := models.DeliveryLocationPing{
		OrderID:   orderID,
		AgentID:   agentID,
		Latitude:  lat,
		Longitude: lng,
		Timestamp: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&ping).Error; err != nil {
		return nil, err
	}

	s.emitter.Emit(notify.Event{
		Name: notify.EventDeliveryLocation,
		Payload: notify.LocationPayload{
			OrderID:   orderID,
			AgentID:   agentID,
			Latitude:  lat,
			Longitude: lng,
			Timestamp: ping.Timestamp,
		},
		UserIDs: notify.Recipients(order.CustomerID),
	})
	return &ping, nil
}

// Track returns the delivery trail of an order, oldest first
func (s *Service) Track(ctx context.Context, orderID uint, by Actor) ([]models.DeliveryLocationPing, error) {
	if _, err := s.GetOrder(ctx, orderID, by); err != nil {
		return nil, err
	}
	var pings []models.DeliveryLocationPing
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp asc, id asc").
		Find(&pings).Error
	return pings, err
}

// TrackFeature renders a trail as a GeoJSON feature: a Point for a single
// ping, a LineString otherwise. It returns nil for an empty trail.
func TrackFeature(orderID uint, pings []models.DeliveryLocationPing) *geojson.Feature {
	if len(pings) == 0 {
		return nil
	}
	coords := make([]geom.Coord, len(pings))
	for i, p := range pings {
		coords[i] = geom.Coord{p.Longitude, p.Latitude}
	}

	var g geom.T
	if len(coords) == 1 {
		g = geom.NewPointFlat(geom.XY, coords[0])
	} else {
		g = geom.NewLineString(geom.XY).MustSetCoords(coords)
	}
	last := pings[len(pings)-1]
	return &geojson.Feature{
		Geometry: g,
		Properties: map[string]interface{}{
			"order_id":   orderID,
			"agent_id":   last.AgentID,
			"points":     len(pings),
			"started_at": pings[0].Timestamp,
			"updated_at": last.Timestamp,
		},
	}
}
