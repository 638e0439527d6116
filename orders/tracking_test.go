package orders

import (
	"context"
	"errors"
	"testing"

	"smartbite-api/apperror"
	"smartbite-api/models"
	"smartbite-api/notify"
	"smartbite-api/testdb"

	"github.com/twpayne/go-geom"
)

func TestGetOrderVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := testdb.Order(t, f.db, f.customer.ID, f.restaurant.ID, models.StatusPending, 1000)
	stranger := testdb.User(t, f.db, models.RoleCustomer)
	_, otherOwner := testdb.Restaurant(t, f.db)
	agent := testdb.User(t, f.db, models.RoleAgent)

	tests := []struct {
		name string
		by   Actor
		ok   bool
	}{
		{"customer", Actor{f.customer.ID, models.RoleCustomer}, true},
		{"owner", Actor{f.owner.ID, models.RoleOwner}, true},
		{"admin", Actor{999, models.RoleAdmin}, true},
		{"other customer", Actor{stranger.ID, models.RoleCustomer}, false},
		{"other owner", Actor{otherOwner.ID, models.RoleOwner}, false},
		{"unassigned agent", Actor{agent.ID, models.RoleAgent}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.GetOrder(ctx, order.ID, tt.by)
			if tt.ok {
				if err != nil || got.ID != order.ID {
					t.Fatalf("GetOrder() = %v, %v", got, err)
				}
				return
			}
			if !errors.Is(err, apperror.ErrForbidden) {
				t.Fatalf("err = %v, want ErrForbidden", err)
			}
		})
	}

	if _, err := f.svc.GetOrder(ctx, 4040, Actor{999, models.RoleAdmin}); !errors.Is(err, apperror.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestRecordLocationAndTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agent := testdb.User(t, f.db, models.RoleAgent)
	intruder := testdb.User(t, f.db, models.RoleAgent)
	order := testdb.Order(t, f.db, f.customer.ID, f.restaurant.ID, models.StatusReady, 1000)

	if err := f.svc.AcceptDelivery(ctx, order.ID, agent.ID); err != nil {
		t.Fatalf("AcceptDelivery: %v", err)
	}

	if _, err := f.svc.RecordLocation(ctx, order.ID, agent.ID, 91, 9.7); !errors.Is(err, apperror.ErrInvalidLocation) {
		t.Fatalf("err = %v, want ErrInvalidLocation", err)
	}
	if _, err := f.svc.RecordLocation(ctx, order.ID, intruder.ID, 4.05, 9.7); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	points := [][2]float64{{4.0511, 9.7679}, {4.0525, 9.7702}, {4.0540, 9.7721}}
	for _, p := range points {
		if _, err := f.svc.RecordLocation(ctx, order.ID, agent.ID, p[0], p[1]); err != nil {
			t.Fatalf("RecordLocation: %v", err)
		}
	}

	var last notify.Event
	for _, ev := range f.emitter.events {
		if ev.Name == notify.EventDeliveryLocation {
			last = ev
		}
	}
	if len(last.UserIDs) != 1 || last.UserIDs[0] != f.customer.ID {
		t.Fatalf("location should go to the customer only, got %v", last.UserIDs)
	}

	pings, err := f.svc.Track(ctx, order.ID, Actor{f.customer.ID, models.RoleCustomer})
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if len(pings) != 3 || pings[0].Latitude != points[0][0] || pings[2].Longitude != points[2][1] {
		t.Fatalf("unexpected trail %+v", pings)
	}

	feature := TrackFeature(order.ID, pings)
	ls, ok := feature.Geometry.(*geom.LineString)
	if !ok {
		t.Fatalf("geometry = %T, want *geom.LineString", feature.Geometry)
	}
	if ls.NumCoords() != 3 || ls.Coord(0).X() != points[0][1] || ls.Coord(0).Y() != points[0][0] {
		t.Fatalf("coordinates should be lng/lat, got %v", ls.Coords())
	}
	if feature.Properties["points"] != 3 {
		t.Fatalf("points = %v", feature.Properties["points"])
	}

	if err := f.svc.UpdateStatus(ctx, order.ID, Actor{agent.ID, models.RoleAgent}, models.StatusDelivered, nil, ""); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := f.svc.RecordLocation(ctx, order.ID, agent.ID, 4.06, 9.78); !errors.Is(err, apperror.ErrNotTracking) {
		t.Fatalf("err = %v, want ErrNotTracking", err)
	}
}

func TestTrackFeatureShapes(t *testing.T) {
	if TrackFeature(1, nil) != nil {
		t.Fatal("empty trail should have no feature")
	}
	f := TrackFeature(1, []models.DeliveryLocationPing{{AgentID: 3, Latitude: 3.87, Longitude: 11.52}})
	pt, ok := f.Geometry.(*geom.Point)
	if !ok {
		t.Fatalf("geometry = %T, want *geom.Point", f.Geometry)
	}
	if pt.X() != 11.52 || pt.Y() != 3.87 {
		t.Fatalf("point = %v", pt.Coords())
	}
}
