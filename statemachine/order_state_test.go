package statemachine

import (
	"errors"
	"testing"

	"smartbite-api/apperror"
	"smartbite-api/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.OrderStatus
		to      models.OrderStatus
		wantErr bool
	}{
		{"pending to preparing", models.StatusPending, models.StatusPreparing, false},
		{"preparing to ready", models.StatusPreparing, models.StatusReady, false},
		{"ready to in transit", models.StatusReady, models.StatusInTransit, false},
		{"in transit to delivered", models.StatusInTransit, models.StatusDelivered, false},
		{"pending cancelled", models.StatusPending, models.StatusCancelled, false},
		{"in transit cancelled", models.StatusInTransit, models.StatusCancelled, false},
		{"skip pending to in transit", models.StatusPending, models.StatusInTransit, true},
		{"skip preparing to delivered", models.StatusPreparing, models.StatusDelivered, true},
		{"backward ready to preparing", models.StatusReady, models.StatusPreparing, true},
		{"same status", models.StatusReady, models.StatusReady, true},
		{"from delivered", models.StatusDelivered, models.StatusCancelled, true},
		{"from cancelled", models.StatusCancelled, models.StatusPending, true},
		{"unknown status", models.StatusPending, models.OrderStatus("eaten"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperror.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
		if nexts := ValidTransitionsFrom(s); len(nexts) != 0 {
			t.Errorf("%s has exits %v", s, nexts)
		}
	}
}

func TestAllowsAgent(t *testing.T) {
	if AllowsAgent(models.StatusReady) {
		t.Error("ready must not carry an agent")
	}
	if !AllowsAgent(models.StatusInTransit) || !AllowsAgent(models.StatusDelivered) {
		t.Error("in_transit and delivered must allow an agent")
	}
}
