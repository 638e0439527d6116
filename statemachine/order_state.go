package statemachine

import (
	"strings"

	"smartbite-api/apperror"
	"smartbite-api/models"
)

// Transition defines a valid state change
type Transition struct {
	From models.OrderStatus `json:"from"`
	To   models.OrderStatus `json:"to"`
}

// progression is the fixed forward path of an order
var progression = []models.OrderStatus{
	models.StatusPending,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusInTransit,
	models.StatusDelivered,
}

// validTransitions is the authoritative state machine definition: each step
// of the progression, plus cancellation from every non-terminal state.
var validTransitions = func() []Transition {
	var ts []Transition
	for i := 0; i+1 < len(progression); i++ {
		ts = append(ts, Transition{From: progression[i], To: progression[i+1]})
		ts = append(ts, Transition{From: progression[i], To: models.StatusCancelled})
	}
	return ts
}()

var transitionMap = func() map[Transition]bool {
	m := make(map[Transition]bool)
	for _, t := range validTransitions {
		m[t] = true
	}
	return m
}()

// Known reports whether s is a status of the order lifecycle
func Known(s models.OrderStatus) bool {
	if s == models.StatusCancelled {
		return true
	}
	for _, p := range progression {
		if p == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func IsTerminal(s models.OrderStatus) bool {
	return s == models.StatusDelivered || s == models.StatusCancelled
}

// AllowsAgent reports whether an order in status s may carry an agent
func AllowsAgent(s models.OrderStatus) bool {
	return s == models.StatusInTransit || s == models.StatusDelivered
}

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	for _, t := range validTransitions {
		if t.From == status {
			nexts = append(nexts, t.To)
		}
	}
	return nexts
}

// CanTransition checks whether an order may move from one state to another
func CanTransition(from, to models.OrderStatus) error {
	if transitionMap[Transition{From: from, To: to}] {
		return nil
	}
	return apperror.ErrInvalidTransition.Withf(
		"invalid transition: %s → %s. Valid transitions from %s are: %s",
		from, to, from, describeValidFrom(from),
	)
}

func describeValidFrom(status models.OrderStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
