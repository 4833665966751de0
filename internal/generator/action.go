package generator

import (
	"errors"
	"fmt"
	"sort"
)

// Action is one of the shopping actions a simulated customer can perform.
type Action string

const (
	ActionView     Action = "view"
	ActionCart     Action = "cart"
	ActionUncart   Action = "uncart"
	ActionPurchase Action = "purchase"
	ActionReturn   Action = "return"
)

var (
	// ErrUnknownAction is returned for a weight key that is not a valid action name.
	ErrUnknownAction = errors.New("unknown action name")

	// ErrNegativeWeight is returned when an action weight is negative.
	ErrNegativeWeight = errors.New("action weight must not be negative")

	// ErrNoPositiveWeight is returned when the weight table has no positive entry.
	ErrNoPositiveWeight = errors.New("at least one action weight must be positive")
)

// allActions lists every valid action.
var allActions = []Action{ActionView, ActionCart, ActionUncart, ActionPurchase, ActionReturn}

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	for _, action := range allActions {
		if string(action) == name {
			return action, nil
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnknownAction)
}

// Weights is a normalized action probability table, built once from the
// configured relative weights and shared read-only by all workers.
type Weights struct {
	actions       []Action
	probabilities []float64
	cumulative    []float64
	lastPositive  int
}

// NewWeights normalizes the configured relative weights into probabilities by
// dividing each weight by the sum. Weight magnitudes are arbitrary; only the
// ratios matter. Actions missing from the table get probability zero.
func NewWeights(weights map[string]float64) (Weights, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	actions := make([]Action, 0, len(names))
	raw := make([]float64, 0, len(names))

	for _, name := range names {
		action, err := ParseAction(name)
		if err != nil {
			return Weights{}, err
		}

		weight := weights[name]
		if weight < 0 {
			return Weights{}, fmt.Errorf("%q: %w", name, ErrNegativeWeight)
		}

		actions = append(actions, action)
		raw = append(raw, weight)
		sum += weight
	}

	if sum <= 0 {
		return Weights{}, ErrNoPositiveWeight
	}

	probabilities := make([]float64, len(raw))
	cumulative := make([]float64, len(raw))
	running := 0.0
	lastPositive := 0
	for i, weight := range raw {
		probabilities[i] = weight / sum
		running += probabilities[i]
		cumulative[i] = running
		if weight > 0 {
			lastPositive = i
		}
	}

	return Weights{
		actions:       actions,
		probabilities: probabilities,
		cumulative:    cumulative,
		lastPositive:  lastPositive,
	}, nil
}

// Probabilities returns the normalized probability per action.
func (w Weights) Probabilities() map[Action]float64 {
	probabilities := make(map[Action]float64, len(w.actions))
	for i, action := range w.actions {
		probabilities[action] = w.probabilities[i]
	}
	return probabilities
}

// draw picks an action according to the cumulative distribution, using the
// given uniform random value in [0,1).
func (w Weights) draw(u float64) Action {
	for i, bound := range w.cumulative {
		if u < bound {
			return w.actions[i]
		}
	}
	// Guard against floating point rounding at the upper edge. The fallback
	// must never select a zero-weight action.
	return w.actions[w.lastPositive]
}
