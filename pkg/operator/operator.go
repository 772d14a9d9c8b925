// Package operator identifies the warehouse operator performing an action.
//
// This package is used for:
// - Audit logging (who dispatched, who reopened an export, who force-deleted)
// - Attributing stock movements to the station that produced them
package operator

import (
	"context"
	"fmt"
)

// Operator represents the person or process performing an action.
type Operator struct {
	// Name is the operator's display name as entered at the station
	Name string `json:"name"`

	// Station is the scanning station or terminal identifier
	Station string `json:"station,omitempty"`
}

// String returns a string representation of the operator for logging
func (o *Operator) String() string {
	if o == nil {
		return "system"
	}
	if o.Station == "" {
		return o.Name
	}
	return fmt.Sprintf("%s @ %s", o.Name, o.Station)
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const operatorContextKey contextKey = "operator"

// FromContext retrieves the Operator from the context.
// Returns nil if no operator is present (e.g., background jobs).
func FromContext(ctx context.Context) *Operator {
	if ctx == nil {
		return nil
	}
	op, ok := ctx.Value(operatorContextKey).(*Operator)
	if !ok {
		return nil
	}
	return op
}

// WithOperator returns a new context with the Operator attached.
func WithOperator(ctx context.Context, o *Operator) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorContextKey, o)
}

// System returns an Operator representing the system itself.
// Use this for background jobs and scheduled tasks.
func System() *Operator {
	return &Operator{Name: "system"}
}

// IsSystem returns true if the operator represents the system.
func (o *Operator) IsSystem() bool {
	if o == nil {
		return true
	}
	return o.Name == "system" && o.Station == ""
}
