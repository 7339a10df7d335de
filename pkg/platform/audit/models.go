package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"propreg/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks
// can apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers committed registry state transitions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected attempts to mutate someone else's record.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers everything else.
	CategoryOperations EventCategory = "operations"
)

// Action names an audited registry action.
type Action string

const (
	ActionPropertyRegistered   Action = "property_registered"
	ActionRiskZoneUpdated      Action = "risk_zone_updated"
	ActionRiskZoneUpdateDenied Action = "risk_zone_update_denied"
)

var actionCategories = map[Action]EventCategory{
	ActionPropertyRegistered:   CategoryCompliance,
	ActionRiskZoneUpdated:      CategoryCompliance,
	ActionRiskZoneUpdateDenied: CategorySecurity,
}

// Category returns the category for a. Unknown actions are operational.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID         uuid.UUID          `json:"id"`
	Category   EventCategory      `json:"category"`
	Action     Action             `json:"action"`
	Timestamp  time.Time          `json:"timestamp"`
	PropertyID domain.PropertyID  `json:"property_id"`
	Actor      domain.Principal   `json:"actor"`
	Height     domain.BlockHeight `json:"height,omitempty"`
	Decision   string             `json:"decision,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Previous   string             `json:"previous,omitempty"`
	Current    string             `json:"current,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
}

// Sink accepts events for delivery. Kafka, logs and in-memory stores are sinks.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
