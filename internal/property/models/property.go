package models

import (
	"propreg/pkg/domain"
	dErrors "propreg/pkg/domain-errors"
)

// Property is one registered property record.
//
// Invariants:
//   - ID is assigned by the registry, dense from 1, never reused
//   - Owner and RegistrationHeight are immutable after registration
//   - RiskZone is the only mutable field and only the owner may change it
//
// Field contents are not validated: the registry accepts whatever the caller
// registers.
type Property struct {
	ID                 domain.PropertyID  `json:"id"`
	Owner              domain.Principal   `json:"owner"`
	Location           string             `json:"location"`
	Size               uint64             `json:"size"`
	ConstructionType   string             `json:"construction_type"`
	RiskZone           string             `json:"risk_zone"`
	RegistrationHeight domain.BlockHeight `json:"registration_height"`
}

// RegisterCommand carries the caller-supplied fields of a registration.
type RegisterCommand struct {
	Location         string
	Size             uint64
	ConstructionType string
	RiskZone         string
}

// NewProperty builds an unnumbered record; the store assigns the ID.
func NewProperty(owner domain.Principal, cmd RegisterCommand, height domain.BlockHeight) *Property {
	return &Property{
		Owner:              owner,
		Location:           cmd.Location,
		Size:               cmd.Size,
		ConstructionType:   cmd.ConstructionType,
		RiskZone:           cmd.RiskZone,
		RegistrationHeight: height,
	}
}

// IsOwnedBy reports whether caller owns the property.
func (p *Property) IsOwnedBy(caller domain.Principal) bool {
	return p.Owner == caller
}

// CanUpdateRiskZone checks that caller may reclassify the property.
// Use with ApplyRiskZone in Execute callbacks.
func (p *Property) CanUpdateRiskZone(caller domain.Principal) error {
	if !p.IsOwnedBy(caller) {
		return dErrors.New(dErrors.CodeForbidden, "caller is not the property owner")
	}
	return nil
}

// ApplyRiskZone overwrites the risk zone. Call CanUpdateRiskZone first.
func (p *Property) ApplyRiskZone(zone string) {
	p.RiskZone = zone
}

// Clone returns a copy detached from store-owned memory.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
