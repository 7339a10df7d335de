package handler

import (
	"propreg/internal/property/models"
	dErrors "propreg/pkg/domain-errors"
)

// RegisterRequest is the HTTP request body for POST /properties.
// Fields are stored as given; the registry does not interpret them.
type RegisterRequest struct {
	Location         string `json:"location"`
	Size             uint64 `json:"size"`
	ConstructionType string `json:"construction_type"`
	RiskZone         string `json:"risk_zone"`
}

// Validate implements httputil.Validatable.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

func (r *RegisterRequest) Command() models.RegisterCommand {
	return models.RegisterCommand{
		Location:         r.Location,
		Size:             r.Size,
		ConstructionType: r.ConstructionType,
		RiskZone:         r.RiskZone,
	}
}

// UpdateRiskZoneRequest is the HTTP request body for PUT /properties/{id}/risk-zone.
// An empty zone is a valid value; an absent one is not.
type UpdateRiskZoneRequest struct {
	RiskZone *string `json:"risk_zone"`
}

func (r *UpdateRiskZoneRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.RiskZone == nil {
		return dErrors.New(dErrors.CodeValidation, "risk_zone is required")
	}
	return nil
}

// ParsedRiskZone returns the validated zone.
func (r *UpdateRiskZoneRequest) ParsedRiskZone() string {
	if r.RiskZone == nil {
		return ""
	}
	return *r.RiskZone
}
