package handler

import (
	"propreg/internal/property/models"
	"propreg/pkg/domain"
)

// RegisterResponse is the HTTP response for POST /properties.
type RegisterResponse struct {
	ID domain.PropertyID `json:"id"`
}

// CountResponse is the HTTP response for GET /properties/count.
type CountResponse struct {
	Count domain.PropertyID `json:"count"`
}

// PropertyResponse is the HTTP response for GET /properties/{id}.
type PropertyResponse struct {
	ID                 domain.PropertyID  `json:"id"`
	Owner              domain.Principal   `json:"owner"`
	Location           string             `json:"location"`
	Size               uint64             `json:"size"`
	ConstructionType   string             `json:"construction_type"`
	RiskZone           string             `json:"risk_zone"`
	RegistrationHeight domain.BlockHeight `json:"registration_height"`
}

func FromProperty(p *models.Property) *PropertyResponse {
	return &PropertyResponse{
		ID:                 p.ID,
		Owner:              p.Owner,
		Location:           p.Location,
		Size:               p.Size,
		ConstructionType:   p.ConstructionType,
		RiskZone:           p.RiskZone,
		RegistrationHeight: p.RegistrationHeight,
	}
}
