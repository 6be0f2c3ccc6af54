package domain

import (
	"strings"
	"time"
)

// Establishment is the relational master record of a bookable hotel or
// restaurant. The vector index stores a derived document per row.
type Establishment struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Type        EstablishmentCategory `json:"type"`
	City        string                `json:"city"`
	Address     string                `json:"address"`
	Description string                `json:"description"`
	Amenities   []string              `json:"amenities"`
	PriceMin    int                   `json:"price_min"`
	PriceMax    int                   `json:"price_max"`
	Rating      float64               `json:"rating"`
	Phone       string                `json:"phone"`
	Email       string                `json:"email"`
	Website     string                `json:"website"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// IndexDocument is what gets embedded and upserted into the vector store:
// free text to embed plus the metadata payload served back with search hits.
type IndexDocument struct {
	EstablishmentID string
	Content         string
	Metadata        map[string]any
}

// ToIndexDocument flattens the record into embeddable text and payload.
func (e Establishment) ToIndexDocument() IndexDocument {
	var b strings.Builder
	b.WriteString(e.Name)
	if e.Type != "" && e.Type != CategoryAll {
		b.WriteString(" " + strings.ToLower(string(e.Type)))
	}
	if e.City != "" {
		b.WriteString(" " + e.City)
	}
	if len(e.Amenities) > 0 {
		b.WriteString(" " + strings.Join(e.Amenities, " "))
	}
	if e.Description != "" {
		b.WriteString(" " + e.Description)
	}

	meta := map[string]any{
		"name": e.Name,
		"type": string(e.Type),
		"city": e.City,
	}
	if e.Address != "" {
		meta["address"] = e.Address
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if len(e.Amenities) > 0 {
		meta["amenities"] = e.Amenities
	}
	if e.PriceMax > 0 {
		meta["price_range"] = e.PriceMax
	}
	if e.Rating > 0 {
		meta["rating"] = e.Rating
	}
	if e.Phone != "" {
		meta["phone"] = e.Phone
	}
	if e.Email != "" {
		meta["email"] = e.Email
	}
	if e.Website != "" {
		meta["website"] = e.Website
	}

	return IndexDocument{
		EstablishmentID: e.ID,
		Content:         b.String(),
		Metadata:        meta,
	}
}

// IndexStats describes the vector catalog.
type IndexStats struct {
	TotalEstablishments int        `json:"total_establishments"`
	StrategiesAvailable []Strategy `json:"strategies_available"`
	DefaultStrategy     Strategy   `json:"default_strategy"`
}
