package product

import (
	"errors"
	"strings"
	"time"
)

// Product is the catalog resource managed by the API.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validation failures surfaced verbatim in API responses.
var (
	ErrBlankName     = errors.New("Product name cannot be blank")
	ErrNegativePrice = errors.New("Price cannot be negative")
)

// Validate checks the invariants enforced on create.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrBlankName
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}
