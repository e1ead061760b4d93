package product

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is an in-memory product collection seeded with a sample catalog.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[string]Product
	now   func() time.Time
}

// NewStore builds a store pre-loaded with the sample catalog.
func NewStore() *Store {
	s := &Store{
		items: make(map[string]Product),
		now:   time.Now,
	}
	s.seed()
	return s
}

func (s *Store) seed() {
	seeds := []Product{
		{ID: "prod-001", Name: "Wireless Mouse", Description: "Ergonomic wireless mouse with USB-C", Price: 29.99, Category: "Electronics"},
		{ID: "prod-002", Name: "Mechanical Keyboard", Description: "Cherry MX Blue switches, RGB backlit", Price: 89.99, Category: "Electronics"},
		{ID: "prod-003", Name: "USB-C Hub", Description: "7-in-1 USB-C hub with HDMI and Ethernet", Price: 45.00, Category: "Accessories"},
		{ID: "prod-004", Name: "Monitor Stand", Description: "Adjustable aluminum monitor stand", Price: 59.99, Category: "Furniture"},
		{ID: "prod-005", Name: "Desk Lamp", Description: "LED desk lamp with wireless charging base", Price: 39.99, Category: "Lighting"},
	}
	for _, p := range seeds {
		p.CreatedAt = s.now().UTC()
		s.items[p.ID] = p
	}
}

// List returns every product sorted by id.
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get looks a product up by id.
func (s *Store) Get(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.items[id]
	return p, ok
}

// Create validates the product and stores it under a freshly generated id,
// ignoring any id the caller supplied.
func (s *Store) Create(p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	p.ID = "prod-" + uuid.New().String()[:8]
	p.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.items[p.ID] = p
	s.mu.Unlock()
	return p, nil
}

// Delete removes a product, returning it when it existed.
func (s *Store) Delete(id string) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	return p, ok
}

// SearchByCategory returns products whose category matches
// case-insensitively, sorted by id.
func (s *Store) SearchByCategory(category string) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0)
	for _, p := range s.items {
		if p.Category != "" && strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
