package tracker

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultCategoryColor is used when a category is created without one.
const DefaultCategoryColor = "#007bff"

// Category groups projects for display. Projects reference categories weakly
// by id; the registry keeps those references valid.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewCategory(name, description, color string) *Category {
	if color == "" {
		color = DefaultCategoryColor
	}
	return &Category{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: description,
		Color:       color,
		CreatedAt:   time.Now(),
	}
}
