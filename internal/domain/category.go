package domain

// Category is a named grouping tickets can reference. Name uniqueness is not
// enforced; duplicates must not break lookup.
type Category struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// CategoryFallback is rendered when a ticket references a deleted category.
const CategoryFallback = "N/A"

// CategoryName resolves a category id to its display name, degrading to the
// fallback when the id is unknown. A dangling reference is never an error.
func CategoryName(categories []Category, id string) string {
	for _, cat := range categories {
		if cat.ID == id {
			return cat.Name
		}
	}
	return CategoryFallback
}
