package response

import "encoding/json"

// Category is one taxonomy node as the marketplace returns it. ParentID
// references another category by the marketplace's own id; a child may be
// paginated before its parent, so parent links can only be resolved after the
// whole tree is fetched.
type Category struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	ParentID   int64           `json:"parent_id"`
	Shipping   bool            `json:"shipping_available"`
	BrandField bool            `json:"brand_field"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type CategoryPage struct {
	Data     []Category `json:"data"`
	NextPage *int       `json:"next_page"`
}

// CategoryAttribute is one schema field of a category.
type CategoryAttribute struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	InputKind string   `json:"input_kind"`
	Required  bool     `json:"required"`
	Options   []string `json:"options,omitempty"`
}

type CategoryAttributePage struct {
	Data []CategoryAttribute `json:"data"`
}
