package products

import (
	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/pkg/pagination"
)

// Sort orders supported by the browse endpoint.
const (
	SortNewest  = "newest"
	SortLowest  = "lowest"
	SortHighest = "highest"
	SortRating  = "rating"
)

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Query     string           `json:"q,omitempty"`
	Category  string           `json:"category,omitempty"`
	PriceMin  *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax  *decimal.Decimal `json:"price_max,omitempty"`
	RatingMin *int             `json:"rating_min,omitempty"`
}

// ListInput captures the inputs needed to paginate/filter the catalog.
type ListInput struct {
	Filters    ListFilters
	Sort       string
	Pagination pagination.Params
}

// CategoryCount pairs a distinct category with how many products carry it.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}
