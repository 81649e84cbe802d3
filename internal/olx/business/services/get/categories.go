package get

import (
	"context"
	"fmt"
	"net/http"

	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/internal/olx/pkg/clients"
)

// CategoryService fetches the marketplace taxonomy: the category tree and
// per-category attribute schemas.
type CategoryService struct {
	client *clients.OlxClient
}

func NewCategoryService(client *clients.OlxClient) *CategoryService {
	return &CategoryService{client: client}
}

// FetchAll walks the paginated category listing until exhaustion. The whole
// tree is needed before parent links can be resolved, because a child may be
// paginated before its parent.
func (s *CategoryService) FetchAll(ctx context.Context, shopID int64) ([]response.Category, error) {
	var categories []response.Category
	page := 1
	for {
		endpoint := "/categories"
		if page > 1 {
			endpoint = fmt.Sprintf("/categories?page=%d", page)
		}
		var pageResp response.CategoryPage
		if err := s.client.Do(ctx, shopID, http.MethodGet, endpoint, nil, &pageResp); err != nil {
			return nil, fmt.Errorf("fetching categories page %d: %w", page, err)
		}
		categories = append(categories, pageResp.Data...)
		if pageResp.NextPage == nil {
			return categories, nil
		}
		page = *pageResp.NextPage
	}
}

// FetchAttributes returns the attribute schema of one category.
func (s *CategoryService) FetchAttributes(ctx context.Context, shopID, categoryExternalID int64) ([]response.CategoryAttribute, error) {
	endpoint := fmt.Sprintf("/categories/%d/attributes", categoryExternalID)
	var pageResp response.CategoryAttributePage
	if err := s.client.Do(ctx, shopID, http.MethodGet, endpoint, nil, &pageResp); err != nil {
		return nil, fmt.Errorf("fetching attributes of category %d: %w", categoryExternalID, err)
	}
	return pageResp.Data, nil
}
