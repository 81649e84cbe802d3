package get

import (
	"context"
	"fmt"
	"net/http"

	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/internal/olx/pkg/clients"
)

type LocationService struct {
	client *clients.OlxClient
}

func NewLocationService(client *clients.OlxClient) *LocationService {
	return &LocationService{client: client}
}

// FetchAll pulls the complete location list; it is refreshed wholesale, the
// sync layer decides what to keep.
func (s *LocationService) FetchAll(ctx context.Context, shopID int64) ([]response.Location, error) {
	var locations []response.Location
	page := 1
	for {
		endpoint := "/locations"
		if page > 1 {
			endpoint = fmt.Sprintf("/locations?page=%d", page)
		}
		var pageResp response.LocationPage
		if err := s.client.Do(ctx, shopID, http.MethodGet, endpoint, nil, &pageResp); err != nil {
			return nil, fmt.Errorf("fetching locations page %d: %w", page, err)
		}
		locations = append(locations, pageResp.Data...)
		if pageResp.NextPage == nil {
			return locations, nil
		}
		page = *pageResp.NextPage
	}
}
