package response

type Location struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	CountryID   *int64   `json:"country_id,omitempty"`
	RegionID    *int64   `json:"region_id,omitempty"`
	SubregionID *int64   `json:"subregion_id,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
}

type LocationPage struct {
	Data     []Location `json:"data"`
	NextPage *int       `json:"next_page"`
}
