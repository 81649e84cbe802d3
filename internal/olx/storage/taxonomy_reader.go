package storage

// TaxonomyReader combines the category and location lookups the sync engine
// resolves listing payloads against.
type TaxonomyReader struct {
	*CategoryRepository
	*LocationRepository
}

func NewTaxonomyReader(categories *CategoryRepository, locations *LocationRepository) *TaxonomyReader {
	return &TaxonomyReader{CategoryRepository: categories, LocationRepository: locations}
}
