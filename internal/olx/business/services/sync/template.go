package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/olx/business/models/dto/request"
)

// TaxonomyResolver reads the locally cached taxonomy. Lookups return nil
// (not an error) when the external id is unknown locally, so callers can
// turn it into the "skipped, taxonomy not synced" outcome.
type TaxonomyResolver interface {
	CategoryByExternalID(ctx context.Context, externalID int64) (*models.OlxCategory, error)
	AttributesFor(ctx context.Context, categoryExternalID int64) ([]models.OlxCategoryAttribute, error)
	LocationByExternalID(ctx context.Context, externalID int64) (*models.OlxLocation, error)
}

// UnresolvedTaxonomyError flags a template or product pointing at a category
// or location the local cache does not hold. It is surfaced as "skipped",
// never silently dropped: the fix is syncing the taxonomy, not editing data.
type UnresolvedTaxonomyError struct {
	Kind       string
	ExternalID int64
}

func (e *UnresolvedTaxonomyError) Error() string {
	return fmt.Sprintf("%s %d is not present in the local taxonomy cache", e.Kind, e.ExternalID)
}

// RequiredAttributeError is the hard validation failure for a product that
// cannot fill an attribute the taxonomy marks required. The marketplace
// rejects incomplete payloads, so this never goes over the wire.
type RequiredAttributeError struct {
	Attribute string
}

func (e *RequiredAttributeError) Error() string {
	return fmt.Sprintf("required attribute %q could not be resolved for this product", e.Attribute)
}

// IsHardValidation reports whether the error is a payload problem the caller
// has to fix (missing taxonomy or an unfillable required attribute) rather
// than an infrastructure failure.
func IsHardValidation(err error) bool {
	var unresolved *UnresolvedTaxonomyError
	var required *RequiredAttributeError
	return errors.As(err, &unresolved) || errors.As(err, &required)
}

// buildPayload maps a product through its template onto the marketplace
// schema: template rules resolve each external attribute from a product
// column, a specs key or a static default, and template defaults fill the
// listing parameters.
func buildPayload(ctx context.Context, taxonomy TaxonomyResolver, product *models.Product, template *models.CategoryTemplate) (*request.CreateListingRequest, error) {
	category, err := taxonomy.CategoryByExternalID(ctx, template.CategoryExternalID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, &UnresolvedTaxonomyError{Kind: "category", ExternalID: template.CategoryExternalID}
	}

	payload := &request.CreateListingRequest{
		Title:       product.Title,
		Description: product.Description,
		Price:       product.FinalPrice,
		Currency:    product.Currency,
		CategoryID:  category.ExternalID,
		ListingType: template.ListingType,
		Condition:   template.Condition,
		SKU:         product.SKU,
		Images:      product.ImageURLs,
	}
	if category.SupportsBrand {
		payload.Brand = product.Brand
	}

	if template.UsesCoordinates() {
		payload.Lat = template.Lat
		payload.Lon = template.Lon
	} else if template.LocationExternalID != nil {
		location, err := taxonomy.LocationByExternalID(ctx, *template.LocationExternalID)
		if err != nil {
			return nil, err
		}
		if location == nil {
			return nil, &UnresolvedTaxonomyError{Kind: "location", ExternalID: *template.LocationExternalID}
		}
		payload.LocationID = &location.ExternalID
	}

	resolved := make(map[string]string, len(template.Rules))
	for _, rule := range template.Rules {
		if value, ok := resolveRule(product, rule); ok {
			resolved[rule.Attribute] = value
		}
	}

	schema, err := taxonomy.AttributesFor(ctx, template.CategoryExternalID)
	if err != nil {
		return nil, err
	}
	for _, attribute := range schema {
		value, ok := resolved[attribute.Name]
		if !ok || value == "" {
			if attribute.Required {
				return nil, &RequiredAttributeError{Attribute: attribute.Name}
			}
			continue
		}
		payload.Attributes = append(payload.Attributes, request.AttributeValue{
			Name:  attribute.Name,
			Value: value,
		})
	}

	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("listing payload invalid: %w", err)
	}
	return payload, nil
}

func resolveRule(product *models.Product, rule models.AttributeRule) (string, bool) {
	switch rule.Kind {
	case models.RuleStatic:
		return rule.Source, rule.Source != ""
	case models.RuleSpec:
		value, ok := product.Specs[rule.Source]
		return value, ok && value != ""
	case models.RuleColumn:
		value := columnValue(product, rule.Source)
		return value, value != ""
	default:
		return "", false
	}
}

func columnValue(product *models.Product, column string) string {
	switch column {
	case "title":
		return product.Title
	case "brand":
		return product.Brand
	case "category":
		return product.Category
	case "sku":
		return product.SKU
	case "description":
		return product.Description
	case "currency":
		return product.Currency
	case "price":
		return strconv.FormatFloat(product.Price, 'f', -1, 64)
	case "final_price":
		return strconv.FormatFloat(product.FinalPrice, 'f', -1, 64)
	case "stock":
		return strconv.Itoa(product.Stock)
	default:
		return ""
	}
}
