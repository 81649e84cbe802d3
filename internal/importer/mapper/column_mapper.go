package mapper

import "strings"

// matchWeight is added to the confidence score for every header that hits a
// rule. Confidence is capped at 1.0.
const matchWeight = 0.15

type rule struct {
	keywords []string
	target   string
}

// rules are tested in order; first match wins for a header.
var rules = []rule{
	{[]string{"title", "name", "product"}, "title"},
	{[]string{"price", "cost", "amount"}, "price"},
	{[]string{"sku", "part", "pn", "code"}, "sku"},
	{[]string{"brand", "manufacturer", "make"}, "brand"},
	{[]string{"stock", "quantity", "qty"}, "stock"},
	{[]string{"image", "img", "photo", "picture"}, "image_urls"},
	{[]string{"category", "cat"}, "category"},
	{[]string{"desc", "description"}, "description"},
}

// Proposal is a suggested header-to-canonical-field mapping with an
// aggregate confidence in [0,1]. Pure data, no side effects.
type Proposal struct {
	Mapping    map[string]string
	Confidence float64
}

// ProposeMapping heuristically maps source headers to canonical product
// fields. Unmatched headers are left out of the mapping and fold into the
// specs blob downstream. The same header list always yields the same mapping
// and score.
//
// Known limitation: when two headers map to the same canonical field, the
// last header wins once the record is materialized; the proposal itself keeps
// both entries.
func ProposeMapping(headers []string) Proposal {
	mapping := make(map[string]string, len(headers))
	confidence := 0.0

	for _, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		if normalized == "" {
			continue
		}
		for _, r := range rules {
			if matchesRule(normalized, r.keywords) {
				mapping[header] = r.target
				confidence += matchWeight
				break
			}
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return Proposal{Mapping: mapping, Confidence: confidence}
}

func matchesRule(header string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(header, kw) {
			return true
		}
	}
	return false
}
