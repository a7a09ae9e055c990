package query

import "strings"

// Kind classifies what the user is asking for across one or more properties.
type Kind string

const (
	// KindSingle is a valuation of one property.
	KindSingle Kind = "single"
	// KindMultiple is a joint valuation of properties sold together.
	KindMultiple Kind = "multiple"
	// KindCompare is a side-by-side comparison of properties.
	KindCompare Kind = "compare"
)

// ParseKind converts a free-form kind string into a Kind, defaulting based on
// the address count when the string is not one of the known kinds.
func ParseKind(s string, addressCount int) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSingle:
		return KindSingle
	case KindMultiple:
		return KindMultiple
	case KindCompare:
		return KindCompare
	}
	if addressCount > 1 {
		return KindMultiple
	}
	return KindSingle
}

// Request is a structured property query. Addresses and Kind determine cache
// identity; RawMessage is carried for logging and diagnostics only.
type Request struct {
	Addresses  []string `msgpack:"addresses" json:"addresses"`
	Kind       Kind     `msgpack:"kind" json:"kind"`
	RawMessage string   `msgpack:"raw_message,omitempty" json:"raw_message,omitempty"`
}

// Valuation is the concrete result envelope produced by the analysis pipeline
// and stored by the cache. All fields must stay serializable.
type Valuation struct {
	PropertyDetails      string  `msgpack:"property_details" json:"property_details"`
	ComparableSales      string  `msgpack:"comparable_sales" json:"comparable_sales"`
	NeighborhoodAnalysis string  `msgpack:"neighborhood_analysis" json:"neighborhood_analysis"`
	MarketAdjustments    string  `msgpack:"market_adjustments" json:"market_adjustments"`
	PriceAnalysis        string  `msgpack:"price_analysis" json:"price_analysis"`
	PriceRange           string  `msgpack:"price_range" json:"price_range"`
	FinalEstimate        string  `msgpack:"final_estimate" json:"final_estimate"`
	Confidence           float64 `msgpack:"confidence" json:"confidence"`
}
