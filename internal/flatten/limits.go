package flatten

import (
	"fmt"

	"github.com/starford/taxport/internal/models"
)

// Limits are the vendor caps a taxonomy must stay within.
type Limits struct {
	MaxTotalConcepts     int
	MaxConceptsPerScheme int
	MaxConceptSchemes    int
	MaxHierarchyDepth    int
}

// VendorLimits are the import limits published by the vendor (April 2025).
var VendorLimits = Limits{
	MaxTotalConcepts:     6000,
	MaxConceptsPerScheme: 2000,
	MaxConceptSchemes:    20,
	MaxHierarchyDepth:    5,
}

// Validate compares a flatten result against l. Every breach yields one
// warning; none of them is an error.
func Validate(r *Result, l Limits) []models.Warning {
	var out []models.Warning

	if n := len(r.Schemes); n > l.MaxConceptSchemes {
		out = append(out, limitWarning(models.LimitConceptSchemes, l.MaxConceptSchemes, n, "",
			fmt.Sprintf("%d concept schemes exceeds the limit of %d", n, l.MaxConceptSchemes)))
	}
	if n := r.Stats.TotalConcepts; n > l.MaxTotalConcepts {
		out = append(out, limitWarning(models.LimitTotalConcepts, l.MaxTotalConcepts, n, "",
			fmt.Sprintf("%d total concepts exceeds the limit of %d", n, l.MaxTotalConcepts)))
	}
	for _, sc := range r.Stats.ConceptsPerScheme {
		if sc.Count > l.MaxConceptsPerScheme {
			out = append(out, limitWarning(models.LimitConceptsPerScheme, l.MaxConceptsPerScheme, sc.Count, sc.SchemeID,
				fmt.Sprintf("concept scheme %q has %d concepts, exceeding the limit of %d", sc.SchemeID, sc.Count, l.MaxConceptsPerScheme)))
		}
	}
	if d := r.Stats.MaxDepth; d > l.MaxHierarchyDepth {
		out = append(out, limitWarning(models.LimitHierarchyDepth, l.MaxHierarchyDepth, d, "",
			fmt.Sprintf("maximum hierarchy depth %d exceeds the limit of %d", d, l.MaxHierarchyDepth)))
	}
	return out
}

func limitWarning(code string, limit, actual int, schemeID, msg string) models.Warning {
	return models.Warning{
		Kind:     models.WarningKindLimitExceeded,
		Code:     code,
		Limit:    limit,
		Actual:   actual,
		SchemeID: schemeID,
		Message:  msg,
	}
}
