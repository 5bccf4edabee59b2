package stagedcontent

import (
	"fmt"
	"strconv"
	"strings"
)

// Bounds declares an inclusive numeric range for a form field.
type Bounds struct {
	Min float64
	Max float64
}

// Rules declares the fail-fast checks run before a submission issues any
// network call. A rules failure never reaches the orchestrator's upload
// steps.
type Rules struct {
	// RequiredFields must be present and non-blank in the form fields.
	RequiredFields []string

	// RequireAsset demands at least one staged asset (existing or pending).
	RequireAsset bool

	// NumericBounds constrains numeric fields to inclusive ranges.
	NumericBounds map[string]Bounds

	// RequiredSelections must be present and non-blank; used for category
	// and foreign-key pickers.
	RequiredSelections []string
}

// Validate checks the form against the rules. It returns a ValidationError
// for the first violation found.
func (r Rules) Validate(form *Form) error {
	fields := form.Fields()

	for _, field := range r.RequiredFields {
		if isBlank(fields[field]) {
			return &ValidationError{Field: field, Reason: "required"}
		}
	}

	for _, field := range r.RequiredSelections {
		if isBlank(fields[field]) {
			return &ValidationError{Field: field, Reason: "selection required"}
		}
	}

	if r.RequireAsset && len(form.Assets.Assets()) == 0 {
		return &ValidationError{Field: "images", Reason: "at least one image is required"}
	}

	for field, bounds := range r.NumericBounds {
		value, ok := numericValue(fields[field])
		if !ok {
			return &ValidationError{Field: field, Reason: "numeric value required"}
		}
		if value < bounds.Min || value > bounds.Max {
			return &ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("must be between %g and %g", bounds.Min, bounds.Max),
			}
		}
	}

	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
