package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ValidationError aggregates every violation found while validating one set
// of tool parameters against a schema.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter validation failed: %s", strings.Join(e.Violations, "; "))
}

// Validate checks the given parameters against the schema. All violations are
// collected into a single ValidationError rather than failing on the first.
func (s *Schema) Validate(params map[string]any) error {
	var violations []string

	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			violations = append(violations, fmt.Sprintf("missing required field %q", name))
		}
	}

	// Walk parameters in sorted order so violation output is deterministic
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := s.Properties[name]
		if !ok {
			continue
		}
		violations = append(violations, validateProperty(name, prop, params[name])...)
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func validateProperty(name string, prop *Property, value any) []string {
	var violations []string

	if prop.Type != "" && !matchesType(prop.Type, value) {
		violations = append(violations,
			fmt.Sprintf("field %q must be of type %s", name, prop.Type))
		return violations
	}

	switch v := value.(type) {
	case string:
		if prop.Pattern != "" {
			re, err := regexp.Compile(prop.Pattern)
			if err != nil {
				violations = append(violations,
					fmt.Sprintf("field %q has an invalid pattern %q", name, prop.Pattern))
			} else if !re.MatchString(v) {
				violations = append(violations,
					fmt.Sprintf("field %q must match pattern %q", name, prop.Pattern))
			}
		}
		if len(prop.Enum) > 0 && !containsString(prop.Enum, v) {
			violations = append(violations,
				fmt.Sprintf("field %q must be one of [%s]", name, strings.Join(prop.Enum, ", ")))
		}
		if prop.MinLength != nil && len(v) < *prop.MinLength {
			violations = append(violations,
				fmt.Sprintf("field %q must be at least %d characters", name, *prop.MinLength))
		}
	case []any:
		if prop.MinItems != nil && len(v) < *prop.MinItems {
			violations = append(violations,
				fmt.Sprintf("field %q must contain at least %d items", name, *prop.MinItems))
		}
		if prop.Items != nil {
			for i, item := range v {
				violations = append(violations,
					validateProperty(fmt.Sprintf("%s[%d]", name, i), prop.Items, item)...)
			}
		}
	case map[string]any:
		for _, required := range prop.Required {
			if _, ok := v[required]; !ok {
				violations = append(violations,
					fmt.Sprintf("field %q is missing required field %q", name, required))
			}
		}
		for childName, childProp := range prop.Properties {
			if childValue, ok := v[childName]; ok {
				violations = append(violations,
					validateProperty(name+"."+childName, childProp, childValue)...)
			}
		}
	}

	if f, ok := asFloat(value); ok {
		if prop.Minimum != nil && f < *prop.Minimum {
			violations = append(violations,
				fmt.Sprintf("field %q must be >= %v", name, *prop.Minimum))
		}
		if prop.Maximum != nil && f > *prop.Maximum {
			violations = append(violations,
				fmt.Sprintf("field %q must be <= %v", name, *prop.Maximum))
		}
	}

	return violations
}

// matchesType reports whether a decoded JSON value matches a schema type.
// JSON numbers decode to float64, so "integer" additionally requires an
// integral value.
func matchesType(schemaType string, value any) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		return isNumber(value)
	case "integer":
		f, ok := asFloat(value)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func isNumber(value any) bool {
	_, ok := asFloat(value)
	return ok
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
