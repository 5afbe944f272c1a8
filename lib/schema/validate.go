// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/capsule-foundation/capsule/lib/canonical"
)

// dateTimePattern is the strict ISO-8601 UTC shape accepted by
// format: date-time. Offsets other than the literal Z are rejected;
// the protocol timestamps everything in UTC.
var dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// TimestampLayout is the time layout matching the date-time format.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Validate checks document against schema and returns a list of
// path-qualified human-readable issues. An empty list means the
// document is valid. Keywords outside the supported subset are
// ignored, never honored.
func Validate(document any, schema map[string]any) []string {
	return validateValue(document, schema, "")
}

// at qualifies an issue with its document path. The root path renders
// as "$" so root-level issues are still unambiguous.
func at(path, format string, args ...any) string {
	if path == "" {
		path = "$"
	}
	return path + ": " + fmt.Sprintf(format, args...)
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func validateValue(value any, schema map[string]any, path string) []string {
	var issues []string

	if typeName, ok := schema["type"].(string); ok {
		if issue := checkType(value, typeName, path); issue != "" {
			// A type mismatch makes the remaining keyword checks
			// meaningless noise; report it alone.
			return []string{issue}
		}
	}

	if constValue, ok := schema["const"]; ok {
		if !canonical.Equal(value, constValue) {
			issues = append(issues, at(path, "value %v does not equal required constant %v", value, constValue))
		}
	}

	if enumValues, ok := schema["enum"].([]any); ok {
		matched := false
		for _, candidate := range enumValues {
			if canonical.Equal(value, candidate) {
				matched = true
				break
			}
		}
		if !matched {
			issues = append(issues, at(path, "value %v is not one of the allowed values %v", value, enumValues))
		}
	}

	if pattern, ok := schema["pattern"].(string); ok {
		issues = append(issues, checkPattern(value, pattern, path)...)
	}

	if format, ok := schema["format"].(string); ok && format == "date-time" {
		issues = append(issues, checkDateTime(value, path)...)
	}

	if minimum, ok := numberKeyword(schema["minimum"]); ok {
		if number, isNumber := numberKeyword(value); isNumber && number < minimum {
			issues = append(issues, at(path, "value %v is below the minimum %v", value, minimum))
		}
	}

	if minItems, ok := numberKeyword(schema["minItems"]); ok {
		if array, isArray := value.([]any); isArray && float64(len(array)) < minItems {
			issues = append(issues, at(path, "array has %d items, want at least %d", len(array), int(minItems)))
		}
	}

	if object, isObject := value.(map[string]any); isObject {
		issues = append(issues, validateObject(object, schema, path)...)
	}

	if array, isArray := value.([]any); isArray {
		if itemSchema, ok := schema["items"].(map[string]any); ok {
			for index, element := range array {
				elementPath := fmt.Sprintf("%s[%d]", path, index)
				if path == "" {
					elementPath = fmt.Sprintf("[%d]", index)
				}
				issues = append(issues, validateValue(element, itemSchema, elementPath)...)
			}
		}
	}

	return issues
}

func validateObject(object map[string]any, schema map[string]any, path string) []string {
	var issues []string

	if required, ok := schema["required"].([]any); ok {
		for _, entry := range required {
			key, isString := entry.(string)
			if !isString {
				continue
			}
			if _, present := object[key]; !present {
				issues = append(issues, at(path, "missing required field %q", key))
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)

	if additional, ok := schema["additionalProperties"].(bool); ok && !additional {
		// Deterministic issue order for unlisted keys.
		keys := make([]string, 0, len(object))
		for key := range object {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, listed := properties[key]; !listed {
				issues = append(issues, at(path, "unexpected field %q", key))
			}
		}
	}

	for key, propertySchema := range properties {
		propertyValue, present := object[key]
		if !present {
			continue
		}
		if propertyMap, ok := propertySchema.(map[string]any); ok {
			issues = append(issues, validateValue(propertyValue, propertyMap, childPath(path, key))...)
		}
	}

	return issues
}

// checkType returns an issue string, or "" when value matches the
// named type. "object" excludes arrays; "integer" requires a whole
// number.
func checkType(value any, typeName, path string) string {
	switch typeName {
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return at(path, "expected an object, got %s", describeType(value))
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return at(path, "expected an array, got %s", describeType(value))
		}
	case "string":
		if _, ok := value.(string); !ok {
			return at(path, "expected a string, got %s", describeType(value))
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return at(path, "expected a boolean, got %s", describeType(value))
		}
	case "number":
		if _, ok := numberKeyword(value); !ok {
			return at(path, "expected a number, got %s", describeType(value))
		}
	case "integer":
		number, ok := numberKeyword(value)
		if !ok {
			return at(path, "expected an integer, got %s", describeType(value))
		}
		if number != math.Trunc(number) {
			return at(path, "expected an integer, got the fractional number %v", number)
		}
	default:
		return at(path, "schema names unknown type %q", typeName)
	}
	return ""
}

func checkPattern(value any, pattern, path string) []string {
	text, isString := value.(string)
	if !isString {
		return nil
	}
	expression, err := regexp.Compile(pattern)
	if err != nil {
		return []string{at(path, "schema pattern %q does not compile: %v", pattern, err)}
	}
	if !expression.MatchString(text) {
		return []string{at(path, "value %q does not match pattern %q", text, pattern)}
	}
	return nil
}

// checkDateTime enforces the strict UTC shape and then requires a
// real calendar instant (no month 13, no second 61).
func checkDateTime(value any, path string) []string {
	text, isString := value.(string)
	if !isString {
		return nil
	}
	if !dateTimePattern.MatchString(text) {
		return []string{at(path, "timestamp %q is not in strict ISO-8601 UTC form", text)}
	}
	if _, err := time.Parse(TimestampLayout, text); err != nil {
		return []string{at(path, "timestamp %q is not a valid calendar instant", text)}
	}
	return nil
}

// describeType names a document value's JSON type for issue messages.
func describeType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64, int, int64:
		return "a number"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// numberKeyword normalizes a schema keyword or document value to
// float64. JSON decoding yields float64; Go callers may supply ints.
func numberKeyword(value any) (float64, bool) {
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
