package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// decoder reads typed values out of a merged settings map. The *Or
// methods only return the default for ErrSettingNotFound silently; type
// errors are recorded and also return the default.
type decoder struct {
	values map[string]any
	errors map[string]error
}

func (d *decoder) get(path string) (any, error) {
	v, ok := getPath(d.values, path)
	if !ok {
		return nil, ErrSettingNotFound
	}
	return v, nil
}

func (d *decoder) stringOr(path string, defaultValue string) string {
	v, err := d.get(path)
	if err != nil {
		return defaultValue
	}
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	default:
		d.record(path, &TypeError{Path: path, Expected: "string", Actual: typeName(v)})
		return defaultValue
	}
}

func (d *decoder) boolOr(path string, defaultValue bool) bool {
	v, err := d.get(path)
	if err != nil {
		return defaultValue
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "true", "yes", "on", "1":
			return true
		case "false", "no", "off", "0":
			return false
		}
	}
	d.record(path, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)})
	return defaultValue
}

// durationOr accepts a duration string or a number of milliseconds. An
// empty string is the zero duration.
func (d *decoder) durationOr(path string, defaultValue time.Duration) time.Duration {
	v, err := d.get(path)
	if err != nil {
		return defaultValue
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return 0
		}
		if dur, err := time.ParseDuration(val); err == nil && dur >= 0 {
			return dur
		}
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	case int64:
		if val >= 0 {
			return time.Duration(val) * time.Millisecond
		}
	case float64:
		if val >= 0 {
			return time.Duration(val * float64(time.Millisecond))
		}
	}
	d.record(path, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)})
	return defaultValue
}

// stringSliceOr accepts a list of strings or one string holding a
// path-list-separated list.
func (d *decoder) stringSliceOr(path string, defaultValue []string) []string {
	v, err := d.get(path)
	if err != nil {
		return append([]string(nil), defaultValue...)
	}
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				d.record(path, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)})
				return append([]string(nil), defaultValue...)
			}
			result = append(result, s)
		}
		return result
	case string:
		if val == "" {
			return nil
		}
		return filepath.SplitList(val)
	default:
		d.record(path, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)})
		return append([]string(nil), defaultValue...)
	}
}

// stringMap returns the string values of a table. Non-string entries are
// recorded and skipped.
func (d *decoder) stringMap(path string) map[string]string {
	result := make(map[string]string)
	v, err := d.get(path)
	if err != nil {
		return result
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.record(path, &TypeError{Path: path, Expected: "table", Actual: typeName(v)})
		return result
	}
	for key, item := range m {
		s, ok := item.(string)
		if !ok {
			d.record(path+"."+key, &TypeError{Path: path + "." + key, Expected: "string", Actual: typeName(item)})
			continue
		}
		result[key] = s
	}
	return result
}

// record keeps the first error for each path to preserve the original
// cause.
func (d *decoder) record(path string, err error) {
	if d.errors == nil {
		d.errors = make(map[string]error)
	}
	if _, exists := d.errors[path]; !exists {
		d.errors[path] = err
	}
}

// getPath retrieves a value from a nested map using a dot-separated path.
func getPath(m map[string]any, path string) (any, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}

	current := any(m)
	for _, part := range parts {
		cm, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = cm[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// splitPath splits a dot-separated path into parts, skipping empty ones.
func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, ".") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	case time.Time:
		return "datetime"
	default:
		return "unknown"
	}
}
