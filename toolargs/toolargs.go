// Package toolargs flattens JSON-RPC tool arguments into the string map the
// Tool contract consumes and provides the coercion helpers tools use to
// parse typed values back out.
//
// Flattening is lossy by design: arrays and objects are re-serialized to
// JSON text, scalars use their natural string form. Tools recover what they
// need through the documented coercions below.
package toolargs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Flatten converts a raw JSON arguments object into a string-keyed,
// string-valued map. Null values are skipped; a missing or malformed
// arguments object yields an empty map.
func Flatten(raw json.RawMessage) map[string]string {
	params := make(map[string]string)
	if len(raw) == 0 {
		return params
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return params
	}

	for key, value := range args {
		switch v := value.(type) {
		case nil:
			// skip
		case string:
			params[key] = v
		case bool:
			params[key] = strconv.FormatBool(v)
		case float64:
			params[key] = formatNumber(v)
		default:
			// Arrays and objects round-trip as JSON text.
			if b, err := json.Marshal(v); err == nil {
				params[key] = string(b)
			}
		}
	}

	return params
}

// formatNumber renders integral values without a decimal point (1, not 1.0)
// and everything else in JSON's shortest form.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String returns the named argument or "" when absent.
func String(params map[string]string, name string) string {
	return params[name]
}

// Bool parses the named argument as a boolean. "true"/"1"/"yes" and
// "false"/"0"/"no" are accepted case-insensitively; anything else yields the
// supplied default.
func Bool(params map[string]string, name string, def bool) bool {
	value, ok := params[name]
	if !ok || value == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// Int parses the named argument as an integer. Integral floats are accepted
// ("1.0" yields 1) because JSON numbers may arrive in decimal form;
// non-integral or unparseable values yield the supplied default.
func Int(params map[string]string, name string, def int) int {
	value, ok := params[name]
	if !ok || value == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return def
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return def
	}
	return int(f)
}

// StringSlice parses the named argument as a list of strings. The value may
// be a JSON array of scalars or a comma-separated string; empty entries are
// dropped. A missing or empty argument yields nil.
func StringSlice(params map[string]string, name string) []string {
	value, ok := params[name]
	if !ok {
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if strings.HasPrefix(value, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(value), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, el := range arr {
				switch v := el.(type) {
				case string:
					out = append(out, v)
				case float64:
					out = append(out, formatNumber(v))
				case bool:
					out = append(out, strconv.FormatBool(v))
				}
			}
			return out
		}
		// Fall through to comma-separated parsing.
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
