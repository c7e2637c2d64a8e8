// Package masking redacts credentials and personal data from audit metadata.
package masking

import "strings"

const maskToken = "****"

// sensitiveKeys name metadata fields whose values never reach the audit log
// in clear text. Matching ignores case.
var sensitiveKeys = map[string]struct{}{
	"password":       {},
	"token":          {},
	"otp":            {},
	"authority_data": {},
	"national_id":    {},
	"phone_number":   {},
}

// IsSensitive reports whether values stored under key must be masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskSecret keeps the last four characters of value. Values of four
// characters or fewer are masked entirely.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) <= 4 {
		return maskToken
	}
	return maskToken + string(runes[len(runes)-4:])
}

// Metadata returns a copy of input in which every value under a sensitive
// key is masked, at any depth. Blank keys are dropped.
func Metadata(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if IsSensitive(key) {
			out[key] = maskAll(value)
			continue
		}
		out[key] = walk(value)
	}
	return out
}

func walk(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return Metadata(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = walk(item)
		}
		return out
	default:
		return value
	}
}

// maskAll masks every string below a sensitive key. Numbers and booleans
// carry no secret and pass through.
func maskAll(value any) any {
	switch v := value.(type) {
	case string:
		return MaskSecret(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = maskAll(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskAll(item)
		}
		return out
	default:
		return value
	}
}
