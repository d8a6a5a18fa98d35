package audit

import "strings"

// Mask replaces the value of every sensitive field.
const Mask = "******"

var sensitiveKeys = map[string]struct{}{
	"password":              {},
	"password_confirm":      {},
	"password_confirmation": {},
	"password_hash":         {},
	"token":                 {},
	"secret":                {},
	"api_key":               {},
	"credit_card":           {},
}

// IsSensitive reports whether a field name is masked before persistence.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Redact returns a copy of data with sensitive top-level keys masked.
// Nested values are copied as-is.
func Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		if IsSensitive(key) {
			out[key] = Mask
			continue
		}
		out[key] = value
	}
	return out
}
