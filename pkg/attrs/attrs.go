// Package attrs reads values back out of slog-style attribute lists.
package attrs

import (
	"fmt"
	"log/slog"
)

// Lookup finds key in a list shaped like the variadic args of slog.Logger.Info:
// alternating key/value pairs, optionally interleaved with slog.Attr values.
func Lookup(kv []any, key string) (any, bool) {
	for i := 0; i < len(kv); {
		switch k := kv[i].(type) {
		case slog.Attr:
			if k.Key == key {
				return k.Value.Any(), true
			}
			i++
		case string:
			if i+1 >= len(kv) {
				return nil, false
			}
			if k == key {
				return kv[i+1], true
			}
			i += 2
		default:
			i++
		}
	}
	return nil, false
}

// String renders the value for key as text. Missing keys yield "".
func String(kv []any, key string) string {
	v, ok := Lookup(kv, key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	default:
		return fmt.Sprint(t)
	}
}
