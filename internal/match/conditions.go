package match

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/mocknest/mocknest/pkg/endpoint"
)

// matchHeader evaluates a single header condition. Header names are
// case-insensitive per the HTTP spec.
func matchHeader(c endpoint.Condition, headers http.Header) bool {
	values := headers.Values(c.Name)
	switch c.Op {
	case endpoint.OpPresent:
		return len(values) > 0
	case endpoint.OpPattern:
		for _, v := range values {
			if matchWildcard(c.Value, v) {
				return true
			}
		}
		return false
	default: // equals
		return headers.Get(c.Name) == c.Value
	}
}

// matchQuery evaluates a single query parameter condition.
func matchQuery(c endpoint.Condition, params url.Values) bool {
	switch c.Op {
	case endpoint.OpPresent:
		return params.Has(c.Name)
	case endpoint.OpPattern:
		for _, v := range params[c.Name] {
			if matchWildcard(c.Value, v) {
				return true
			}
		}
		return false
	default: // equals
		return params.Get(c.Name) == c.Value
	}
}

// matchWildcard performs *-style pattern matching: prefix (v*), suffix
// (*v), contains (*v*), and exact when the pattern has no wildcard.
func matchWildcard(pattern, value string) bool {
	if !strings.Contains(pattern, "*") {
		return value == pattern
	}

	hasPrefix := strings.HasPrefix(pattern, "*")
	hasSuffix := strings.HasSuffix(pattern, "*")
	core := strings.Trim(pattern, "*")

	switch {
	case hasPrefix && hasSuffix:
		return strings.Contains(value, core)
	case hasSuffix:
		return strings.HasPrefix(value, core)
	case hasPrefix:
		return strings.HasSuffix(value, core)
	default:
		// A single interior wildcard: prefix*suffix.
		parts := strings.SplitN(pattern, "*", 2)
		return strings.HasPrefix(value, parts[0]) &&
			strings.HasSuffix(value[len(parts[0]):], parts[1])
	}
}
