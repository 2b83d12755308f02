package endpoint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/ohler55/ojg/jp"
)

// ValidationError reports an invalid field on an endpoint or rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// validMethods are the HTTP methods an endpoint may declare.
var validMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Validate checks the endpoint definition.
func (e *Endpoint) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if !strings.HasPrefix(e.Path, "/") {
		return &ValidationError{Field: "path", Message: "path must start with /"}
	}
	if !validMethods[strings.ToUpper(e.Method)] {
		return &ValidationError{Field: "method", Message: fmt.Sprintf("unsupported method %q", e.Method)}
	}
	if e.StatusCode != 0 && (e.StatusCode < 100 || e.StatusCode > 599) {
		return &ValidationError{Field: "statusCode", Message: "status code must be in 100..599"}
	}
	if e.DelayMs < 0 {
		return &ValidationError{Field: "delayMs", Message: "delay cannot be negative"}
	}
	if e.RateLimit < 0 {
		return &ValidationError{Field: "rateLimit", Message: "rate limit cannot be negative"}
	}
	return nil
}

// Validate checks the rule definition, including that every pattern,
// JSONPath, and expression compiles. Invalid rules are rejected at push
// time rather than silently never matching.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if r.EndpointID == "" {
		return &ValidationError{Field: "endpointId", Message: "endpointId is required"}
	}

	for i, c := range r.Conditions.Headers {
		if err := c.validate(fmt.Sprintf("conditions.headers[%d]", i)); err != nil {
			return err
		}
	}
	for i, c := range r.Conditions.Query {
		if err := c.validate(fmt.Sprintf("conditions.query[%d]", i)); err != nil {
			return err
		}
	}

	if b := r.Conditions.Body; b != nil {
		if b.Pattern != "" {
			if _, err := regexp.Compile(b.Pattern); err != nil {
				return &ValidationError{Field: "conditions.body.pattern", Message: err.Error()}
			}
		}
		for path := range b.JSONPath {
			if _, err := jp.ParseString(path); err != nil {
				return &ValidationError{Field: "conditions.body.jsonPath", Message: fmt.Sprintf("invalid JSONPath %q: %v", path, err)}
			}
		}
	}

	if r.Conditions.Expr != "" {
		if _, err := expr.Compile(r.Conditions.Expr, expr.AsBool()); err != nil {
			return &ValidationError{Field: "conditions.expr", Message: err.Error()}
		}
	}

	if sc := r.Response.StatusCode; sc != nil && (*sc < 100 || *sc > 599) {
		return &ValidationError{Field: "response.statusCode", Message: "status code must be in 100..599"}
	}
	if d := r.Response.DelayMs; d != nil && *d < 0 {
		return &ValidationError{Field: "response.delayMs", Message: "delay cannot be negative"}
	}
	return nil
}

func (c Condition) validate(field string) error {
	if c.Name == "" {
		return &ValidationError{Field: field + ".name", Message: "name is required"}
	}
	switch c.Op {
	case "", OpEquals, OpPresent, OpPattern:
	default:
		return &ValidationError{Field: field + ".op", Message: fmt.Sprintf("unknown op %q", c.Op)}
	}
	if c.Op == OpPattern && c.Value == "" {
		return &ValidationError{Field: field + ".value", Message: "pattern op requires a value"}
	}
	return nil
}

// Validate checks a full set: every endpoint and rule is valid, rules
// reference endpoints in the set, and no two endpoints claim the same
// path+method pair.
func (s *Set) Validate() error {
	byID := make(map[string]bool, len(s.Endpoints))
	routes := make(map[string]string)

	for _, e := range s.Endpoints {
		if err := e.Validate(); err != nil {
			return err
		}
		if byID[e.ID] {
			return &ValidationError{Field: "endpoints", Message: fmt.Sprintf("duplicate endpoint id %q", e.ID)}
		}
		byID[e.ID] = true

		route := strings.ToUpper(e.Method) + " " + e.Path
		if other, taken := routes[route]; taken {
			return &ValidationError{Field: "endpoints", Message: fmt.Sprintf("endpoints %q and %q both claim %s", other, e.ID, route)}
		}
		routes[route] = e.ID
	}

	for _, r := range s.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if !byID[r.EndpointID] {
			return &ValidationError{Field: "rules", Message: fmt.Sprintf("rule %q references unknown endpoint %q", r.ID, r.EndpointID)}
		}
	}
	return nil
}
