// Package endpoint defines the mock endpoint and rule model for one tenant.
//
// Endpoints and rules are owned by the external CRUD API; the actor receives
// them as full-set replacements over the internal surface and only reads
// them afterwards.
package endpoint

import "time"

// DefaultStatusCode is used when an endpoint does not set a status.
const DefaultStatusCode = 200

// Endpoint is a configured path+method pair with a default mock response.
type Endpoint struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`

	// Path is a literal path with a leading slash. Matching is exact and
	// case-sensitive; there is no wildcard or path-parameter support.
	Path string `json:"path"`

	// Method is matched case-insensitively against the request method.
	Method string `json:"method"`

	// Default response fields. Body is opaque bytes unless ContentType
	// says otherwise.
	StatusCode  int    `json:"statusCode"`
	Body        string `json:"body"`
	ContentType string `json:"contentType,omitempty"`

	// DelayMs suspends the response before it is sent. Clamped to the
	// tier's MaxDelayMs at serve time.
	DelayMs int `json:"delayMs,omitempty"`

	// RateLimit is requests per minute; 0 means the tier default applies.
	RateLimit int `json:"rateLimit,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Rule is a conditional override of an endpoint's response. Rules are
// evaluated in ascending Priority order; the first rule whose conditions
// all hold wins.
type Rule struct {
	ID         string `json:"id"`
	EndpointID string `json:"endpointId"`
	Priority   int    `json:"priority"`

	Conditions Conditions `json:"conditions"`
	Response   Override   `json:"response"`
}

// ConditionOp is a predicate kind for header and query conditions.
type ConditionOp string

// Condition operators.
const (
	OpEquals  ConditionOp = "equals"
	OpPresent ConditionOp = "present"
	OpPattern ConditionOp = "pattern"
)

// Condition is a single predicate on a named header or query parameter.
type Condition struct {
	Name string `json:"name"`

	// Op defaults to equals when empty.
	Op ConditionOp `json:"op,omitempty"`

	// Value is the expected value for equals, or a wildcard pattern
	// (*-style) for pattern. Ignored for present.
	Value string `json:"value,omitempty"`
}

// BodyCondition is a predicate on the request body: a regex over the raw
// bytes and/or JSONPath equality checks on the parsed JSON body. Both must
// hold when both are set.
type BodyCondition struct {
	Pattern  string         `json:"pattern,omitempty"`
	JSONPath map[string]any `json:"jsonPath,omitempty"`
}

// Conditions groups every predicate on a rule. A rule matches only when
// all of them hold.
type Conditions struct {
	Headers []Condition    `json:"headers,omitempty"`
	Query   []Condition    `json:"query,omitempty"`
	Body    *BodyCondition `json:"body,omitempty"`

	// Expr is an optional expression evaluated against a request snapshot
	// (method, path, headers, query, body). It extends the fixed predicate
	// set for cases a single header/query/body check cannot express.
	Expr string `json:"expr,omitempty"`
}

// Override holds the response fields a rule replaces. A nil field falls
// back to the endpoint default.
type Override struct {
	StatusCode  *int    `json:"statusCode,omitempty"`
	Body        *string `json:"body,omitempty"`
	DelayMs     *int    `json:"delayMs,omitempty"`
	ContentType *string `json:"contentType,omitempty"`
}

// Set is the full endpoint and rule configuration of one tenant, as pushed
// by the CRUD collaborator.
type Set struct {
	Endpoints []*Endpoint `json:"endpoints"`
	Rules     []*Rule     `json:"rules"`
}

// RulesFor returns the rules belonging to an endpoint, in the order they
// appear in the set. Callers sort by priority before evaluation.
func (s *Set) RulesFor(endpointID string) []*Rule {
	var out []*Rule
	for _, r := range s.Rules {
		if r.EndpointID == endpointID {
			out = append(out, r)
		}
	}
	return out
}
