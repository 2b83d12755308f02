// Package match selects the endpoint and rule for an inbound mock request.
package match

import (
	"net/http"
	"sort"
	"strings"

	"github.com/mocknest/mocknest/pkg/endpoint"
)

// Response is the effective response after merging a matched rule's
// overrides over the endpoint defaults.
type Response struct {
	StatusCode  int
	Body        string
	ContentType string
	DelayMs     int
}

// Result is the outcome of matching one request.
type Result struct {
	// Endpoint is nil when no endpoint matched (unknown path or method);
	// the caller answers 404 and logs the request with no endpoint id.
	Endpoint *endpoint.Endpoint

	// Rule is the winning rule, or nil when the endpoint defaults apply.
	Rule *endpoint.Rule

	// Response is meaningful only when Endpoint is non-nil.
	Response Response
}

// Matched reports whether an endpoint was found.
func (r Result) Matched() bool {
	return r.Endpoint != nil
}

// Match finds the endpoint for the request and evaluates its rules in
// ascending priority order. The first rule whose conditions all hold
// wins; ties on priority are broken by set order.
func Match(set *endpoint.Set, r *http.Request, body []byte) Result {
	ep := selectEndpoint(set, r.Method, r.URL.Path)
	if ep == nil {
		return Result{}
	}

	rules := set.RulesFor(ep.ID)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	for _, rule := range rules {
		if ruleMatches(rule, r, body) {
			return Result{
				Endpoint: ep,
				Rule:     rule,
				Response: merge(ep, rule),
			}
		}
	}

	return Result{Endpoint: ep, Response: defaults(ep)}
}

// selectEndpoint performs exact path matching (case-sensitive) and
// case-insensitive method matching. No wildcard or prefix fallback.
func selectEndpoint(set *endpoint.Set, method, path string) *endpoint.Endpoint {
	for _, ep := range set.Endpoints {
		if ep.Path == path && strings.EqualFold(ep.Method, method) {
			return ep
		}
	}
	return nil
}

// ruleMatches reports whether every condition on the rule holds.
func ruleMatches(rule *endpoint.Rule, r *http.Request, body []byte) bool {
	for _, c := range rule.Conditions.Headers {
		if !matchHeader(c, r.Header) {
			return false
		}
	}

	if len(rule.Conditions.Query) > 0 {
		q := r.URL.Query()
		for _, c := range rule.Conditions.Query {
			if !matchQuery(c, q) {
				return false
			}
		}
	}

	if b := rule.Conditions.Body; b != nil {
		if !matchBody(b, body) {
			return false
		}
	}

	if rule.Conditions.Expr != "" {
		if !matchExpr(rule.Conditions.Expr, r, body) {
			return false
		}
	}

	return true
}

// defaults builds the effective response from the endpoint alone.
func defaults(ep *endpoint.Endpoint) Response {
	status := ep.StatusCode
	if status == 0 {
		status = endpoint.DefaultStatusCode
	}
	return Response{
		StatusCode:  status,
		Body:        ep.Body,
		ContentType: ep.ContentType,
		DelayMs:     ep.DelayMs,
	}
}

// merge lays the rule's override fields over the endpoint defaults.
func merge(ep *endpoint.Endpoint, rule *endpoint.Rule) Response {
	out := defaults(ep)
	if v := rule.Response.StatusCode; v != nil {
		out.StatusCode = *v
	}
	if v := rule.Response.Body; v != nil {
		out.Body = *v
	}
	if v := rule.Response.DelayMs; v != nil {
		out.DelayMs = *v
	}
	if v := rule.Response.ContentType; v != nil {
		out.ContentType = *v
	}
	return out
}
