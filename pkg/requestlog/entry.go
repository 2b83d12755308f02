// Package requestlog defines the request history model and store contract.
//
// Every inbound mock request produces exactly one entry, whether or not an
// endpoint matched, so tenants can see their own 404s, 413s, and 429s in
// the stream.
package requestlog

import "time"

// Entry captures one inbound request and the response it received.
// Entries are immutable once appended.
type Entry struct {
	// ID is a ULID: unique and lexicographically ordered by creation
	// time. Viewers dedup merged history and live streams by this id.
	ID string `json:"id"`

	// EndpointID is empty when no endpoint matched.
	EndpointID string `json:"endpointId,omitempty"`

	// RuleID is set when a rule override produced the response.
	RuleID string `json:"ruleId,omitempty"`

	Method      string `json:"method"`
	Path        string `json:"path"`
	QueryString string `json:"queryString,omitempty"`

	// Headers holds one value per header name; names keep their
	// canonical form, lookups are case-insensitive at capture time.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is empty when the request had none.
	Body     string `json:"body,omitempty"`
	BodySize int    `json:"bodySize"`

	RemoteAddr string `json:"remoteAddr,omitempty"`

	// ResponseStatus is the status actually returned, including 404/413/429.
	ResponseStatus int `json:"responseStatus"`

	// Timestamp is the request receipt time.
	Timestamp time.Time `json:"timestamp"`
}
