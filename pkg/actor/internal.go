package actor

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mocknest/mocknest/pkg/endpoint"
	"github.com/mocknest/mocknest/pkg/httputil"
	"github.com/mocknest/mocknest/pkg/requestlog"
	"github.com/mocknest/mocknest/pkg/tier"
)

// InternalAuthHeader carries the shared credential on internal calls.
const InternalAuthHeader = "X-Internal-Auth"

// serveInternal handles the trusted configuration surface. Unauthorized
// calls are rejected before any routing: no log entry, no side effects.
func (a *Actor) serveInternal(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		httputil.WriteUnauthorized(w, "invalid internal credential")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, internalPrefix)
	switch {
	case rest == "config":
		a.handleConfig(w, r)
	case rest == "endpoints":
		a.handleEndpoints(w, r)
	case strings.HasPrefix(rest, "endpoints/"):
		a.handleEndpointDelete(w, r, strings.TrimPrefix(rest, "endpoints/"))
	case rest == "logs":
		a.handleLogs(w, r)
	default:
		httputil.WriteNotFound(w, "NOT_FOUND", "unknown internal path")
	}
}

func (a *Actor) authorized(r *http.Request) bool {
	if a.secret == "" {
		return false
	}
	given := r.Header.Get(InternalAuthHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(a.secret)) == 1
}

// handleConfig reads or replaces the effective tier configuration.
func (a *Actor) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		_, cfg := a.snapshot()
		httputil.WriteData(w, http.StatusOK, cfg)

	case http.MethodPut:
		var req tier.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteBadRequest(w, "INVALID_BODY", "malformed config request")
			return
		}

		a.mu.Lock()
		resolved, err := req.Resolve(a.cfg)
		if err != nil {
			a.mu.Unlock()
			httputil.WriteBadRequest(w, "INVALID_TIER", err.Error())
			return
		}
		if err := a.store.SaveConfig(resolved); err != nil {
			a.mu.Unlock()
			a.log.Error("config save failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "could not persist config")
			return
		}
		a.cfg = resolved
		a.mu.Unlock()

		a.log.Info("config updated", "maxRequestSize", resolved.MaxRequestSize)
		httputil.WriteData(w, http.StatusOK, resolved)

	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or PUT")
	}
}

// handleEndpoints replaces the full endpoint+rule set. The external CRUD
// collaborator owns the definitions; the actor only validates and swaps.
func (a *Actor) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use PUT")
		return
	}

	var set endpoint.Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		httputil.WriteBadRequest(w, "INVALID_BODY", "malformed endpoint set")
		return
	}
	if err := set.Validate(); err != nil {
		httputil.WriteBadRequest(w, "INVALID_SET", err.Error())
		return
	}

	a.mu.Lock()
	if err := a.store.ReplaceSet(&set); err != nil {
		a.mu.Unlock()
		a.log.Error("set replace failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "could not persist endpoint set")
		return
	}
	a.set = &set
	a.mu.Unlock()

	// A full replace starts rate accounting over; stale windows for
	// removed endpoints go with it.
	a.rates.Reset()

	a.log.Info("endpoint set replaced", "endpoints", len(set.Endpoints), "rules", len(set.Rules))
	httputil.WriteData(w, http.StatusOK, map[string]int{
		"endpoints": len(set.Endpoints),
		"rules":     len(set.Rules),
	})
}

// handleEndpointDelete removes one endpoint and its rules.
func (a *Actor) handleEndpointDelete(w http.ResponseWriter, r *http.Request, endpointID string) {
	if r.Method != http.MethodDelete {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use DELETE")
		return
	}
	if endpointID == "" {
		httputil.WriteBadRequest(w, "INVALID_ID", "missing endpoint id")
		return
	}

	a.mu.Lock()
	deleted, err := a.store.DeleteEndpoint(endpointID)
	if err != nil {
		a.mu.Unlock()
		a.log.Error("endpoint delete failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "could not delete endpoint")
		return
	}
	if deleted {
		a.set = withoutEndpoint(a.set, endpointID)
	}
	a.mu.Unlock()

	if !deleted {
		httputil.WriteNotFound(w, "NOT_FOUND", "no such endpoint")
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"deleted": endpointID})
}

// handleLogs serves bounded history reads and the clear-all operation.
func (a *Actor) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := requestlog.Query{
			EndpointID: r.URL.Query().Get("endpointId"),
			BeforeID:   r.URL.Query().Get("before"),
			Limit:      requestlog.HistoryCap,
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httputil.WriteBadRequest(w, "INVALID_LIMIT", "limit must be a positive integer")
				return
			}
			if n > requestlog.HistoryCap {
				n = requestlog.HistoryCap
			}
			q.Limit = n
		}
		entries, err := a.store.List(q)
		if err != nil {
			a.log.Error("log list failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "could not read logs")
			return
		}
		if entries == nil {
			entries = []*requestlog.Entry{}
		}
		httputil.WriteData(w, http.StatusOK, entries)

	case http.MethodDelete:
		if err := a.store.Clear(); err != nil {
			a.log.Error("log clear failed", "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "could not clear logs")
			return
		}
		httputil.WriteData(w, http.StatusOK, map[string]bool{"cleared": true})

	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET or DELETE")
	}
}

// pruneRetention drops log entries older than the tier's retention window.
func (a *Actor) pruneRetention() (int, error) {
	_, cfg := a.snapshot()
	if cfg.LogRetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.LogRetentionDays)
	return a.store.Prune(cutoff)
}

// withoutEndpoint returns a copy of the set minus one endpoint and its
// rules. The old set may still be visible to in-flight requests.
func withoutEndpoint(set *endpoint.Set, endpointID string) *endpoint.Set {
	out := &endpoint.Set{}
	for _, ep := range set.Endpoints {
		if ep.ID != endpointID {
			out.Endpoints = append(out.Endpoints, ep)
		}
	}
	for _, rule := range set.Rules {
		if rule.EndpointID != endpointID {
			out.Rules = append(out.Rules, rule)
		}
	}
	return out
}
