package actor

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mocknest/mocknest/internal/match"
	"github.com/mocknest/mocknest/pkg/endpoint"
	"github.com/mocknest/mocknest/pkg/httputil"
	"github.com/mocknest/mocknest/pkg/hub"
	"github.com/mocknest/mocknest/pkg/limiter"
	"github.com/mocknest/mocknest/pkg/logging"
	"github.com/mocknest/mocknest/pkg/requestlog"
	"github.com/mocknest/mocknest/pkg/tier"
)

// Machine-readable error codes returned to mock callers.
const (
	CodeNoMatch         = "NO_MATCH"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
	CodeRateLimited     = "RATE_LIMITED"
)

// maxBodyRead caps how many body bytes the actor will ever read, slightly
// above the largest tier's MaxRequestSize so an over-limit body still
// reports its true size.
const maxBodyRead = 8 * 1024 * 1024

// internalPrefix marks the trusted configuration surface. Paths under it
// are never mock traffic.
const internalPrefix = "/__internal/"

// Store is the durable state contract an actor needs from its tenant
// store. *storage.TenantStore satisfies it.
type Store interface {
	requestlog.Store

	LoadConfig() (tier.Config, bool, error)
	SaveConfig(cfg tier.Config) error
	LoadSet() (*endpoint.Set, error)
	ReplaceSet(set *endpoint.Set) error
	DeleteEndpoint(endpointID string) (bool, error)
	Close() error
}

// Config configures a single Actor.
type Config struct {
	// Tenant is the subdomain label this actor serves.
	Tenant string

	// Store holds the tenant's durable state. Required.
	Store Store

	// InternalSecret gates the /__internal/ surface. Required.
	InternalSecret string

	// HubKeepAlive overrides the viewer keep-alive window; zero means
	// hub.DefaultKeepAlive.
	HubKeepAlive time.Duration

	// Logger receives operational events. Nil means discard.
	Logger *slog.Logger
}

// Actor serves one tenant: mock traffic, viewer connections, and the
// internal configuration surface.
type Actor struct {
	tenant string
	store  Store
	secret string
	hub    *hub.Hub
	rates  *limiter.RateLimiter
	log    *slog.Logger

	// mu guards the endpoint set and tier config. Requests hold the read
	// lock only long enough to snapshot; the delay sleep happens outside.
	mu  sync.RWMutex
	set *endpoint.Set
	cfg tier.Config

	lastActive atomic.Int64 // unix nanos

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// New warms an actor from its store: configuration defaults to the free
// tier when nothing has been saved, the endpoint set loads as-is, and
// log entries past the tier's retention window are pruned.
func New(cfg Config) (*Actor, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("tenant", cfg.Tenant)

	tierCfg, ok, err := cfg.Store.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		tierCfg = tier.Default()
	}
	set, err := cfg.Store.LoadSet()
	if err != nil {
		return nil, err
	}

	a := &Actor{
		tenant: cfg.Tenant,
		store:  cfg.Store,
		secret: cfg.InternalSecret,
		rates:  limiter.NewRateLimiter(),
		log:    log,
		set:    set,
		cfg:    tierCfg,
		sleep:  time.Sleep,
	}
	a.hub = hub.New(hub.Config{
		History:   cfg.Store,
		KeepAlive: cfg.HubKeepAlive,
		Logger:    log,
	})
	a.touch()

	if n, err := a.pruneRetention(); err != nil {
		log.Warn("retention prune failed", "error", err)
	} else if n > 0 {
		log.Debug("pruned expired log entries", "count", n)
	}
	return a, nil
}

// Tenant returns the tenant label this actor serves.
func (a *Actor) Tenant() string {
	return a.tenant
}

// LastActive returns the time of the last request or viewer upgrade.
func (a *Actor) LastActive() time.Time {
	return time.Unix(0, a.lastActive.Load())
}

// IdleFor reports how long the actor has been without traffic, treating
// live viewers as activity.
func (a *Actor) IdleFor() time.Duration {
	if a.hub.ViewerCount() > 0 {
		return 0
	}
	return time.Since(a.LastActive())
}

// Close shuts the viewer hub and the tenant store. The actor must not
// serve requests afterwards.
func (a *Actor) Close() error {
	a.hub.Close()
	return a.store.Close()
}

func (a *Actor) touch() {
	a.lastActive.Store(time.Now().UnixNano())
}

// snapshot returns the current endpoint set and tier config without
// holding the lock across request handling.
func (a *Actor) snapshot() (*endpoint.Set, tier.Config) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set, a.cfg
}

// ServeHTTP routes one request: internal surface, viewer upgrade, or mock
// traffic.
func (a *Actor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.touch()

	if strings.HasPrefix(r.URL.Path, internalPrefix) {
		a.serveInternal(w, r)
		return
	}
	if isWebSocketUpgrade(r) {
		if err := a.hub.HandleUpgrade(w, r); err != nil && !errors.Is(err, hub.ErrClosed) {
			a.log.Debug("viewer upgrade failed", "error", err)
		}
		return
	}
	a.serveMock(w, r)
}

// serveMock runs the per-request pipeline: size, match, rate, log +
// broadcast, delay, respond. Every branch logs and broadcasts exactly one
// entry before writing its response.
func (a *Actor) serveMock(w http.ResponseWriter, r *http.Request) {
	set, cfg := a.snapshot()

	entry := newEntry(r)

	// Declared size first: a Content-Length past the ceiling is rejected
	// without reading the body.
	if err := limiter.CheckDeclaredSize(r.ContentLength, cfg.MaxRequestSize); err != nil {
		a.rejectSize(w, entry, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyRead))
	if err != nil {
		a.log.Debug("body read failed", "error", err)
		body = nil
	}
	entry.Body = string(body)
	entry.BodySize = len(body)

	if err := limiter.CheckBodySize(int64(len(body)), cfg.MaxRequestSize); err != nil {
		a.rejectSize(w, entry, err)
		return
	}

	result := match.Match(set, r, body)
	if !result.Matched() {
		entry.ResponseStatus = http.StatusNotFound
		a.record(entry)
		httputil.WriteNotFound(w, CodeNoMatch, "no endpoint matches "+r.Method+" "+r.URL.Path)
		return
	}

	entry.EndpointID = result.Endpoint.ID
	if result.Rule != nil {
		entry.RuleID = result.Rule.ID
	}

	limit := cfg.EndpointRateLimit(result.Endpoint.RateLimit)
	if err := a.rates.Allow(result.Endpoint.ID, limit); err != nil {
		var rateErr *limiter.RateLimitedError
		entry.ResponseStatus = http.StatusTooManyRequests
		a.record(entry)
		if errors.As(err, &rateErr) {
			httputil.WriteErrorFields(w, http.StatusTooManyRequests, CodeRateLimited,
				"endpoint rate limit exceeded", map[string]any{"limit": rateErr.Limit})
		} else {
			httputil.WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "endpoint rate limit exceeded")
		}
		return
	}

	resp := result.Response
	entry.ResponseStatus = resp.StatusCode

	// Accounting is committed before the delay: the entry is visible to
	// viewers and the rate counter incremented while this request sleeps.
	a.record(entry)

	if delay := clampDelay(resp.DelayMs, cfg.MaxDelayMs); delay > 0 {
		a.sleep(delay)
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}

// rejectSize writes the 413 with the true observed (or declared) size.
func (a *Actor) rejectSize(w http.ResponseWriter, entry *requestlog.Entry, err error) {
	var sizeErr *limiter.SizeExceededError
	entry.ResponseStatus = http.StatusRequestEntityTooLarge
	a.record(entry)
	if errors.As(err, &sizeErr) {
		httputil.WriteErrorFields(w, http.StatusRequestEntityTooLarge, CodeRequestTooLarge,
			"request body exceeds the tier limit",
			map[string]any{"maxSize": sizeErr.MaxSize, "size": sizeErr.Size})
		return
	}
	httputil.WriteError(w, http.StatusRequestEntityTooLarge, CodeRequestTooLarge,
		"request body exceeds the tier limit")
}

// record appends the entry and fans it out. Append failures are logged
// but never fail the mock response; the broadcast still carries the entry.
func (a *Actor) record(entry *requestlog.Entry) {
	if err := a.store.Append(entry); err != nil {
		a.log.Error("log append failed", "error", err)
	}
	a.hub.Broadcast(entry)
}

func newEntry(r *http.Request) *requestlog.Entry {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	return &requestlog.Entry{
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     headers,
		RemoteAddr:  r.RemoteAddr,
		Timestamp:   time.Now(),
	}
}

func clampDelay(delayMs, maxDelayMs int) time.Duration {
	if delayMs <= 0 {
		return 0
	}
	if maxDelayMs > 0 && delayMs > maxDelayMs {
		delayMs = maxDelayMs
	}
	return time.Duration(delayMs) * time.Millisecond
}

func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") {
		return false
	}
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
