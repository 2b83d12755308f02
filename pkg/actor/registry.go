package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/mocknest/mocknest/internal/storage"
	"github.com/mocknest/mocknest/pkg/logging"
)

// DefaultIdleTTL is how long an actor may sit without traffic or viewers
// before the registry evicts it.
const DefaultIdleTTL = 5 * time.Minute

// ErrInvalidTenant rejects tenant labels that are not DNS labels.
var ErrInvalidTenant = errors.New("invalid tenant label")

// ErrRegistryClosed indicates the registry has been shut down.
var ErrRegistryClosed = errors.New("registry closed")

// tenantPattern matches a lowercase DNS label, which is also what keeps
// the tenant's database filename safe.
var tenantPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// DataDir holds one SQLite file per tenant.
	DataDir string

	// InternalSecret gates every actor's /__internal/ surface.
	InternalSecret string

	// IdleTTL evicts actors without traffic; zero means DefaultIdleTTL.
	IdleTTL time.Duration

	// HubKeepAlive is passed through to each actor's viewer hub.
	HubKeepAlive time.Duration

	// Logger receives operational events. Nil means discard.
	Logger *slog.Logger
}

// Registry owns the live actors, one per tenant. Actors are created
// lazily on first traffic and evicted after IdleTTL; their durable state
// survives in the tenant store across evictions.
type Registry struct {
	cfg RegistryConfig
	log *slog.Logger

	mu     sync.Mutex
	actors map[string]*Actor
	closed bool

	done chan struct{}
}

// NewRegistry creates a Registry and starts its eviction sweep.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	r := &Registry{
		cfg:    cfg,
		log:    log,
		actors: make(map[string]*Actor),
		done:   make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Get returns the tenant's actor, creating and warming it when absent.
func (r *Registry) Get(tenant string) (*Actor, error) {
	if !tenantPattern.MatchString(tenant) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenant, tenant)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if a, ok := r.actors[tenant]; ok {
		return a, nil
	}

	store, err := storage.Open(filepath.Join(r.cfg.DataDir, tenant+".db"))
	if err != nil {
		return nil, fmt.Errorf("opening store for %s: %w", tenant, err)
	}
	a, err := New(Config{
		Tenant:         tenant,
		Store:          store,
		InternalSecret: r.cfg.InternalSecret,
		HubKeepAlive:   r.cfg.HubKeepAlive,
		Logger:         r.log,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("warming actor for %s: %w", tenant, err)
	}
	r.actors[tenant] = a
	r.log.Info("actor activated", "tenant", tenant)
	return a, nil
}

// ActorCount returns the number of live actors.
func (r *Registry) ActorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Close evicts every actor and stops the sweep.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	actors := r.actors
	r.actors = map[string]*Actor{}
	r.mu.Unlock()

	close(r.done)
	var firstErr error
	for tenant, a := range actors {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing actor %s: %w", tenant, err)
		}
	}
	return firstErr
}

// sweep periodically evicts actors idle past the TTL. Live viewer
// connections count as activity, so a watched tenant never goes cold.
func (r *Registry) sweep() {
	interval := r.cfg.IdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() {
	r.mu.Lock()
	var victims []*Actor
	for tenant, a := range r.actors {
		if a.IdleFor() >= r.cfg.IdleTTL {
			delete(r.actors, tenant)
			victims = append(victims, a)
		}
	}
	r.mu.Unlock()

	for _, a := range victims {
		if err := a.Close(); err != nil {
			r.log.Warn("actor close failed", "tenant", a.Tenant(), "error", err)
		} else {
			r.log.Info("actor evicted", "tenant", a.Tenant())
		}
	}
}
