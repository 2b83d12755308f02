package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mocknest/mocknest/pkg/actor"
	"github.com/mocknest/mocknest/pkg/config"
	"github.com/mocknest/mocknest/pkg/httputil"
	"github.com/mocknest/mocknest/pkg/logging"
)

// pathPrefix routes tenants by path when subdomain routing is unavailable
// (local development, plain IP access).
const pathPrefix = "/m/"

// Server routes tenant traffic to actors.
type Server struct {
	cfg      config.Config
	registry *actor.Registry
	log      *slog.Logger
	http     *http.Server
}

// New builds a Server and its actor registry from the configuration.
func New(cfg config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		cfg: cfg,
		log: log,
		registry: actor.NewRegistry(actor.RegistryConfig{
			DataDir:        cfg.DataDir,
			InternalSecret: cfg.InternalSecret,
			IdleTTL:        cfg.ActorIdleTTL,
			HubKeepAlive:   cfg.HubKeepAlive,
			Logger:         log,
		}),
	}
	s.http = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s,
		// No WriteTimeout: configured response delays run up to a
		// minute and viewer connections live indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Registry exposes the actor registry, mainly for tests.
func (s *Server) Registry() *actor.Registry {
	return s.registry
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", "addr", s.cfg.ListenAddr, "baseDomain", s.cfg.BaseDomain)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, then evicts every actor so their
// stores close cleanly.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if closeErr := s.registry.Close(); err == nil {
		err = closeErr
	}
	return err
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	tenant, req, ok := s.resolveTenant(r)
	if !ok {
		httputil.WriteNotFound(w, "NO_TENANT", "request does not identify a tenant")
		return
	}

	a, err := s.registry.Get(tenant)
	if err != nil {
		switch {
		case errors.Is(err, actor.ErrInvalidTenant):
			httputil.WriteNotFound(w, "NO_TENANT", "unknown tenant")
		case errors.Is(err, actor.ErrRegistryClosed):
			httputil.WriteError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "server is shutting down")
		default:
			s.log.Error("actor activation failed", "tenant", tenant, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "ACTIVATION_FAILED", "could not activate tenant")
		}
		return
	}
	a.ServeHTTP(w, req)
}

// resolveTenant extracts the tenant label from the Host subdomain or the
// /m/{tenant}/ prefix. Path routing rewrites the request so the actor
// sees the tenant-relative path.
func (s *Server) resolveTenant(r *http.Request) (string, *http.Request, bool) {
	if s.cfg.BaseDomain != "" {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if suffix := "." + s.cfg.BaseDomain; strings.HasSuffix(host, suffix) {
			label := strings.TrimSuffix(host, suffix)
			// Only a direct subdomain names a tenant.
			if label != "" && !strings.Contains(label, ".") {
				return label, r, true
			}
		}
	}

	if strings.HasPrefix(r.URL.Path, pathPrefix) {
		rest := strings.TrimPrefix(r.URL.Path, pathPrefix)
		tenant, tail, _ := strings.Cut(rest, "/")
		if tenant == "" {
			return "", nil, false
		}
		req := r.Clone(r.Context())
		req.URL.Path = "/" + tail
		return tenant, req, true
	}

	return "", nil, false
}
