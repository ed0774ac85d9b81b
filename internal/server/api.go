package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

// API registers the playbook JSON endpoints on a standard library mux.
// Every route is read-only unless mutations are explicitly enabled.
type API struct {
	basePath       string
	corpus         standards.Service
	renderer       render.Service
	graph          refgraph.Service
	auditor        audit.Service
	logger         interfaces.Logger
	allowMutations bool
}

// Option mutates the API configuration.
type Option func(*API)

// NewAPI constructs an API instance. Routes mount at the root unless
// WithBasePath sets a prefix.
func NewAPI(opts ...Option) *API {
	api := &API{
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	return api
}

// WithBasePath prefixes every route, including /healthz, with the given path.
func WithBasePath(path string) Option {
	return func(api *API) {
		if api == nil {
			return
		}
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			api.basePath = strings.TrimSuffix(trimmed, "/")
		}
	}
}

// WithCorpusService wires the standards read and sync surface.
func WithCorpusService(service standards.Service) Option {
	return func(api *API) {
		if api != nil {
			api.corpus = service
		}
	}
}

// WithRenderService wires the HTML renderer used by ?include=html.
func WithRenderService(service render.Service) Option {
	return func(api *API) {
		if api != nil {
			api.renderer = service
		}
	}
}

// WithGraphService wires the reference graph service.
func WithGraphService(service refgraph.Service) Option {
	return func(api *API) {
		if api != nil {
			api.graph = service
		}
	}
}

// WithAuditService wires the audit service.
func WithAuditService(service audit.Service) Option {
	return func(api *API) {
		if api != nil {
			api.auditor = service
		}
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(api *API) {
		if api != nil && logger != nil {
			api.logger = logger
		}
	}
}

// WithMutations enables the POST /api/sync and POST /api/audit endpoints.
// They answer 403 otherwise.
func WithMutations(enabled bool) Option {
	return func(api *API) {
		if api != nil {
			api.allowMutations = enabled
		}
	}
}

// Register attaches the playbook endpoints to the provided mux.
func (api *API) Register(mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("server: mux is required")
	}
	if api == nil {
		return fmt.Errorf("server: api is nil")
	}

	base := joinPath(api.basePath, "/api")

	api.registerHealthRoutes(mux)
	api.registerStandardRoutes(mux, base)
	api.registerGraphRoutes(mux, base)
	api.registerAuditRoutes(mux, base)
	api.registerSyncRoutes(mux, base)
	api.registerDocRoutes(mux, base)

	return nil
}
