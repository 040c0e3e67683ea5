package app

import (
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"httpcore/internal/adapter/blocking"
	"httpcore/internal/adapter/eventloop"
	"httpcore/internal/config"
	"httpcore/internal/core"
	"httpcore/internal/management"
	"httpcore/internal/replay"
	"httpcore/internal/replay/memory"
	redisreplay "httpcore/internal/replay/redis"
	"httpcore/internal/telemetry"
	"httpcore/pkg/metrics"
)

// Builder builds the server from configuration
type Builder struct {
	config  *config.Config
	handler core.Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBuilder creates a new application builder
func NewBuilder(cfg *config.Config, handler core.Handler, logger *slog.Logger) *Builder {
	return &Builder{
		config:  cfg,
		handler: handler,
		logger:  logger,
	}
}

// WithMetrics overrides the metrics instance, mainly so tests can use a
// private registry.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Build constructs the server
func (b *Builder) Build() (*Server, error) {
	m := b.metrics
	if m == nil {
		m = metrics.New()
	}

	store, err := b.buildReplayStore()
	if err != nil {
		return nil, fmt.Errorf("creating replay store: %w", err)
	}

	handler := telemetry.WrapHandler(b.handler)

	backend, err := b.buildBackend(handler, m, store)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("creating backend: %w", err)
	}

	mgmt := management.NewAPI(&b.config.Management, b.logger)
	mgmt.SetBackend(b.config.Server.Backend, backend)

	return &Server{
		config:  b.config,
		backend: backend,
		store:   store,
		mgmt:    mgmt,
		logger:  b.logger,
	}, nil
}

// buildReplayStore constructs the configured event replay store, or nil
// when replay is disabled.
func (b *Builder) buildReplayStore() (replay.Store, error) {
	cfg := &b.config.Replay
	rc := &replay.Config{Capacity: cfg.Capacity}

	switch cfg.Backend {
	case "", "none":
		return nil, nil

	case "memory":
		return memory.NewStore(rc), nil

	case "redis":
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis replay backend requires an address")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisreplay.NewStore(redisreplay.NewClientAdapter(client), rc), nil

	default:
		return nil, fmt.Errorf("unknown replay backend: %q", cfg.Backend)
	}
}

// buildBackend constructs the configured connection backend.
func (b *Builder) buildBackend(handler core.Handler, m *metrics.Metrics, store replay.Store) (Backend, error) {
	srv := &b.config.Server

	switch srv.Backend {
	case "eventloop":
		cfg := &eventloop.Config{
			Host:            srv.Host,
			Port:            srv.Port,
			Loops:           srv.Loops,
			ReadBufferSize:  srv.ReadBufferSize,
			WriteQueueLimit: srv.WriteQueueLimit,
			KeepAlive:       srv.KeepAlive,
		}
		return eventloop.New(cfg, handler, b.logger).WithMetrics(m).WithReplay(store), nil

	case "blocking":
		cfg := &blocking.Config{
			Host:            srv.Host,
			Port:            srv.Port,
			ReadBufferSize:  srv.ReadBufferSize,
			WriteQueueLimit: srv.WriteQueueLimit,
			MaxConnections:  srv.MaxConnections,
			KeepAlive:       srv.KeepAlive,
		}
		return blocking.New(cfg, handler, b.logger).WithMetrics(m).WithReplay(store), nil

	default:
		return nil, fmt.Errorf("unknown backend: %q", srv.Backend)
	}
}
