// Package app wires configuration, storage, the backend client and the stores.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/and161185/feedwall/internal/api"
	"github.com/and161185/feedwall/internal/config"
	"github.com/and161185/feedwall/internal/errs"
	"github.com/and161185/feedwall/internal/feed"
	"github.com/and161185/feedwall/internal/migrate"
	"github.com/and161185/feedwall/internal/repository/postgres"
	"github.com/and161185/feedwall/internal/service"
	"github.com/and161185/feedwall/internal/session"
	"github.com/and161185/feedwall/internal/tokenstore"
)

// App is the composition root. Build it with New and release it with Close.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Tracer   *sdktrace.TracerProvider // nil unless tracing is enabled

	Client  *api.Client
	Tokens  *tokenstore.Store
	Auth    *service.AuthServiceImpl
	Feeds   *service.FeedServiceImpl
	Session *session.Store

	close func()
}

// Option configures New.
type Option func(*options)

type options struct {
	traceOut io.Writer
}

// WithTraceWriter sends exported spans to w instead of stderr.
func WithTraceWriter(w io.Writer) Option {
	return func(o *options) { o.traceOut = w }
}

// New builds every component from cfg. The session is not bootstrapped.
// With cfg.Trace set, every backend request is exported as a span.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{traceOut: os.Stderr}
	for _, fn := range opts {
		fn(&o)
	}

	storage, closeStorage, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clientOpts := []api.Option{
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(log.Named("api")),
	}
	var tp *sdktrace.TracerProvider
	if cfg.Trace {
		tp, err = newTracerProvider(o.traceOut)
		if err != nil {
			closeStorage()
			return nil, err
		}
		clientOpts = append(clientOpts, api.WithTracerProvider(tp))
	}

	reg := prometheus.NewRegistry()
	clientOpts = append(clientOpts, api.WithRegisterer(reg))

	tokens := tokenstore.New(storage, log.Named("tokens"))
	client := api.New(cfg.BaseURL, tokens, clientOpts...)
	auth := service.NewAuthService(client)
	sess := session.New(auth, tokens, log.Named("session"))
	client.OnUnauthorized(sess.Expire)

	return &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Tracer:   tp,
		Client:   client,
		Tokens:   tokens,
		Auth:     auth,
		Feeds:    service.NewFeedService(client),
		Session:  sess,
		close: func() {
			if tp != nil {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Warn("trace shutdown", zap.Error(err))
				}
			}
			closeStorage()
		},
	}, nil
}

func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "feedwall"))),
	), nil
}

func newStorage(ctx context.Context, cfg config.Config) (tokenstore.Storage, func(), error) {
	switch cfg.TokenBackend {
	case config.BackendMemory:
		return tokenstore.NewMemoryStorage(), func() {}, nil
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrate credential store: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect credential store: %w", err)
		}
		return tokenstore.NewRepoStorage(postgres.NewCredentialRepo(db), cfg.KeyPath, tokenstore.Key), db.Close, nil
	default:
		return tokenstore.NewFileStorage(cfg.TokenPath, cfg.KeyPath, tokenstore.Key), func() {}, nil
	}
}

// Feed returns a global feed store that starts loading at once.
func (a *App) Feed(ctx context.Context, opts ...feed.Option) *feed.Store {
	return feed.NewFeed(ctx, a.Feeds, a.feedOptions(opts)...)
}

// Wall returns userID's wall store. An empty userID means the signed-in user,
// which requires an authenticated session.
func (a *App) Wall(ctx context.Context, userID string, opts ...feed.Option) (*feed.Store, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		st := a.Session.Snapshot()
		if !st.IsAuthenticated() {
			return nil, fmt.Errorf("own wall: %w", errs.ErrUnauthorized)
		}
		userID = st.User.ID.String()
	}
	return feed.NewWall(ctx, a.Feeds, userID, a.feedOptions(opts)...), nil
}

func (a *App) feedOptions(extra []feed.Option) []feed.Option {
	base := []feed.Option{
		feed.WithLogger(a.Log.Named("feed")),
		feed.WithPageSize(a.Config.PageSize),
	}
	return append(base, extra...)
}

// WatchCredential keeps the session in step with logins and logouts made by
// other processes. Only the file backend can be watched.
func (a *App) WatchCredential(ctx context.Context) error {
	if a.Config.TokenBackend != config.BackendFile {
		return nil
	}
	return a.Session.WatchCredential(ctx, a.Config.TokenPath)
}

// Close releases the credential backend.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}
