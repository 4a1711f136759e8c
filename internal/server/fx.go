// Package server builds the application's dependency graph and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/analytics"
	"github.com/Imziyasser00/calis-blog-sub001/internal/api"
	"github.com/Imziyasser00/calis-blog-sub001/internal/clock/system"
	"github.com/Imziyasser00/calis-blog-sub001/internal/config"
	"github.com/Imziyasser00/calis-blog-sub001/internal/id/uuid"
	"github.com/Imziyasser00/calis-blog-sub001/internal/mail"
	sesmailer "github.com/Imziyasser00/calis-blog-sub001/internal/mail/ses"
	"github.com/Imziyasser00/calis-blog-sub001/internal/policy/ratelimit"
	gcppublisher "github.com/Imziyasser00/calis-blog-sub001/internal/publisher/pubsub"
	dynamostore "github.com/Imziyasser00/calis-blog-sub001/internal/storage/dynamo"
	gcsstorage "github.com/Imziyasser00/calis-blog-sub001/internal/storage/gcs"
	localstorage "github.com/Imziyasser00/calis-blog-sub001/internal/storage/local"
	memorystorage "github.com/Imziyasser00/calis-blog-sub001/internal/storage/memory"
	pgstore "github.com/Imziyasser00/calis-blog-sub001/internal/storage/postgres"
	redisstore "github.com/Imziyasser00/calis-blog-sub001/internal/storage/redis"
	"github.com/Imziyasser00/calis-blog-sub001/internal/subscribe"
	"github.com/Imziyasser00/calis-blog-sub001/internal/telemetry"
	"github.com/Imziyasser00/calis-blog-sub001/internal/track"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	readiness      map[string]api.Pinger
	closers        []closer
	tracer         trace.TracerProvider
	tracerShutdown func(context.Context) error
	awsCfg         *aws.Config
}

type closer struct {
	name string
	fn   func() error
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:       cfg,
		logger:    logger,
		readiness: map[string]api.Pinger{},
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment),
		zap.String("subscriber_store", cfg.SubscriberStore.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.String("mail", cfg.Mail.Backend),
		zap.String("storage", cfg.Storage.Backend),
	)

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Application.ServiceName, cfg.Application.Version)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracer = tp
	app.tracerShutdown = tp.Shutdown

	subscribers, err := setupSubscriberStore(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	events, err := setupEventStore(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	mailer, err := setupMailer(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	images, closeImages, err := BuildBlobStore(ctx, cfg, logger)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.addCloser("blob store", closeImages)

	trackOpts := []track.Option{track.WithTracerProvider(tp)}
	if cfg.PubSubEnabled() {
		pub, err := setupPublisher(ctx, app)
		if err != nil {
			app.closeInfrastructure()
			return nil, err
		}
		trackOpts = append(trackOpts, track.WithPublisher(pub, cfg.PubSub.TopicName))
	}

	clock := system.New()
	subscribeSvc := subscribe.New(subscribers, mailer, clock, logger.Named("subscribe"),
		subscribe.WithTracerProvider(tp))
	trackSvc := track.New(events, uuid.New(), clock, logger.Named("track"), trackOpts...)

	app.apiServer = api.NewServer(api.Deps{
		Subscriber:     subscribeSvc,
		Tracker:        trackSvc,
		Images:         images,
		Readiness:      app.readiness,
		TracerProvider: tp,
	}, *cfg, logger)
	return app, nil
}

// Handler exposes the HTTP handler tree.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until ctx is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases clients and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure()
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) addCloser(name string, fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, closer{name: name, fn: fn})
	}
}

// closeInfrastructure runs closers in reverse order of registration.
func (a *App) closeInfrastructure() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) awsConfig(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(a.cfg.AWS.Region)}
	if a.cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(a.cfg.AWS.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	a.awsCfg = &awsCfg
	return awsCfg, nil
}

func (a *App) endpoint() *string {
	if a.cfg.AWS.Endpoint == "" {
		return nil
	}
	return aws.String(a.cfg.AWS.Endpoint)
}

func setupSubscriberStore(ctx context.Context, app *App) (analytics.SubscriberStore, error) {
	cfg := app.cfg.SubscriberStore
	switch cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.addCloser("redis", client.Close)
		store, err := redisstore.NewSubscriberStore(client, cfg.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis subscriber store init failed: %w", err)
		}
		app.readiness["subscribers"] = store
		app.logger.Info("using redis subscriber store", zap.String("addr", cfg.RedisAddr))
		return store, nil
	case config.BackendDynamoDB:
		awsCfg, err := app.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = app.endpoint()
		})
		store, err := dynamostore.NewSubscriberStore(client, cfg.DynamoDBTable)
		if err != nil {
			return nil, fmt.Errorf("dynamodb subscriber store init failed: %w", err)
		}
		app.logger.Info("using dynamodb subscriber store", zap.String("table", cfg.DynamoDBTable))
		return store, nil
	default:
		app.logger.Info("using in-memory subscriber store")
		return memorystorage.NewSubscriberStore(), nil
	}
}

func setupEventStore(ctx context.Context, app *App) (analytics.EventStore, error) {
	if app.cfg.Events.Backend != config.BackendPostgres {
		app.logger.Info("using in-memory event store")
		return memorystorage.NewEventStore(), nil
	}
	db := app.cfg.DB
	store, err := pgstore.NewEventStore(ctx, pgstore.EventStoreConfig{
		DSN:             db.DSN,
		EventsTable:     db.EventsTable,
		SessionsTable:   db.SessionsTable,
		MaxConns:        db.MaxConns,
		MinConns:        db.MinConns,
		MaxConnLifetime: time.Duration(db.MaxConnLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("event store init failed: %w", err)
	}
	app.addCloser("postgres", func() error {
		store.Close()
		return nil
	})
	if app.cfg.Events.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("event store migrate failed: %w", err)
		}
		app.logger.Info("event store schema ensured")
	}
	app.readiness["events"] = store
	app.logger.Info("using postgres event store",
		zap.String("events_table", db.EventsTable),
		zap.String("sessions_table", db.SessionsTable),
	)
	return store, nil
}

func setupMailer(ctx context.Context, app *App) (analytics.Mailer, error) {
	mc := app.cfg.Mail
	welcome := mail.WelcomeConfig{
		Subject:  mc.Subject,
		SiteURL:  mc.SiteURL,
		SiteName: mc.SiteName,
	}
	var next analytics.Mailer
	switch mc.Backend {
	case config.BackendSES:
		awsCfg, err := app.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			o.BaseEndpoint = app.endpoint()
		})
		m, err := sesmailer.New(client, sesmailer.Config{
			FromEmail:        mc.FromEmail,
			FromName:         mc.FromName,
			ReplyTo:          mc.ReplyTo,
			ConfigurationSet: mc.ConfigurationSet,
			Welcome:          welcome,
		}, app.logger.Named("ses"))
		if err != nil {
			return nil, fmt.Errorf("ses mailer init failed: %w", err)
		}
		app.logger.Info("using ses mailer", zap.String("from", mc.FromEmail))
		next = m
	default:
		app.logger.Info("using log mailer")
		next = mail.NewLogMailer(welcome, app.logger.Named("mail"))
	}
	app.logger.Info("mail throttle configured",
		zap.Float64("max_per_second", mc.MaxPerSecond),
		zap.Int("burst", mc.Burst),
	)
	return mail.NewThrottled(next, ratelimit.New(ratelimit.Config{
		DefaultRPS:   mc.MaxPerSecond,
		DefaultBurst: mc.Burst,
	})), nil
}

func setupPublisher(ctx context.Context, app *App) (analytics.Publisher, error) {
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	pub := gcppublisher.New(client, gcppublisher.WithTracerProvider(app.tracer))
	app.addCloser("pubsub", pub.Close)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return pub, nil
}

// BuildBlobStore selects the Open Graph image store. The returned close
// function releases any client the store holds.
func BuildBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (analytics.BlobStore, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:       cfg.Storage.GCSBucket,
			CacheControl: "public, max-age=86400",
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		logger.Info("using GCS storage backend", zap.String("bucket", cfg.Storage.GCSBucket))
		return store, client.Close, nil
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Storage.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		logger.Info("using local storage backend", zap.String("path", cfg.Storage.BaseDir))
		return store, nil, nil
	default:
		logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil, nil
	}
}
