package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"statusboard/internal/alerts"
	"statusboard/internal/auth"
	"statusboard/internal/config"
	"statusboard/internal/events/application"
	boltstore "statusboard/internal/events/infrastructure/bolt"
	"statusboard/internal/events/infrastructure/memory"
	"statusboard/internal/events/infrastructure/postgres"
	"statusboard/internal/events/infrastructure/redisstore"
	"statusboard/internal/events/interfaces/export"
	eventshttp "statusboard/internal/events/interfaces/http"
	"statusboard/internal/logging"
	"statusboard/internal/observability/metrics"
	"statusboard/internal/producers"
	radiatorapp "statusboard/internal/radiator/application"
	radiatorhttp "statusboard/internal/radiator/interfaces/http"
)

// backend is everything the server keeps in its store.
type backend interface {
	application.EventStore
	application.RegistrationStore
	radiatorapp.DocumentStore
	io.Closer
}

func serve(cliCtx *cli.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logrus.StandardLogger()
	logCloser, err := logging.Setup(logger, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, listener, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	publisher, err := application.NewPublisher(store, application.WithPublisherLogger(logger))
	if err != nil {
		return err
	}
	gateOpts := []application.GateOption{application.WithGateLogger(logger)}
	if cfg.Auth.SigningSecret != "" {
		issuer, err := auth.NewJWTIssuer([]byte(cfg.Auth.SigningSecret), cfg.Auth.Issuer)
		if err != nil {
			return err
		}
		gateOpts = append(gateOpts, application.WithKeyIssuer(issuer))
	}
	gate, err := application.NewGate(store, publisher, gateOpts...)
	if err != nil {
		return err
	}
	subscriptions, err := application.NewSubscriptions(store, application.WithSubscriptionsLogger(logger))
	if err != nil {
		return err
	}
	metrics.Init(publisher.Count, logger)

	radiatorService, err := radiatorapp.NewService(store, logger)
	if err != nil {
		return err
	}
	if cfg.Radiator != nil {
		if _, err := radiatorService.EnsureDefault(ctx, *cfg.Radiator); err != nil {
			return fmt.Errorf("radiator default: %w", err)
		}
	}

	router, err := buildRouter(cfg, logger, gate, publisher, subscriptions, radiatorService)
	if err != nil {
		return err
	}

	sink, err := buildSink(cfg.Slack, subscriptions, logger)
	if err != nil {
		return err
	}
	scheduler, sources, err := buildProducers(cfg.Producers, publisher, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			logger.Debugf("%s stopped", name)
		}()
	}
	if listener != nil {
		run("postgres listener", func() { listener.Run(ctx) })
	}
	run("alert sink", func() {
		if err := sink.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("alert sink stopped")
		}
	})
	run("producer scheduler", func() { scheduler.Start(ctx) })
	for _, source := range sources {
		source := source
		run("producer "+source.Name(), func() { scheduler.RunOnce(ctx, source) })
	}

	// Request contexts derive from ctx so open streams end on shutdown.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("http listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	wg.Wait()
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger logrus.FieldLogger) (backend, *postgres.Listener, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		store, err := redisstore.NewStore(redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), redisstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Infof("store: redis at %s", cfg.RedisAddr)
		return store, nil, nil
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		store, err := postgres.NewStore(db, postgres.WithLogger(logger))
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("db schema: %w", err)
		}
		listener, err := postgres.NewListener(cfg.PostgresDSN, store, logger)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("store: postgres")
		return store, listener, nil
	case config.DriverBolt:
		store, err := boltstore.Open(cfg.BoltPath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("store: bolt at %s", cfg.BoltPath)
		return store, nil, nil
	default:
		logger.Info("store: memory")
		return memory.NewStore(logger), nil, nil
	}
}

func buildRouter(
	cfg config.Config,
	logger logrus.FieldLogger,
	gate *application.Gate,
	publisher *application.Publisher,
	subscriptions *application.Subscriptions,
	radiatorService *radiatorapp.Service,
) (*mux.Router, error) {
	router := mux.NewRouter()
	router.Use(eventshttp.Instrument(logger))

	eventsHandler, err := eventshttp.NewHandler(gate, publisher, subscriptions,
		eventshttp.WithLogger(logger),
		eventshttp.WithKeepAlive(cfg.Server.KeepAlive),
	)
	if err != nil {
		return nil, err
	}
	eventsHandler.Register(router)

	radiatorHandler, err := radiatorhttp.NewHandler(radiatorService, logger)
	if err != nil {
		return nil, err
	}
	radiatorHandler.Register(router)

	sonarHandler, err := producers.NewSonarQubeHandler(publisher, logger)
	if err != nil {
		return nil, err
	}
	sonarHandler.Register(router)

	exportHandler, err := export.NewHandler(publisher, logger)
	if err != nil {
		return nil, err
	}
	exportHandler.Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router, nil
}

func buildSink(cfg config.SlackConfig, feed alerts.LiveFeed, logger logrus.FieldLogger) (*alerts.Sink, error) {
	var channel alerts.Channel = alerts.LogChannel{Logger: logger}
	if cfg.Token != "" {
		opts := []alerts.SlackOption{alerts.WithRateLimit(cfg.RateLimit, cfg.Burst)}
		if cfg.URL != "" {
			opts = append(opts, alerts.WithBaseURL(cfg.URL))
		}
		slack, err := alerts.NewSlackChannel(cfg.Token, cfg.Channel, opts...)
		if err != nil {
			return nil, err
		}
		channel = alerts.NewMultiChannel(channel, slack)
	}
	return alerts.NewSink(feed, channel, alerts.WithLogger(logger))
}

func buildProducers(cfg config.ProducersConfig, publisher *application.Publisher, logger logrus.FieldLogger) (*producers.Scheduler, []producers.Source, error) {
	client, err := producers.NewHTTPClient(cfg.HTTP)
	if err != nil {
		return nil, nil, err
	}
	scheduler := producers.NewScheduler(logger, cfg.Timeout)

	var sources []producers.Source
	schedule := func(source producers.Source, err error, interval time.Duration) error {
		if err != nil {
			return err
		}
		if err := scheduler.Add(source, interval); err != nil {
			return err
		}
		sources = append(sources, source)
		return nil
	}

	if len(cfg.Jenkins.Jobs) > 0 {
		jenkins, err := producers.NewJenkins(cfg.Jenkins, client, publisher, logger)
		if err := schedule(jenkins, err, cfg.Jenkins.Interval); err != nil {
			return nil, nil, err
		}
	}
	if len(cfg.Health.Applications) > 0 {
		health, err := producers.NewHealth(cfg.Health, client, publisher, publisher, logger)
		if err := schedule(health, err, cfg.Health.Interval); err != nil {
			return nil, nil, err
		}
	}
	if len(cfg.NWS.Locations) > 0 {
		nws, err := producers.NewNWS(cfg.NWS, client, publisher, logger)
		if err := schedule(nws, err, cfg.NWS.Interval); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Upwise.Enabled {
		upwise, err := producers.NewUpwise(cfg.Upwise, client, publisher, logger)
		if err := schedule(upwise, err, cfg.Upwise.Interval); err != nil {
			return nil, nil, err
		}
	}
	if len(cfg.AppCenter.Apps) > 0 {
		appCenter, err := producers.NewAppCenter(cfg.AppCenter, client, publisher, logger)
		if err := schedule(appCenter, err, cfg.AppCenter.Interval); err != nil {
			return nil, nil, err
		}
	}
	if len(cfg.RetroQuest.Teams) > 0 {
		retroQuest, err := producers.NewRetroQuest(cfg.RetroQuest, client, publisher, logger)
		if err := schedule(retroQuest, err, cfg.RetroQuest.Interval); err != nil {
			return nil, nil, err
		}
	}
	return scheduler, sources, nil
}
