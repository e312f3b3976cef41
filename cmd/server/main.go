package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/iliyamo/theater-booking/internal/cache"
	"github.com/iliyamo/theater-booking/internal/config"
	"github.com/iliyamo/theater-booking/internal/database"
	"github.com/iliyamo/theater-booking/internal/handler"
	"github.com/iliyamo/theater-booking/internal/middleware"
	"github.com/iliyamo/theater-booking/internal/queue"
	"github.com/iliyamo/theater-booking/internal/reconcile"
	"github.com/iliyamo/theater-booking/internal/repository"
	"github.com/iliyamo/theater-booking/internal/router"
	"github.com/iliyamo/theater-booking/internal/service"
	"github.com/iliyamo/theater-booking/internal/slots"
)

// bookingStore is what the reconciler reads from and writes to.
type bookingStore interface {
	reconcile.Source
	reconcile.Saver
}

func main() {
	cfg := config.Load() // Load environment config

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	checks := map[string]handler.Check{"sql": db.PingContext}
	var (
		store   bookingStore
		mongoDB *mongo.Database
	)
	switch cfg.BookingStore {
	case "mongo":
		client, mdb, err := database.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		store = repository.NewMongoBookingRepo(mdb, log)
		mongoDB = mdb
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
	default:
		store = repository.NewBookingRepo(db, log)
	}

	// Redis is optional: without it catalogs are read through and edits are not throttled.
	var rdb redis.Cmdable
	if client := config.NewRedisClient(); client != nil {
		defer client.Close()
		rdb = client
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		log.Warn("redis unavailable, catalog cache and edit throttle disabled")
	}
	catalogs := cache.NewCatalogCache(repository.NewCatalogRepo(db, log), rdb, config.LoadCacheConfig(), log)

	broker := config.LoadBrokerConfig()
	origin := uuid.NewString()
	var (
		listeners []slots.Listener
		recOpts   []reconcile.Option
	)
	if broker.URL != "" {
		pub := service.NewPublisher(broker, origin, log)
		listeners = append(listeners, pub)
		recOpts = append(recOpts, reconcile.WithNotifier(pub))
	} else {
		log.Info("no RABBITMQ_URL, slot events and booking events disabled")
	}

	slotCfg := config.LoadSlotConfig()
	loc, err := time.LoadLocation(slotCfg.Location)
	if err != nil {
		log.WithError(err).WithField("zone", slotCfg.Location).Warn("unknown SLOT_TIMEZONE, using local time")
		loc = time.Local
	}
	// Slot occupancy is read from wherever bookings are written.
	var fetcher slots.Fetcher = repository.NewSlotRepo(db)
	if mongoDB != nil {
		fetcher = repository.NewMongoSlotRepo(mongoDB, catalogs, log)
	}
	registry := slots.NewRegistry(fetcher, slots.RegistryConfig{
		Interval: slotCfg.PollInterval,
		Timeout:  slotCfg.FetchTimeout,
		Idle:     slotCfg.Idle,
		Options:  []slots.Option{slots.WithLocation(loc)},
	}, log, listeners...)
	go registry.Run(ctx)

	if broker.URL != "" {
		go func() {
			err := queue.StartSlotConsumer(ctx, queue.SlotConsumer{
				URL:      broker.URL,
				Exchange: broker.SlotsExchange,
				Origin:   origin,
				Target:   registry,
				Log:      log,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("slot consumer stopped")
			}
		}()
	}

	recOpts = append(recOpts, reconcile.WithSlotChecker(registry))
	rec := reconcile.New(store, store, catalogs, log, recOpts...)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"staff_id":   middleware.StaffID(c),
			}).Info("request")
			return nil
		},
	}))

	router.RegisterRoutes(e, handler.NewHealthHandler(log, checks))
	router.RegisterAPI(e, router.Handlers{
		Bookings: handler.NewBookingHandler(rec, log),
		Slots:    handler.NewSlotHandler(registry, catalogs, log),
		Catalogs: &handler.CatalogHandler{Cache: catalogs, Log: log},
	}, cfg.JWTSecret, middleware.EditThrottle(config.LoadThrottleConfig(), rdb, log))

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.BookingStore}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	registry.Close()
}
