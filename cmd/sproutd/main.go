package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sproutd/pkg/bus"
	"sproutd/pkg/config"
	"sproutd/pkg/db"
	"sproutd/pkg/s3"
	"sproutd/pkg/telemetry"
	"sproutd/services/api"
	"sproutd/services/archiver"
)

const serviceName = "sproutd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	var otelMiddleware func(http.Handler) http.Handler
	if cfg.OTLPEndpoint != "" {
		shutdown, middleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("init telemetry")
		}
		otelMiddleware = middleware
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	orm, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open orm")
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer eventBus.Close()
	}

	store := &api.Store{DB: pool, ORM: orm, Bus: eventBus.Conn()}
	apiSrv, err := api.New(store, api.Config{
		UserTokenTTL:   cfg.UserTokenTTL,
		AllowedOrigins: cfg.AllowedOrigins,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	handler, err := apiSrv.Routes()
	if err != nil {
		log.Fatal().Err(err).Msg("build routes")
	}
	if otelMiddleware != nil {
		handler = otelMiddleware(handler)
	}

	// Cold-measurement archiving runs only when object storage is configured.
	if cfg.S3Endpoint == "" {
		log.Info().Msg("no s3 endpoint configured, archiving disabled")
	} else if s3c, err := s3.New(ctx, cfg.S3()); err != nil {
		log.Fatal().Err(err).Msg("init s3 client")
	} else {
		arch, err := archiver.New(pool, s3c, eventBus, archiver.Config{
			Bucket:    cfg.ArchiveBucket,
			Retention: cfg.ArchiveRetention,
			Interval:  cfg.ArchiveInterval,
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("init archiver")
		}
		go func() {
			if err := arch.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("archiver stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting sproutd")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}
