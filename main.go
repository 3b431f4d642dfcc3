package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"depotbook/src/api"
	apicontrollers "depotbook/src/api/controllers"
	apihandlers "depotbook/src/api/handlers"
	"depotbook/src/config"
	"depotbook/src/database"
	"depotbook/src/services"
	"depotbook/src/utils"
	aws_handler "depotbook/src/utils/aws"
	redis_utils "depotbook/src/utils/redis"
	"depotbook/src/worker"
	workercontrollers "depotbook/src/worker/controllers"
	workerhandlers "depotbook/src/worker/handlers"

	"github.com/go-chi/jwtauth"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const instrumentCacheTTL = time.Hour

func main() {
	cfg, err := config.LoadConfig("./settings", os.Getenv("ENV"))
	if err != nil {
		logrus.WithError(err).Fatal("Error while loading config")
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.ToFile, cfg.Logging.FilePath)
	ctx := utils.WithLogger(context.Background(), logger)

	if cfg.Secrets.Region != "" {
		awsHandler, err := aws_handler.NewAWSHandler(cfg.Secrets.Region)
		if err != nil {
			logger.WithError(err).Fatal("Couldn't create AWS session")
		}
		if err := awsHandler.SecretManager.ApplySecrets(ctx, cfg); err != nil {
			logger.WithError(err).Fatal("Couldn't read secrets")
		}
	}

	db, err := database.SetupDB(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Couldn't connect to database")
	}
	defer database.Close(db)

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.WithError(err).Fatal("Couldn't migrate database")
	}

	httpServer, stop, err := run(ctx, cfg, db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Couldn't run")
	}
	defer stop()

	errC := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Service.Port).Infof("Starting %s server", cfg.Service.Type)

		// "ListenAndServe always returns a non-nil error. After Shutdown or Close, the returned error is
		// ErrServerClosed."
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errC:
		logger.WithError(err).Error("Error while running")
	case sig := <-signals:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error while shutting down")
	}
}

// run builds the server for the configured service type. The returned stop
// function releases what the server started besides the listener.
func run(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *logrus.Logger) (*http.Server, func(), error) {
	if cfg.Service.Type == config.WORKER {
		controller := workercontrollers.NewController(db, logger)
		if cfg.Prices.MergeCron != "" {
			if err := controller.ScheduleMerge(cfg.Prices.MergeCron); err != nil {
				return nil, nil, err
			}
		}
		server := worker.NewServer(workerhandlers.NewHandler(controller))
		return worker.NewHTTPServer(server, cfg.Service.Port), controller.StopSchedulers, nil
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, nil, errors.New("auth.jwt_secret is required")
	}
	stop := func() {}
	cache := services.NewMemoryInstrumentCache(instrumentCacheTTL)
	if cfg.Databases.Redis.Host != "" {
		redisHandler, err := redis_utils.NewRedisHandler(ctx, cfg, "depotbook:")
		if err != nil {
			return nil, nil, err
		}
		cache = services.NewRedisInstrumentCache(redisHandler, instrumentCacheTTL)
		stop = func() { _ = redisHandler.Close() }
	}

	tokenAuth := jwtauth.New("HS256", []byte(cfg.Auth.JWTSecret), nil)
	controller := apicontrollers.NewController(db, cache, tokenAuth, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	if cfg.Auth.AdminUsername != "" {
		if err := controller.AuthService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			stop()
			return nil, nil, err
		}
	}

	server := api.NewServer(apihandlers.NewHandler(controller), tokenAuth, logger)
	return api.NewHTTPServer(server, cfg.Service.Port), stop, nil
}

