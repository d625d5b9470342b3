package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go-ticker/internal/aggregator"
	"go-ticker/internal/api"
	"go-ticker/internal/common"
	"go-ticker/internal/config"
	"go-ticker/internal/metrics"
	"go-ticker/internal/pricing"
	"go-ticker/internal/reconciler"
	"go-ticker/internal/scheduler"
	"go-ticker/internal/series"
	"go-ticker/internal/service"
	"go-ticker/internal/store"
	"go-ticker/internal/supervisor"
	"go-ticker/internal/util"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", common.DefaultConfigPath, "Path to config file")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("error_code", common.ErrCodeConfigLoadFailed.String()).
			Str("error_message", common.ErrMsgConfigLoadFailed.String()).
			Msg("Failed to load config")
	}

	logger := util.NewLogger(cfg.LogLevel)
	zerolog.SetGlobalLevel(logger.Level())
	if logger.Level() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *util.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error(err, common.ErrCodeStoreOpenFailed, common.ErrMsgStoreOpenFailed, "Failed to open store", "driver", cfg.Store.Driver)
		return err
	}
	defer st.Close()

	seeded, err := store.Seed(ctx, st, cfg.GetSeedPrice(), time.Now().UnixMilli())
	if err != nil {
		logger.Error(err, common.ErrCodeStoreAppendFailed, common.ErrMsgStoreAppendFailed, "Failed to seed store")
		return err
	}
	if seeded {
		metrics.TicksTotal.WithLabelValues(metrics.SourceSeed).Inc()
		logger.Info("Seeded empty series", "price", cfg.GetSeedPrice().String())
	}

	loc, err := cfg.GetLocation()
	if err != nil {
		return err
	}
	table, err := cfg.GetBiasTable()
	if err != nil {
		return err
	}

	state := series.NewState()
	agg := aggregator.New(aggregator.WithLocation(loc), aggregator.WithMaxCandles(cfg.GetMaxCandles()))
	svc, err := service.NewService(state, agg, cfg.GetDefaultTimeframe(), cfg.GetChannelBufferSize(), logger)
	if err != nil {
		logger.Error(err, common.ErrCodeInvalidTimeframe, common.ErrMsgInvalidTimeframe, "Invalid default timeframe")
		return err
	}

	src := rand.New(rand.NewSource(cfg.GetRandomSeed()))
	gen := pricing.NewGenerator(src, cfg.GetPrecision())
	minStep, maxStep := cfg.GetBackfillStep()
	rec := reconciler.New(src, gen, reconciler.Options{
		MinStep:      minStep,
		MaxStep:      maxStep,
		StartupDelay: cfg.GetStartupDelay(),
		Bias:         table.None,
	}, logger)
	minDelay, maxDelay := cfg.GetCycleDelay()
	sched := scheduler.New(st, state, rec, gen, src, svc, scheduler.Options{
		MinDelay:          minDelay,
		MaxDelay:          maxDelay,
		Window:            cfg.GetWindow(),
		WindowLimit:       cfg.GetWindowLimit(),
		ReadyPollInterval: cfg.GetReadyPollInterval(),
		Bias:              table,
	}, logger)

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error(err, common.ErrCodeGRPCServeFailed, common.ErrMsgGRPCServeFailed, "Failed to listen", "address", grpcAddr)
		return err
	}
	grpcServer := grpc.NewServer(
		grpc.MaxSendMsgSize(common.MaxGRPCMessageSize),
		grpc.MaxRecvMsgSize(common.MaxGRPCMessageSize),
	)
	service.RegisterCandleServiceServer(grpcServer, svc)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           api.NewRouter(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 3)
	go func() {
		logger.Info("Starting gRPC server", "address", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error(err, common.ErrCodeGRPCServeFailed, common.ErrMsgGRPCServeFailed, "gRPC serve failed")
			failed <- err
		}
	}()
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, common.ErrCodeHTTPServeFailed, common.ErrMsgHTTPServeFailed, "HTTP serve failed")
			failed <- err
		}
	}()

	initial, maxInterval, maxElapsed := cfg.GetSupervisorIntervals()
	sup := supervisor.New("scheduler", supervisor.Options{
		InitialInterval: initial,
		MaxInterval:     maxInterval,
		MaxElapsed:      maxElapsed,
	}, logger)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sup.Run(ctx, sched.Run); err != nil {
			logger.Error(err, common.ErrCodeSchedulerStopped, common.ErrMsgSchedulerStopped, "Scheduler gave up")
			failed <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case runErr = <-failed:
		logger.Info("Shutting down after failure...")
	}
	stop()

	svc.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), common.DefaultShutdownTimeoutSec*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, common.ErrCodeHTTPServeFailed, common.ErrMsgHTTPServeFailed, "HTTP shutdown failed")
	}
	<-schedDone
	return runErr
}
