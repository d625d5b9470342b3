package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go-ticker/internal/common"
	"go-ticker/internal/config"
	"go-ticker/internal/service"
	"go-ticker/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

var kacp = keepalive.ClientParameters{
	Time:                10 * time.Second, // send pings every 10 seconds
	Timeout:             time.Second,      // wait 1 second for ping ack
	PermitWithoutStream: true,             // send pings even without active streams
}

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := flag.String("config", common.DefaultConfigPath, "Path to config file")
	timeframe := flag.String("timeframe", "", "Timeframe to subscribe to (defaults to the server's)")
	maxElapsed := flag.Duration("max-elapsed", 0, "Give up reconnecting after this long (0 for never)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("error_code", common.ErrCodeConfigLoadFailed.String()).
			Str("error_message", common.ErrMsgConfigLoadFailed.String()).
			Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = *maxElapsed
	attempt := 0

	err = backoff.RetryNotify(func() error {
		attempt++
		return connectAndStream(ctx, serverAddr, *timeframe)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Error().
			Err(err).
			Str("error_code", common.ErrCodeStreamClosed.String()).
			Str("error_message", common.ErrMsgStreamClosed.String()).
			Int("attempt", attempt).
			Dur("retry_in", next).
			Msg("Streaming error occurred, reconnecting")
	})
	if err != nil && !isContextError(err) {
		log.Error().Err(err).Msg("Giving up")
		os.Exit(1)
	}
}

func connectAndStream(ctx context.Context, serverAddr, timeframe string) error {
	conn, err := grpc.NewClient(
		serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(common.MaxGRPCMessageSize),
			grpc.MaxCallSendMsgSize(common.MaxGRPCMessageSize),
		),
	)
	if err != nil {
		log.Error().
			Err(err).
			Str("error_code", common.ErrCodeGRPCConnectionFailed.String()).
			Str("error_message", common.ErrMsgGRPCConnectionFailed.String()).
			Str("address", serverAddr).
			Msg("gRPC connect failed")
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().
				Err(err).
				Str("error_code", common.ErrCodeGRPCConnectionCloseFailed.String()).
				Str("error_message", common.ErrMsgGRPCConnectionCloseFailed.String()).
				Msg("Failed to close gRPC connection")
		}
	}()

	err = streamSnapshots(ctx, service.NewCandleServiceClient(conn), timeframe)
	if status.Code(err) == codes.InvalidArgument {
		return backoff.Permanent(err)
	}
	return err
}

func streamSnapshots(ctx context.Context, client *service.CandleServiceClient, timeframe string) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Subscribe(streamCtx, timeframe)
	if err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	log.Info().Str("timeframe", timeframe).Msg("Subscribed to snapshot stream")

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			log.Info().Msg("Stream closed by server (EOF)")
			return err
		}
		if err != nil {
			if isContextError(err) || status.Code(err) == codes.Canceled {
				log.Debug().Err(err).Msg("Context canceled, stopping stream")
				return backoff.Permanent(context.Canceled)
			}
			return fmt.Errorf("receive error: %w", err)
		}

		snap, err := service.DecodeSnapshot(msg)
		if err != nil {
			return backoff.Permanent(err)
		}
		printSnapshot(snap)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func printSnapshot(snap models.Snapshot) {
	if !snap.Ready || len(snap.Candles) == 0 {
		fmt.Printf("[%s] waiting for data\n", snap.Timeframe)
		return
	}
	c := snap.Candles[len(snap.Candles)-1]
	fmt.Printf("[%s @ %s] O=%s H=%s L=%s C=%s last=%s (%s, %d candles)\n",
		snap.Timeframe, c.Time().UTC().Format(time.RFC3339),
		c.Open, c.High, c.Low, c.Close, snap.LatestPrice, snap.Direction, len(snap.Candles))
}
