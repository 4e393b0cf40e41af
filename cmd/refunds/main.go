package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-refunds/internal/app"
	"github.com/noah-isme/toko-refunds/internal/common"
	"github.com/noah-isme/toko-refunds/internal/config"
	"github.com/noah-isme/toko-refunds/internal/obs"
	"github.com/noah-isme/toko-refunds/internal/pricing"
	"github.com/noah-isme/toko-refunds/internal/refund"
)

const (
	exitOK      = 0
	exitFatal   = 1
	exitUsage   = 2
	exitPartial = 3
)

type totalsInput struct {
	OwnerID string             `json:"ownerId"`
	Items   []pricing.LineItem `json:"items"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("refunds", flag.ContinueOnError)
	orderID := fs.String("order", "", "order id to refund")
	requestsPath := fs.String("requests", "", "JSON file with refund requests, - for stdin")
	confirm := fs.Bool("confirm", false, "confirm created refunds and request gateway refund payments")
	totalsPath := fs.String("totals", "", "JSON file with line items to total instead of refunding")
	check := fs.Bool("check", false, "probe collaborators and redis, then exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	modes := 0
	for _, set := range []bool{*orderID != "", *totalsPath != "", *check} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(fs.Output(), "exactly one of -order, -totals or -check is required")
		fs.Usage()
		return exitUsage
	}
	if *orderID != "" && *requestsPath == "" {
		fmt.Fprintln(fs.Output(), "-order requires -requests; pass [{}] to refund the whole order")
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}
	logger := obs.NewLoggerTo(os.Stderr, cfg.LogFormat, cfg.LogLevel).With().Str("component", "refunds").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   cfg.OTelServiceName,
		Endpoint:      cfg.OTelEndpoint,
		Exporter:      cfg.OTelExporter,
		SamplingRatio: cfg.OTelSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("init tracer")
		return exitFatal
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	redisClient, err := initRedis(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init redis")
		return exitFatal
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	deps, err := app.Build(cfg, logger, redisClient)
	if err != nil {
		logger.Error().Err(err).Msg("build dependencies")
		return exitFatal
	}

	switch {
	case *check:
		report := deps.Health.Run(ctx)
		_ = common.WriteJSON(stdout, report)
		if !report.OK() {
			return exitFatal
		}
		return exitOK
	case *totalsPath != "":
		return runTotals(ctx, deps, *totalsPath, stdin, stdout, logger)
	}
	return runRefunds(ctx, deps, *orderID, *requestsPath, *confirm, stdin, stdout, logger)
}

func runRefunds(ctx context.Context, deps *app.Dependencies, orderID, path string, confirm bool, stdin io.Reader, stdout io.Writer, logger zerolog.Logger) int {
	var requests []refund.Request
	if err := readJSON(path, stdin, &requests); err != nil {
		logger.Error().Err(err).Msg("read refund requests")
		return exitUsage
	}

	result, err := deps.Refunds.ReconcileAndCreateRefunds(ctx, orderID, requests, refund.Options{ConfirmAndCreatePayment: confirm})
	if err != nil {
		appErr := common.AsAppError(err)
		logger.Error().Err(err).Str("order_id", orderID).Str("code", appErr.Code).Msg("refund batch aborted")
		_ = common.WriteJSON(stdout, appErr.Public())
		return exitFatal
	}
	if err := common.WriteJSON(stdout, result); err != nil {
		logger.Error().Err(err).Msg("write result")
		return exitFatal
	}
	logger.Info().
		Str("order_id", orderID).
		Int("created", len(result.Refunds)).
		Int("failed", len(result.Errors)).
		Msg("refund batch complete")
	if len(result.Errors) > 0 {
		return exitPartial
	}
	return exitOK
}

func runTotals(ctx context.Context, deps *app.Dependencies, path string, stdin io.Reader, stdout io.Writer, logger zerolog.Logger) int {
	if deps.Calculator == nil {
		logger.Error().Msg("PRODUCT_SERVICE_URL is required for totals")
		return exitFatal
	}
	var in totalsInput
	if err := readJSON(path, stdin, &in); err != nil {
		logger.Error().Err(err).Msg("read line items")
		return exitUsage
	}
	totals, err := deps.Calculator.CalculateTotals(ctx, in.OwnerID, in.Items)
	if err != nil {
		logger.Error().Err(err).Str("owner_id", in.OwnerID).Msg("calculate totals")
		_ = common.WriteJSON(stdout, common.AsAppError(err).Public())
		return exitFatal
	}
	if err := common.WriteJSON(stdout, totals); err != nil {
		logger.Error().Err(err).Msg("write totals")
		return exitFatal
	}
	return exitOK
}

func readJSON(path string, stdin io.Reader, dst any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty input")
		}
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
