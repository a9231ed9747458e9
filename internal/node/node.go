// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blinklabs-io/zktender"
	"github.com/blinklabs-io/zktender/internal/config"
	"github.com/blinklabs-io/zktender/oracle"
)

// NodeOptions translates the loaded configuration into node options
func NodeOptions(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) ([]zktender.ConfigOptionFunc, error) {
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	oracleTimeout, err := cfg.OracleTimeoutDuration()
	if err != nil {
		return nil, err
	}
	opts := []zktender.ConfigOptionFunc{
		zktender.WithLogger(logger),
		zktender.WithDatabasePath(cfg.DatabasePath),
		zktender.WithBlobPlugin(cfg.BlobPlugin),
		zktender.WithMetadataPlugin(cfg.MetadataPlugin),
		zktender.WithCryptoSuite(cfg.CryptoSuite),
		zktender.WithDefaultStakes(cfg.VoteStake, cfg.CommentStake),
		zktender.WithApiRateLimit(cfg.ApiRateLimit, cfg.ApiRateBurst),
		zktender.WithOracleTimeout(oracleTimeout),
		zktender.WithSeedDemo(cfg.SeedDemo),
		zktender.WithTracing(cfg.Tracing),
		zktender.WithTracingStdout(cfg.TracingStdout),
		zktender.WithShutdownTimeout(shutdownTimeout),
		zktender.WithPrometheusRegistry(promRegistry),
	}
	if cfg.ApiPort > 0 {
		opts = append(
			opts,
			zktender.WithApiListenAddress(
				net.JoinHostPort(
					cfg.BindAddr,
					strconv.FormatUint(uint64(cfg.ApiPort), 10),
				),
			),
		)
	}
	if cfg.OracleApiKey != "" {
		opts = append(
			opts,
			zktender.WithOracle(
				oracle.NewClient(
					cfg.OracleBaseUrl,
					cfg.OracleApiKey,
					oracle.WithModel(cfg.OracleModel),
					oracle.WithRequestTimeout(oracleTimeout),
					oracle.WithRateLimit(cfg.OracleRateLimit, cfg.OracleRateBurst),
				),
			),
		)
	} else {
		logger.Warn(
			"no oracle API key configured, evaluations will use the deterministic fallback",
			"component", "node",
		)
	}
	return opts, nil
}

// Open creates a node with an opened database and tender engine but no
// listeners. The caller is responsible for calling Stop
func Open(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*zktender.Node, error) {
	opts, err := NodeOptions(cfg, logger, promRegistry)
	if err != nil {
		return nil, err
	}
	// Tooling never serves the API
	opts = append(opts, zktender.WithApiListenAddress(""))
	n, err := zktender.New(zktender.NewConfig(opts...))
	if err != nil {
		return nil, err
	}
	if err := n.Open(ctx); err != nil {
		return nil, errors.Join(err, n.Stop())
	}
	return n, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", redacted(cfg)), "component", "node")
	// Enable metrics with default prometheus registry
	opts, err := NodeOptions(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}
	n, err := zktender.New(zktender.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics and debug listener
	http.Handle("/metrics", promhttp.Handler())
	metricsAddr := net.JoinHostPort(
		cfg.BindAddr,
		strconv.FormatUint(uint64(cfg.MetricsPort), 10),
	)
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	g, ctx := errgroup.WithContext(signalCtx)
	g.Go(func() error {
		return n.Run(ctx)
	})
	if cfg.MetricsPort > 0 {
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component",
			"node",
		)
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			//nolint:contextcheck
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if signalCtx.Err() != nil {
		logger.Info("signal received, initiating graceful shutdown")
	}
	if err != nil {
		logger.Error("node error", "error", err)
	}
	// Stop is a no-op when the node already shut itself down
	if stopErr := n.Stop(); stopErr != nil {
		logger.Error("shutdown errors occurred", "error", stopErr)
		err = errors.Join(err, stopErr)
	}
	if err == nil {
		logger.Info("shutdown complete")
	}
	return err
}

// redacted returns a copy of the config that is safe to log
func redacted(cfg *config.Config) config.Config {
	ret := *cfg
	if ret.OracleApiKey != "" {
		ret.OracleApiKey = "REDACTED"
	}
	return ret
}
