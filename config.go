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

package zktender

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/zktender/oracle"
	"github.com/blinklabs-io/zktender/zkcrypto"
)

type Config struct {
	promRegistry   prometheus.Registerer
	logger         *slog.Logger
	oracle         oracle.Oracle
	dataDir        string
	blobPlugin     string
	metadataPlugin string
	cryptoSuite    string
	// API listen address (empty = disabled)
	apiListenAddress string
	apiRateLimit     float64
	apiRateBurst     int
	oracleTimeout    time.Duration
	voteStake        float64
	commentStake     float64
	tracing          bool
	tracingStdout    bool
	seedDemo         bool
	shutdownTimeout  time.Duration
}

func (n *Node) configValidate() error {
	if _, err := zkcrypto.Lookup(n.config.cryptoSuite); err != nil {
		return err
	}
	if n.config.voteStake < 0 {
		return fmt.Errorf("invalid vote stake: %v", n.config.voteStake)
	}
	if n.config.commentStake < 0 {
		return fmt.Errorf("invalid comment stake: %v", n.config.commentStake)
	}
	if n.config.tracingStdout && !n.config.tracing {
		return errors.New("stdout tracing requires tracing to be enabled")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new zktender config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithApiListenAddress specifies the listen address for the HTTP API. The API is disabled when empty
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithApiRateLimit specifies the per-client rate limit for mutating API requests. A negative limit disables rate limiting
func WithApiRateLimit(limit float64, burst int) ConfigOptionFunc {
	return func(c *Config) {
		c.apiRateLimit = limit
		c.apiRateBurst = burst
	}
}

// WithOracle specifies the scoring oracle. Without one, every evaluation uses the deterministic fallback
func WithOracle(o oracle.Oracle) ConfigOptionFunc {
	return func(c *Config) {
		c.oracle = o
	}
}

// WithOracleTimeout bounds each oracle call. The default is 30 seconds
func WithOracleTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.oracleTimeout = timeout
	}
}

// WithCryptoSuite selects the commitment and nullifier hash suite by name. This defaults to mimc
func WithCryptoSuite(name string) ConfigOptionFunc {
	return func(c *Config) {
		c.cryptoSuite = name
	}
}

// WithDefaultStakes specifies the stake weights applied to votes and comments that do not carry one
func WithDefaultStakes(vote float64, comment float64) ConfigOptionFunc {
	return func(c *Config) {
		c.voteStake = vote
		c.commentStake = comment
	}
}

// WithSeedDemo provisions the demo tenders on startup when they do not exist yet
func WithSeedDemo(seed bool) ConfigOptionFunc {
	return func(c *Config) {
		c.seedDemo = seed
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
