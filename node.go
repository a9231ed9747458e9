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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/zktender/api"
	"github.com/blinklabs-io/zktender/database"
	"github.com/blinklabs-io/zktender/event"
	"github.com/blinklabs-io/zktender/oracle"
	"github.com/blinklabs-io/zktender/tender"
	"github.com/blinklabs-io/zktender/zkcrypto"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	engine        *tender.Engine
	api           *api.Server
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	openMu        sync.Mutex
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n.eventBus = event.NewEventBus(cfg.promRegistry, cfg.logger)
	return n, nil
}

// Open loads the database and tender engine without starting the API. It is
// called by Run and may be used directly by tooling that only needs the engine
func (n *Node) Open(ctx context.Context) error {
	n.openMu.Lock()
	defer n.openMu.Unlock()
	if n.engine != nil {
		return nil
	}
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	dbConfig := &database.Config{
		DataDir:        n.config.dataDir,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
	}
	db, err := database.New(dbConfig)
	if db == nil {
		if err == nil {
			err = errors.New("empty database returned")
		}
		n.config.logger.Error(
			"failed to create database",
			"error",
			err,
		)
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, needs recovery",
			"error",
			err,
		)
		if err := n.db.RecoverCommitTimestamp(); err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	// Load crypto suite
	suite, err := zkcrypto.Lookup(n.config.cryptoSuite)
	if err != nil {
		return err
	}
	// Load tender engine
	engine, err := tender.NewEngine(tender.EngineConfig{
		Database: n.db,
		Oracle: oracle.NewAdapter(
			n.config.oracle,
			oracle.WithLogger(n.config.logger),
			oracle.WithTimeout(n.config.oracleTimeout),
		),
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Crypto:       suite,
		VoteStake:    n.config.voteStake,
		CommentStake: n.config.commentStake,
	})
	if err != nil {
		return fmt.Errorf("failed to load tender engine: %w", err)
	}
	n.engine = engine
	// Record lifecycle events in the log
	n.eventBus.SubscribeFunc(event.EventTypeAll, n.auditEvent)
	if n.config.seedDemo {
		if err := n.seedDemo(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) Run(ctx context.Context) error {
	if err := n.Open(ctx); err != nil {
		return err
	}
	// Configure HTTP API
	if n.config.apiListenAddress != "" {
		apiServer := api.New(
			api.ServerConfig{
				ListenAddress:   n.config.apiListenAddress,
				RateLimit:       n.config.apiRateLimit,
				RateBurst:       n.config.apiRateBurst,
				ShutdownTimeout: n.config.shutdownTimeout,
				OracleEnabled:   n.config.oracle != nil,
				PromRegistry:    n.config.promRegistry,
			},
			n.engine,
			n.config.logger,
		)
		if err := apiServer.Start(ctx); err != nil {
			return err
		}
		n.openMu.Lock()
		n.api = apiServer
		n.openMu.Unlock()
	}
	n.config.logger.Info(
		"node started",
		"api_address", n.ApiAddr(),
		"oracle_enabled", n.config.oracle != nil,
	)

	// Wait for shutdown signal
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return n.Stop()
	}
}

// Engine returns the tender engine once the node has been opened
func (n *Node) Engine() *tender.Engine {
	n.openMu.Lock()
	defer n.openMu.Unlock()
	return n.engine
}

// EventBus returns the node event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// ApiAddr returns the bound API address, or an empty string when the API is
// not running
func (n *Node) ApiAddr() string {
	n.openMu.Lock()
	defer n.openMu.Unlock()
	if n.api == nil {
		return ""
	}
	return n.api.Addr()
}

func (n *Node) seedDemo(ctx context.Context) error {
	for _, spec := range tender.DemoTenders {
		err := n.engine.Seed(ctx, spec)
		if errors.Is(err, tender.ErrTenderExists) {
			n.config.logger.Debug(
				"demo tender already exists",
				"tender", spec.ID,
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed tender %s: %w", spec.ID, err)
		}
		n.config.logger.Info(
			"seeded demo tender",
			"tender", spec.ID,
			"phase", spec.Phase,
		)
	}
	return nil
}

func (n *Node) auditEvent(evt event.Event) {
	switch data := evt.Data.(type) {
	case tender.PhaseEvent:
		n.config.logger.Info(
			"phase changed",
			"component", "audit",
			"tender", data.TenderID,
			"from", data.From,
			"to", data.To,
			"forward", data.Forward,
			"reason", data.Reason,
		)
	case tender.EvaluatedEvent:
		n.config.logger.Info(
			"submission evaluated",
			"component", "audit",
			"tender", data.TenderID,
			"submission", data.SubmissionID,
			"final", data.Final,
			"score", data.Score,
			"ai_powered", data.AIPowered,
		)
	default:
		n.config.logger.Debug(
			"tender event",
			"component", "audit",
			"type", evt.Type,
			"data", evt.Data,
		)
	}
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	n.openMu.Lock()
	apiServer := n.api
	n.openMu.Unlock()
	if apiServer != nil {
		if stopErr := apiServer.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain event subscribers
	n.config.logger.Debug("shutdown phase 2: draining events")

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
