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

package postgres

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blinklabs-io/zktender/database/plugin/metadata/internal/gormstore"
)

// ConnConfig locates the Postgres database holding tender metadata. A
// non-empty DSN overrides the individual fields
type ConnConfig struct {
	Host     string
	Port     uint
	User     string
	Password string
	Database string
	SSLMode  string
	TimeZone string
	DSN      string
}

// withDefaults fills unset connection fields
func (c ConnConfig) withDefaults() ConnConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.User == "" {
		c.User = "postgres"
	}
	if c.Database == "" {
		c.Database = "postgres"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	c.DSN = strings.TrimSpace(c.DSN)
	return c
}

// String returns the DSN, or a keyword/value string built from the fields
func (c ConnConfig) String() string {
	if c.DSN != "" {
		return c.DSN
	}
	return strings.Join(
		[]string{
			"host=" + c.Host,
			"user=" + c.User,
			"password=" + c.Password,
			"dbname=" + c.Database,
			"port=" + strconv.FormatUint(uint64(c.Port), 10),
			"sslmode=" + c.SSLMode,
			"TimeZone=" + c.TimeZone,
		},
		" ",
	)
}

// MetadataStorePostgres stores tender metadata in Postgres.
type MetadataStorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	conn         ConnConfig
}

type PostgresOptionFunc func(*MetadataStorePostgres)

// WithLogger specifies the logger for tender metadata operations
func WithLogger(logger *slog.Logger) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry for store metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.promRegistry = registry
	}
}

// WithConnection specifies where the tender database lives
func WithConnection(conn ConnConfig) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn = conn
	}
}

// New creates a new Postgres metadata store
func New(
	conn ConnConfig,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStorePostgres, error) {
	return NewWithOptions(
		WithConnection(conn),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new Postgres metadata store with options. The
// connection is opened by Start
func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	db := &MetadataStorePostgres{}
	for _, opt := range opts {
		opt(db)
	}
	db.conn = db.conn.withDefaults()
	return db, nil
}

// SetLogger sets the logger used once the store is started
func (d *MetadataStorePostgres) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry sets the metrics registry used once the store is started
func (d *MetadataStorePostgres) SetPromRegistry(
	registry prometheus.Registerer,
) {
	d.promRegistry = registry
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadataDb, err := gorm.Open(
		postgres.Open(d.conn.String()),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"host", d.conn.Host,
		"port", d.conn.Port,
		"database", d.conn.Database,
	)
	// Configure connection pool
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	d.Store = gormstore.New(metadataDb, d.logger)
	// Store is kept for recovery even when migration fails
	return d.Store.Init()
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

// Close closes the database handle, if one was opened
func (d *MetadataStorePostgres) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
