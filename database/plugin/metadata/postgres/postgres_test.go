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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	m, err := NewWithOptions(
		WithConnection(ConnConfig{
			Host:     "db.local",
			Port:     6543,
			User:     "tender",
			Password: "secret",
			Database: "zktender",
			SSLMode:  "require",
			TimeZone: "Europe/Berlin",
		}),
		WithLogger(logger),
		WithPromRegistry(registry),
	)
	require.NoError(t, err)
	assert.Equal(
		t,
		ConnConfig{
			Host:     "db.local",
			Port:     6543,
			User:     "tender",
			Password: "secret",
			Database: "zktender",
			SSLMode:  "require",
			TimeZone: "Europe/Berlin",
		},
		m.conn,
	)
	assert.Same(t, logger, m.logger)
	assert.Equal(t, prometheus.Registerer(registry), m.promRegistry)
}

func TestDefaults(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	assert.Equal(
		t,
		ConnConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "postgres",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
		m.conn,
	)
}

func TestConnString(t *testing.T) {
	m, err := New(
		ConnConfig{Host: "db", User: "u", Password: "p", Database: "zk"},
		nil,
		nil,
	)
	require.NoError(t, err)
	assert.Equal(
		t,
		"host=db user=u password=p dbname=zk port=5432 sslmode=disable TimeZone=UTC",
		m.conn.String(),
	)

	m, err = New(ConnConfig{DSN: "  postgres://u:p@db/zk  "}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/zk", m.conn.String())
}

func TestNewFromCmdlineOptions(t *testing.T) {
	initCmdlineOptions()
	p := NewFromCmdlineOptions()
	m, ok := p.(*MetadataStorePostgres)
	require.True(t, ok)
	assert.Equal(t, "zktender", m.conn.Database)
	assert.Equal(t, uint(5432), m.conn.Port)
}

func TestCloseWithoutStart(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	assert.NoError(t, m.Stop())
}
