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

package archive_test

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/zktender/archive"
	"github.com/blinklabs-io/zktender/database"
	"github.com/blinklabs-io/zktender/oracle"
	"github.com/blinklabs-io/zktender/tender"
	"github.com/blinklabs-io/zktender/zkcrypto"
)

func newSeededEngine(t *testing.T, tenderID string) *tender.Engine {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	engine, err := tender.NewEngine(tender.EngineConfig{
		Database:     db,
		Oracle:       oracle.NewAdapter(nil),
		PromRegistry: prometheus.NewRegistry(),
		Crypto:       zkcrypto.NewSHA256(),
	})
	require.NoError(t, err)
	for _, spec := range tender.DemoTenders {
		if spec.ID == tenderID {
			require.NoError(t, engine.Seed(context.Background(), spec))
			return engine
		}
	}
	t.Fatalf("no demo tender %s", tenderID)
	return nil
}

func TestExportAndRead(t *testing.T) {
	engine := newSeededEngine(t, "zk4")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	manifest, err := archive.Export(context.Background(), engine, "zk4", &buf, now)
	require.NoError(t, err)
	assert.Equal(t, "zk4", manifest.TenderID)
	assert.Equal(t, string(tender.PhaseVoting), manifest.Phase)

	bundle, err := archive.Read(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, manifest.TenderID, bundle.Manifest.TenderID)
	assert.Equal(t, manifest.Entries, bundle.Manifest.Entries)
	assert.True(t, bundle.Manifest.CreatedAt.Equal(now))

	var state tender.PublicState
	require.NoError(t, json.Unmarshal(bundle.Entries["state.json"], &state))
	assert.Equal(t, "zk4", state.TenderID)
	require.NotEmpty(t, state.Commitments)

	var stats []tender.SubmissionStats
	require.NoError(t, json.Unmarshal(bundle.Entries["stats.json"], &stats))
	assert.Len(t, stats, len(state.Commitments))

	for _, c := range state.Commitments {
		payload, ok := bundle.Entries["payloads/"+c.SubmissionID+".bin"]
		require.True(t, ok, c.SubmissionID)
		assert.True(t, strings.HasPrefix(string(payload), "sealed proposal"))
		assert.Contains(t, bundle.Entries, "comments/"+c.SubmissionID+".json")
	}
	for _, name := range []string{
		archive.ManifestName,
		"phases.json",
		"evaluations.json",
		"final-evaluations.json",
	} {
		assert.Contains(t, bundle.Entries, name)
	}
}

func TestExportUnknownTender(t *testing.T) {
	engine := newSeededEngine(t, "zk2")
	var buf bytes.Buffer
	_, err := archive.Export(context.Background(), engine, "nope", &buf, time.Now())
	assert.ErrorIs(t, err, tender.ErrTenderNotFound)
}

func writeBundle(t *testing.T, files map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o640,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return &buf
}

func TestReadInvalidBundles(t *testing.T) {
	testDefs := []struct {
		name  string
		files map[string]string
	}{
		{
			name:  "path traversal",
			files: map[string]string{"../evil.json": "{}"},
		},
		{
			name:  "missing manifest",
			files: map[string]string{"state.json": "{}"},
		},
		{
			name:  "malformed manifest",
			files: map[string]string{archive.ManifestName: "{"},
		},
		{
			name: "missing entry",
			files: map[string]string{
				archive.ManifestName: `{"tender_id":"zk1","entries":["state.json"]}`,
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := archive.Read(context.Background(), writeBundle(t, testDef.files))
			assert.ErrorIs(t, err, archive.ErrInvalidBundle)
		})
	}
}

func TestReadNotZstd(t *testing.T) {
	_, err := archive.Read(context.Background(), strings.NewReader("plain text"))
	assert.Error(t, err)
}
