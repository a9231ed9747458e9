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

package plugin_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/zktender/database/plugin"
	_ "github.com/blinklabs-io/zktender/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/zktender/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/zktender/internal/config"
)

// These tests mutate global plugin option state and must not run in parallel

func TestSetPluginOptionSuccessAndTypeCheck(t *testing.T) {
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "data-dir", ""),
	)
	// Wrong type
	require.Error(
		t,
		plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "data-dir", 123),
	)
	// Unknown options are ignored
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "does-not-exist", "x"),
	)
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "data-dir", t.TempDir()),
	)
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "block-cache-size", uint64(100000000)),
	)
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "gc", true),
	)
	require.Error(
		t,
		plugin.SetPluginOption(plugin.PluginTypeMetadata, "nonexistent", "data-dir", t.TempDir()),
	)
	// Reset for other tests
	require.NoError(
		t,
		plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "data-dir", ""),
	)
}

func TestProcessConfig(t *testing.T) {
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {
			config.DefaultBlobPlugin: {
				"gc":               "false",
				"block-cache-size": 1024,
			},
		},
	})
	require.NoError(t, err)

	err = plugin.ProcessConfig(map[string]map[string]map[string]any{
		"bogus": {},
	})
	require.Error(t, err)

	err = plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {
			config.DefaultBlobPlugin: {
				"gc": "not-a-bool",
			},
		},
	})
	require.Error(t, err)
}

func TestProcessEnvVars(t *testing.T) {
	t.Setenv("ZKTENDER_DATABASE_METADATA_SQLITE_DATA_DIR", "")
	require.NoError(t, plugin.ProcessEnvVars())
	t.Setenv("ZKTENDER_DATABASE_BLOB_BADGER_GC", "maybe")
	require.Error(t, plugin.ProcessEnvVars())
}

func TestPopulateCmdlineOptions(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	assert.NotNil(t, fs.Lookup("metadata-sqlite-data-dir"))
	assert.NotNil(t, fs.Lookup("blob-badger-data-dir"))
}
