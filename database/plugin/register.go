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

package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob PluginType = iota + 1
	PluginTypeMetadata
)

// EnvVarPrefix is prepended to the generated environment variable name of
// each plugin option
const EnvVarPrefix = "ZKTENDER_DATABASE"

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

func pluginTypeFromName(name string) (PluginType, bool) {
	switch name {
	case "blob":
		return PluginTypeBlob, true
	case "metadata":
		return PluginTypeMetadata, true
	default:
		return 0, false
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

// PluginOption describes a single configurable value of a plugin. Dest must
// be a pointer matching Type
type PluginOption struct {
	Name         string
	Type         PluginOptionType
	Description  string
	DefaultValue any
	Dest         any
	CustomEnvVar string
}

type PluginEntry struct {
	Type               PluginType
	Name               string
	Description        string
	NewFromOptionsFunc func() Plugin
	Options            []PluginOption
}

var (
	pluginEntries   []PluginEntry
	pluginEntriesMu sync.RWMutex
)

// Register adds a plugin entry to the registry. A later registration with
// the same type and name replaces the earlier one
func Register(pluginEntry PluginEntry) {
	pluginEntriesMu.Lock()
	defer pluginEntriesMu.Unlock()
	for i := range pluginEntries {
		if pluginEntries[i].Type == pluginEntry.Type &&
			pluginEntries[i].Name == pluginEntry.Name {
			pluginEntries[i] = pluginEntry
			return
		}
	}
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registered entries of a plugin type
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesMu.RLock()
	defer pluginEntriesMu.RUnlock()
	ret := []PluginEntry{}
	for _, entry := range pluginEntries {
		if entry.Type == pluginType {
			ret = append(ret, entry)
		}
	}
	return ret
}

// GetPlugin returns a new plugin instance built from its current options,
// or nil if no such plugin is registered
func GetPlugin(pluginType PluginType, pluginName string) Plugin {
	pluginEntriesMu.RLock()
	var newFunc func() Plugin
	for _, entry := range pluginEntries {
		if entry.Type == pluginType && entry.Name == pluginName {
			newFunc = entry.NewFromOptionsFunc
			break
		}
	}
	pluginEntriesMu.RUnlock()
	if newFunc == nil {
		return nil
	}
	return newFunc()
}

func flagName(entry PluginEntry, opt PluginOption) string {
	return fmt.Sprintf(
		"%s-%s-%s",
		PluginTypeName(entry.Type),
		entry.Name,
		opt.Name,
	)
}

func envVarName(entry PluginEntry, opt PluginOption) string {
	if opt.CustomEnvVar != "" {
		return opt.CustomEnvVar
	}
	name := fmt.Sprintf(
		"%s_%s_%s_%s",
		EnvVarPrefix,
		PluginTypeName(entry.Type),
		entry.Name,
		opt.Name,
	)
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// PopulateCmdlineOptions adds a flag for every registered plugin option
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMu.RLock()
	defer pluginEntriesMu.RUnlock()
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			name := flagName(entry, opt)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok || dest == nil {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(string)
				fs.StringVar(dest, name, def, opt.Description)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok || dest == nil {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(bool)
				fs.BoolVar(dest, name, def, opt.Description)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok || dest == nil {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(int)
				fs.IntVar(dest, name, def, opt.Description)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok || dest == nil {
					return fmt.Errorf("invalid destination for option %s", name)
				}
				def, _ := opt.DefaultValue.(uint64)
				fs.Uint64Var(dest, name, def, opt.Description)
			default:
				return fmt.Errorf(
					"unknown plugin option type %d for option %s",
					opt.Type,
					name,
				)
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a parsed config file. The map is
// keyed by plugin type name, then plugin name, then option name
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for typeName, plugins := range pluginConfig {
		pluginType, ok := pluginTypeFromName(typeName)
		if !ok {
			return fmt.Errorf("unknown plugin type: %s", typeName)
		}
		for pluginName, options := range plugins {
			for optName, optValue := range options {
				if err := setOptionFromConfig(pluginType, pluginName, optName, optValue); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func setOptionFromConfig(
	pluginType PluginType,
	pluginName string,
	optName string,
	value any,
) error {
	// YAML decodes integers as int, which SetPluginOption handles for both
	// int and uint options. Strings for numeric options come from quoting
	opt, found := lookupOption(pluginType, pluginName, optName)
	if !found {
		return SetPluginOption(pluginType, pluginName, optName, value)
	}
	if strVal, isStr := value.(string); isStr && opt.Type != PluginOptionTypeString {
		parsed, err := parseOptionValue(opt, strVal)
		if err != nil {
			return err
		}
		value = parsed
	}
	return SetPluginOption(pluginType, pluginName, optName, value)
}

func lookupOption(
	pluginType PluginType,
	pluginName string,
	optName string,
) (PluginOption, bool) {
	pluginEntriesMu.RLock()
	defer pluginEntriesMu.RUnlock()
	for _, entry := range pluginEntries {
		if entry.Type != pluginType || entry.Name != pluginName {
			continue
		}
		for _, opt := range entry.Options {
			if opt.Name == optName {
				return opt, true
			}
		}
	}
	return PluginOption{}, false
}

func parseOptionValue(opt PluginOption, raw string) (any, error) {
	switch opt.Type {
	case PluginOptionTypeString:
		return raw, nil
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool for option %s: %w", opt.Name, err)
		}
		return v, nil
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid int for option %s: %w", opt.Name, err)
		}
		return v, nil
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid uint for option %s: %w", opt.Name, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf(
			"unknown plugin option type %d for option %s",
			opt.Type,
			opt.Name,
		)
	}
}

// ProcessEnvVars applies plugin options from environment variables of the
// form ZKTENDER_DATABASE_<TYPE>_<PLUGIN>_<OPTION>
func ProcessEnvVars() error {
	pluginEntriesMu.RLock()
	type pending struct {
		pluginType PluginType
		pluginName string
		opt        PluginOption
		raw        string
	}
	var updates []pending
	for _, entry := range pluginEntries {
		for _, opt := range entry.Options {
			if raw, ok := os.LookupEnv(envVarName(entry, opt)); ok {
				updates = append(updates, pending{
					pluginType: entry.Type,
					pluginName: entry.Name,
					opt:        opt,
					raw:        raw,
				})
			}
		}
	}
	pluginEntriesMu.RUnlock()
	for _, u := range updates {
		value, err := parseOptionValue(u.opt, u.raw)
		if err != nil {
			return err
		}
		if err := SetPluginOption(u.pluginType, u.pluginName, u.opt.Name, value); err != nil {
			return err
		}
	}
	return nil
}
