package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.default.yaml
var defaultConfig []byte

const (
	configPathEnv = "CONFIG_PATH"
	envPrefix     = "FACILITY_"
)

// ConfigManager loads configuration in layers: the embedded defaults, an
// optional file named by CONFIG_PATH, any files passed in, then FACILITY_*
// environment variables.
type ConfigManager[T any] struct {
	kf *koanf.Koanf
}

func NewConfigManager[T any](files ...string) (*ConfigManager[T], error) {
	cm := &ConfigManager[T]{
		kf: koanf.New("."),
	}

	if err := cm.kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath := os.Getenv(configPathEnv); configPath != "" {
		files = append([]string{configPath}, files...)
	}
	for _, path := range files {
		if path == "" {
			continue
		}
		if err := cm.loadFile(path); err != nil {
			return nil, err
		}
	}

	// Env names are upper-case; resolve them onto the camelCase keys already known
	known := make(map[string]string)
	for _, k := range cm.kf.Keys() {
		known[strings.ToLower(k)] = k
	}
	if err := cm.kf.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := envKey(s)
		if k, ok := known[key]; ok {
			return k
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	return cm, nil
}

// loadFile merges a yaml, json or toml config file over the current values
func (cm *ConfigManager[T]) loadFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".toml":
		parser = tomlParser{}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := cm.kf.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// GetConfig unmarshals the merged configuration into T
func (cm *ConfigManager[T]) GetConfig() T {
	var config T

	err := cm.kf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Metadata:         nil,
			Result:           &config,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	return config
}

// Print returns the merged configuration as sorted key=value lines with
// passwords and tokens masked
func (cm *ConfigManager[T]) Print() string {
	keys := cm.kf.Keys()
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		value := fmt.Sprint(cm.kf.Get(k))
		if isSecretKey(k) && value != "" {
			value = "********"
		}
		fmt.Fprintf(&b, "%s=%s\n", k, value)
	}
	return b.String()
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return strings.HasSuffix(key, "password") || strings.HasSuffix(key, "token")
}

// FACILITY_GATEWAY_HTTP_PORT -> gateway.http.port
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
}

// tomlParser adapts go-toml to koanf's Parser interface
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return toml.Marshal(m)
}
