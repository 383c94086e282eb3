// Package config loads process bootstrap configuration via viper:
// a config file if present, overridden by FASTESTSSBC_-prefixed
// environment variables, falling back to commonconst defaults.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/fastestssbc/commonconst"
)

// NodeConfig is what a coordination node needs to bootstrap: where to
// listen, where the registry lives, and how to advertise itself so
// peers can reach it.
type NodeConfig struct {
	ListenAddr      string
	AdvertiseAddr   string
	RegistryAddr    string
	MaxRetries      int
	Backoff         time.Duration
	OperatorTimeout time.Duration
	RedisAddr       string
}

// RegistryConfig is what the registry process needs to bootstrap.
type RegistryConfig struct {
	ListenAddr string
	DataPath   string
}

func newViper(configName string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/fastestssbc")
	v.SetEnvPrefix("FASTESTSSBC")
	v.AutomaticEnv()
	return v
}

// LoadNodeConfig reads "node.yaml" (if present) plus environment
// overrides, falling back to commonconst defaults for anything unset.
func LoadNodeConfig() (NodeConfig, error) {
	v := newViper("node")
	v.SetDefault("listen_addr", commonconst.DefaultListenAddr)
	v.SetDefault("advertise_addr", "http://127.0.0.1"+commonconst.DefaultListenAddr)
	v.SetDefault("registry_addr", commonconst.DefaultRegistryAddr)
	v.SetDefault("max_retries", commonconst.DefaultMaxRetries)
	v.SetDefault("backoff_ms", commonconst.DefaultBackoff.Milliseconds())
	v.SetDefault("operator_timeout_ms", commonconst.DefaultOperatorTimeout.Milliseconds())
	v.SetDefault("redis_addr", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return NodeConfig{}, err
		}
	}

	return NodeConfig{
		ListenAddr:      v.GetString("listen_addr"),
		AdvertiseAddr:   v.GetString("advertise_addr"),
		RegistryAddr:    v.GetString("registry_addr"),
		MaxRetries:      v.GetInt("max_retries"),
		Backoff:         time.Duration(v.GetInt64("backoff_ms")) * time.Millisecond,
		OperatorTimeout: time.Duration(v.GetInt64("operator_timeout_ms")) * time.Millisecond,
		RedisAddr:       v.GetString("redis_addr"),
	}, nil
}

// LoadRegistryConfig reads "registry.yaml" (if present) plus
// environment overrides.
func LoadRegistryConfig() (RegistryConfig, error) {
	v := newViper("registry")
	v.SetDefault("listen_addr", commonconst.DefaultRegistryListenAddr)
	v.SetDefault("data_path", commonconst.DefaultLevelDBPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return RegistryConfig{}, err
		}
	}

	return RegistryConfig{
		ListenAddr: v.GetString("listen_addr"),
		DataPath:   v.GetString("data_path"),
	}, nil
}
