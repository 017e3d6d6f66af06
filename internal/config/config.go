// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

// Package config loads service configuration from defaults, an
// optional YAML file, and command-line flag overrides, in that order.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the forgechat service configuration.
type Config struct {
	ChatAddr     string   `koanf:"chat_addr"`
	AdminAddr    string   `koanf:"admin_addr"`
	MetricsAddr  string   `koanf:"metrics_addr"` // empty disables the observability server
	PluginsDir   string   `koanf:"plugins_dir"`
	CompilerArgv []string `koanf:"compiler_argv"` // {src} and {out} placeholders
	LogFormat    string   `koanf:"log_format"`    // "json" or "text"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChatAddr:    ":8888",
		AdminAddr:   ":8081",
		MetricsAddr: "",
		PluginsDir:  "plugins",
		LogFormat:   "json",
	}
}

// RegisterFlags declares the flag overrides on the given set. Flag
// names use dashes; they map onto the underscore config keys.
func RegisterFlags(flags *pflag.FlagSet) {
	def := Default()
	flags.String("chat-addr", def.ChatAddr, "chat listen address")
	flags.String("admin-addr", def.AdminAddr, "admin HTTP listen address")
	flags.String("metrics-addr", def.MetricsAddr, "metrics listen address (empty disables)")
	flags.String("plugins-dir", def.PluginsDir, "plugin artifact directory")
	flags.String("log-format", def.LogFormat, "log output format (json or text)")
}

// Load resolves the configuration: defaults, then the YAML file at
// path (if non-empty), then any changed flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.With("config_file", path).Wrapf(err, "load config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Wrapf(err, "load flag overrides")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Wrapf(err, "unmarshal config")
	}
	if len(cfg.CompilerArgv) == 0 {
		cfg.CompilerArgv = nil // build orchestrator applies its default argv
	}
	return cfg, nil
}
