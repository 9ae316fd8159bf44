/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/sbahar619/nodeselector-notify/internal/policy"
)

// Environment variables read by Load.
const (
	EnvWebhookURL         = "SLACK_WEBHOOK_URL"
	EnvEnvironment        = "ENV"
	EnvIgnoredNamespaces  = "IGNORED_NAMESPACES"
	EnvNotifyTimeout      = "NOTIFY_TIMEOUT"
	EnvNotifyMaxInFlight  = "NOTIFY_MAX_IN_FLIGHT"
	EnvMetricsBindAddress = "METRICS_BIND_ADDRESS"
	EnvProbeBindAddress   = "HEALTH_PROBE_BIND_ADDRESS"
	EnvLogLevel           = "LOG_LEVEL"
)

// Defaults applied when an optional variable is unset or blank.
const (
	DefaultEnvironment        = "unknown"
	DefaultNotifyTimeout      = 10 * time.Second
	DefaultNotifyMaxInFlight  = 1
	DefaultMetricsBindAddress = "0" // disabled
	DefaultProbeBindAddress   = ":8081"
)

// ErrMissingWebhookURL is returned when the notification endpoint is not configured.
var ErrMissingWebhookURL = errors.New(EnvWebhookURL + " environment variable must be set")

// Config is the startup configuration. It is immutable once loaded.
type Config struct {
	WebhookURL         string
	Environment        string
	IgnoredNamespaces  sets.Set[string]
	NotifyTimeout      time.Duration
	NotifyMaxInFlight  int64
	MetricsBindAddress string
	ProbeBindAddress   string
	LogLevel           zapcore.Level
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnvironment loads the configuration from the process environment.
func FromEnvironment() (*Config, error) {
	return Load(os.LookupEnv)
}

// Load builds a Config from lookup, applying defaults for optional values.
func Load(lookup LookupFunc) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		WebhookURL:         get(EnvWebhookURL, ""),
		Environment:        get(EnvEnvironment, DefaultEnvironment),
		IgnoredNamespaces:  policy.ParseNamespaceList(get(EnvIgnoredNamespaces, "")),
		NotifyTimeout:      DefaultNotifyTimeout,
		NotifyMaxInFlight:  DefaultNotifyMaxInFlight,
		MetricsBindAddress: get(EnvMetricsBindAddress, DefaultMetricsBindAddress),
		ProbeBindAddress:   get(EnvProbeBindAddress, DefaultProbeBindAddress),
		LogLevel:           zapcore.InfoLevel,
	}
	if cfg.WebhookURL == "" {
		return nil, ErrMissingWebhookURL
	}

	if raw := get(EnvNotifyTimeout, ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvNotifyTimeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", EnvNotifyTimeout, raw)
		}
		cfg.NotifyTimeout = d
	}

	if raw := get(EnvNotifyMaxInFlight, ""); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvNotifyMaxInFlight, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("%s must be at least 1, got %d", EnvNotifyMaxInFlight, n)
		}
		cfg.NotifyMaxInFlight = n
	}

	if raw := get(EnvLogLevel, ""); raw != "" {
		lvl, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}
