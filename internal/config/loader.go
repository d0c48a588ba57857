package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		varName := submatch[1]
		defaultVal := ""
		if len(submatch) >= 3 {
			defaultVal = submatch[2]
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return defaultVal
	})
}

// LoadFile reads a YAML file, expands env vars, and unmarshals into dest.
func LoadFile(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ConfigFile is the file name Loader reads from the config directory.
const ConfigFile = "gateway.yaml"

// Section names a part of the configuration that can change at runtime.
type Section string

const (
	SectionTelemetry Section = "telemetry"
	SectionMedullar  Section = "medullar"
	SectionRateLimit Section = "rate_limit"
	SectionFilters   Section = "filters"
	// SectionPolicies fires when a .rego file in filters.policy.bundle_path
	// changes, even though gateway.yaml did not.
	SectionPolicies Section = "policies"
)

// Loader reads gateway.yaml and, once Watch is running, notifies subscribers
// about the sections that actually changed.
type Loader struct {
	configDir string
	logger    *slog.Logger

	mu  sync.RWMutex
	cfg *Config

	subsMu sync.Mutex
	subs   map[Section][]func(*Config)
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
		subs:      make(map[Section][]func(*Config)),
	}
}

// Load reads the config file over the defaults. A missing file leaves the
// defaults in place.
func (l *Loader) Load() error {
	cfg, err := l.read()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "dir", l.configDir)
	return nil
}

func (l *Loader) read() (*Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(l.configDir, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		if err := LoadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load gateway config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat gateway config: %w", err)
	} else {
		l.logger.Warn("config file not found, using defaults", "path", path)
	}
	return cfg, nil
}

func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// OnChange registers fn to run with the new config whenever section changes.
func (l *Loader) OnChange(section Section, fn func(*Config)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.subs[section] = append(l.subs[section], fn)
}

// Reload re-reads the config file, swaps it in and notifies the subscribers
// of every changed section. It returns the sections that changed.
func (l *Loader) Reload() ([]Section, error) {
	next, err := l.read()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	prev := l.cfg
	l.cfg = next
	l.mu.Unlock()

	if prev == nil {
		return nil, nil
	}
	if fields := restartRequired(prev, next); len(fields) > 0 {
		l.logger.Warn("config changes need a restart to take effect", "sections", fields)
	}
	changed := changedSections(prev, next)
	for _, s := range changed {
		l.notify(s, next)
	}
	return changed, nil
}

func (l *Loader) notify(section Section, cfg *Config) {
	l.subsMu.Lock()
	fns := append([]func(*Config){}, l.subs[section]...)
	l.subsMu.Unlock()
	for _, fn := range fns {
		fn(cfg)
	}
}

func changedSections(prev, next *Config) []Section {
	var out []Section
	if prev.Telemetry != next.Telemetry {
		out = append(out, SectionTelemetry)
	}
	if !reflect.DeepEqual(prev.Medullar, next.Medullar) {
		out = append(out, SectionMedullar)
	}
	if prev.RateLimit != next.RateLimit {
		out = append(out, SectionRateLimit)
	}
	if prev.Filters != next.Filters {
		out = append(out, SectionFilters)
	}
	return out
}

// restartRequired lists settings that are only read at startup.
func restartRequired(prev, next *Config) []string {
	var out []string
	if prev.Server != next.Server {
		out = append(out, "server")
	}
	if prev.Database != next.Database {
		out = append(out, "database")
	}
	if !reflect.DeepEqual(prev.Redis, next.Redis) {
		out = append(out, "redis")
	}
	if prev.Audit != next.Audit {
		out = append(out, "audit")
	}
	if prev.Medullar.Breaker != next.Medullar.Breaker {
		out = append(out, "medullar.circuit_breaker")
	}
	if prev.Filters.Policy.BundlePath != next.Filters.Policy.BundlePath {
		out = append(out, "filters.policy.bundle_path")
	}
	return out
}

// Watch reloads gateway.yaml when it is written and fires SectionPolicies
// when a policy file changes. The policy directory is watched only if it
// exists when Watch starts.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.configDir, err)
	}

	policyDir := ""
	if cfg := l.Config(); cfg != nil && cfg.Filters.Policy.BundlePath != "" {
		dir := filepath.Clean(cfg.Filters.Policy.BundlePath)
		if err := watcher.Add(dir); err == nil {
			policyDir = dir
		} else {
			l.logger.Debug("policy directory not watched", "path", dir, "error", err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				l.handle(event, policyDir)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return nil
}

func (l *Loader) handle(event fsnotify.Event, policyDir string) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return
	}

	if policyDir != "" && filepath.Dir(filepath.Clean(event.Name)) == policyDir {
		if filepath.Ext(event.Name) == ".rego" {
			l.logger.Info("policy file changed", "file", event.Name)
			l.notify(SectionPolicies, l.Config())
		}
		return
	}

	if filepath.Base(event.Name) != ConfigFile || event.Has(fsnotify.Remove) {
		return
	}
	changed, err := l.Reload()
	if err != nil {
		l.logger.Error("failed to reload config", "error", err)
		return
	}
	l.logger.Info("configuration reloaded", "file", event.Name, "changed", changed)
}
