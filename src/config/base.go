package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/data"
)

// Source resolves a value from, in order: a database setting, an
// environment variable, the YAML config file and a default.
type Source struct {
	Setting func(name string) string
	Env     func(key string) string
	File    map[string]string
}

// NewSource reads settings from db (when non-nil) and the YAML file named
// by CONFIG_FILE (when set).
func NewSource(db *gorm.DB) Source {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: load settings: %v (falling back to env)", err)
		}
	}
	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config: %v", err)
	}
	return Source{Setting: data.GetSetting, Env: os.Getenv, File: file}
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		switch vv := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(vv))
			for _, p := range vv {
				parts = append(parts, fmt.Sprint(p))
			}
			out[strings.ToLower(k)] = strings.Join(parts, ",")
		default:
			out[strings.ToLower(k)] = fmt.Sprint(vv)
		}
	}
	return out, nil
}

// GetSetting retrieves a setting with env, file and default fallbacks.
// The file is keyed by the setting name.
func (s Source) GetSetting(name, envKey, defaultValue string) string {
	if s.Setting != nil {
		if v := s.Setting(name); v != "" {
			return v
		}
	}
	if envKey != "" && s.Env != nil {
		if v := s.Env(envKey); v != "" {
			return v
		}
	}
	if v := s.File[name]; v != "" {
		return v
	}
	return defaultValue
}

func (s Source) getBoolSetting(name, envKey string, defaultValue bool) bool {
	return parseBoolDefault(s.GetSetting(name, envKey, ""), defaultValue)
}

func (s Source) getIntSetting(name, envKey string, defaultValue int64) int64 {
	v := s.GetSetting(name, envKey, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %d", name, v, defaultValue)
		return defaultValue
	}
	return n
}

// getDurationSetting accepts Go durations ("30s") or plain seconds.
func (s Source) getDurationSetting(name, envKey string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(s.GetSetting(name, envKey, ""))
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: %s=%q is not a duration, using %s", name, v, defaultValue)
	return defaultValue
}

func (s Source) getListSetting(name, envKey string, defaultValue []string) []string {
	v := s.GetSetting(name, envKey, "")
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
