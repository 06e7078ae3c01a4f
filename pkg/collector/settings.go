package collector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings is the configuration bag handed to a collector before the engine
// initializes. Options carries collector-specific keys.
type Settings struct {
	ServerName   string
	DatabaseName string
	TemplateName string
	Options      map[string]string
}

// Clone returns a deep copy so the engine's frozen settings are not shared.
func (s Settings) Clone() Settings {
	out := s
	out.Options = make(map[string]string, len(s.Options))
	for k, v := range s.Options {
		out.Options[k] = v
	}
	return out
}

func (s Settings) String(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

func (s Settings) Int(key string, def int) (int, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return i, nil
}

func (s Settings) Float(key string, def float64) (float64, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return f, nil
}

func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return d, nil
}

func (s Settings) Bool(key string, def bool) (bool, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("option %s=%q: %w", key, v, err)
	}
	return b, nil
}

// lookup is case-insensitive; viper lower-cases map keys read from YAML.
func (s Settings) lookup(key string) (string, bool) {
	if v, ok := s.Options[key]; ok && v != "" {
		return v, true
	}
	for k, v := range s.Options {
		if strings.EqualFold(k, key) && v != "" {
			return v, true
		}
	}
	return "", false
}
