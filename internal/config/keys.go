package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "backend.base_url", typ: kString, env: "MMX_BACKEND_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.BaseURL },
	},
	{
		key: "backend.static_url", typ: kString, env: "MMX_BACKEND_STATIC_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.StaticURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.StaticURL },
	},
	{
		key: "http.timeout_seconds", typ: kInt, env: "MMX_HTTP_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.HTTP.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.HTTP.TimeoutSeconds },
	},
	{
		key: "collection.default", typ: kString, env: "MMX_COLLECTION_DEFAULT",
		apply:   func(cfg *Config, v any) { cfg.Collection.Default = v.(string) },
		extract: func(cfg Config) any { return cfg.Collection.Default },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
