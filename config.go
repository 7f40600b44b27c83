package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type config struct {
	Debug          bool
	ListenAddr     string
	RedisConn      string
	DeduperTTL     time.Duration
	FlagPrefix     string
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration
	Heartbeat      time.Duration
}

func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		ListenAddr: ":8080",
		RedisConn:  strings.TrimSpace(getenv("REDIS_CONNECTION_STRING")),
		FlagPrefix: "tutorial",
	}
	var err error
	if cfg.Debug, err = envBool(getenv, "DEBUG", false); err != nil {
		return cfg, err
	}
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return cfg, fmt.Errorf("invalid PORT: %q", port)
		}
		cfg.ListenAddr = ":" + port
	}
	if v := strings.TrimSpace(getenv("FLAG_PREFIX")); v != "" {
		cfg.FlagPrefix = v
	}
	if cfg.DeduperTTL, err = envDur(getenv, "DEDUPER_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SessionIdleTTL, err = envDur(getenv, "SESSION_IDLE_TTL", 2*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = envDur(getenv, "SESSION_SWEEP_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Heartbeat, err = envDur(getenv, "STREAM_HEARTBEAT", 25*time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envDur(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envBool(getenv func(string) string, key string, def bool) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, v)
	}
	return b, nil
}
