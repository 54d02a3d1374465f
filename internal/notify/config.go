package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"rimcity-link/internal/config"

	"github.com/tidwall/jsonc"
)

func ConfigFrom(cfg config.NotifyConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.Enabled,
		Workers:             cfg.Workers,
		RetryMax:            cfg.RetryMax,
		RetryBase:           time.Duration(cfg.RetryBaseMS) * time.Millisecond,
		PollInterval:        time.Duration(cfg.PollMS) * time.Millisecond,
		RequestTimeout:      time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		DispatchBuffer:      256,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 5 * time.Second
	}

	raw, err := loadTargets(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargets(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func loadTargets(cfg config.NotifyConfig) (string, error) {
	if path := strings.TrimSpace(cfg.TargetsPath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read notify targets %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.TargetsJSON), nil
}

// parseTargets accepts JSON with comments and drops disabled or incomplete
// entries.
func parseTargets(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &targets); err != nil {
		return nil, fmt.Errorf("parse notify targets: %w", err)
	}
	filtered := make([]Target, 0, len(targets))
	for _, t := range targets {
		t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
		t.Endpoint = strings.TrimSpace(t.Endpoint)
		if t.Endpoint == "" || !t.Enabled {
			continue
		}
		for i := range t.EventAllowlist {
			t.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(t.EventAllowlist[i]))
		}
		filtered = append(filtered, t)
	}
	return filtered, nil
}
