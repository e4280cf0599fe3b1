package config

import (
	"errors"
	"fmt"
	"net"
)

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

var validBackends = map[string]struct{}{
	"file": {}, "sqlite": {},
}

// Validate checks the structural validity of a Config. Call Defaults first.
func Validate(cfg *Config) error {
	var errs []error

	if _, ok := validLogLevels[cfg.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("config: unknown log_level %q", cfg.LogLevel))
	}

	if _, ok := validBackends[cfg.Store.Backend]; !ok {
		errs = append(errs, fmt.Errorf("config: unknown store backend %q (supported: file, sqlite)", cfg.Store.Backend))
	}
	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("config: store.path is required"))
	}

	if cfg.Bridge.BaseURL == "" {
		errs = append(errs, errors.New("config: bridge.base_url is required"))
	}
	if cfg.Bridge.TargetPeer == "" {
		errs = append(errs, errors.New("config: bridge.target_peer is required"))
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.Gateway.Bind); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid gateway bind address %q", cfg.Gateway.Bind))
	}

	return errors.Join(errs...)
}
