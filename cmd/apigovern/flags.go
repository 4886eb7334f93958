package main

import (
	"flag"

	"github.com/rideflow/apigovern/internal/config"
	"github.com/rideflow/apigovern/internal/history"
	"github.com/rideflow/apigovern/internal/logger"
)

// commonFlags are accepted by every subcommand. Flag values override the
// config file, which overrides built-in defaults.
type commonFlags struct {
	configPath string
	logLevel   string
	spec       string
	allowlist  string
}

func addCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "path to .apigovern.yaml (default: auto-detect)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&c.spec, "spec", "", "path to the specification document")
	fs.StringVar(&c.allowlist, "allowlist", "", "path to the allowlist file")
	return c
}

func (c *commonFlags) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.spec != "" {
		cfg.SpecPath = c.spec
	}
	if c.allowlist != "" {
		cfg.AllowlistPath = c.allowlist
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	initLogging(cfg.LogLevel)
	return cfg, nil
}

// recordRun persists the outcome to the run-history store. History is an
// operator convenience; a failure to record never changes the exit status.
func recordRun(cfg *config.Config, command, state string, violations int, passed, skipped bool) {
	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer store.Close()

	run := history.NewRun(command, state)
	run.Violations = violations
	run.Passed = passed
	run.Skipped = skipped
	if err := store.Record(run); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}
