package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rideflow/apigovern/internal/daemon"
	"github.com/rideflow/apigovern/internal/engine"
	"github.com/rideflow/apigovern/internal/history"
	"github.com/rideflow/apigovern/internal/logger"
	"github.com/rideflow/apigovern/internal/policy"
	"github.com/rideflow/apigovern/internal/promote"
	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/specdoc"
	"github.com/rideflow/apigovern/internal/watcher"
)

func cmdPromote(args []string) int {
	fs := flag.NewFlagSet("promote", flag.ExitOnError)
	common := addCommon(fs)
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}

	doc, err := specdoc.LoadFile(cfg.SpecPath)
	if err != nil {
		return fatal(err)
	}
	allow, err := loadRequiredAllowlist(cfg)
	if err != nil {
		return fatal(err)
	}

	promoted := promote.Apply(doc, allow)
	if err := doc.SaveFile(cfg.SpecPath); err != nil {
		return fatal(err)
	}

	for _, key := range promoted {
		fmt.Fprintf(os.Stdout, "promoted %s\n", key)
	}
	fmt.Fprintf(os.Stdout, "promote: %d operation(s) flipped to public\n", len(promoted))
	recordRun(cfg, "promote", "", 0, true, false)
	return exitPass
}

func cmdHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	common := addCommon(fs)
	limitFlag := fs.Int("limit", 20, "maximum number of runs to list")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}

	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		return fatal(err)
	}
	defer store.Close()

	runs, err := store.Recent(*limitFlag)
	if err != nil {
		return fatal(err)
	}

	for _, run := range runs {
		outcome := "pass"
		if run.Skipped {
			outcome = "skip"
		} else if !run.Passed {
			outcome = fmt.Sprintf("fail (%d)", run.Violations)
		}
		state := run.State
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(os.Stdout, "%s  %-10s %-8s %s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Command, state, outcome)
	}
	return exitPass
}

func cmdWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	common := addCommon(fs)
	stateFlag := fs.String("state", "", "release state to evaluate on every change")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	state, err := policy.ParseReleaseState(*stateFlag)
	if err != nil {
		return fatal(err)
	}

	eng := engine.New(cfg)
	rerun := func() {
		results, err := eng.Evaluate(state)
		if err != nil {
			fmt.Fprintf(os.Stderr, "apigovern: %v\n", err)
			return
		}
		renderResults(results)
	}

	rerun()

	files := []string{cfg.SpecPath, cfg.AllowlistPath, cfg.IgnorePath, cfg.CeilingPath}
	w, err := watcher.New(cfg.Watch, files, func(events []watcher.FileEvent) {
		for _, ev := range events {
			logger.Info("input changed", "path", ev.Path, "op", ev.Op)
		}
		rerun()
	})
	if err != nil {
		return fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		return fatal(err)
	}
	defer w.Stop()

	fmt.Fprintln(os.Stderr, "watching for changes (ctrl-c to stop)")
	<-ctx.Done()
	return exitPass
}

func cmdDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	common := addCommon(fs)
	socketFlag := fs.String("socket", "", "unix socket path")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	if *socketFlag != "" {
		cfg.SocketPath = *socketFlag
	}

	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := daemon.New(engine.New(cfg), store, cfg.SocketPath)
	if err := server.Serve(ctx); err != nil {
		return fatal(err)
	}
	return exitPass
}

func renderResults(results []engine.CheckResult) {
	for _, res := range results {
		if res.Skipped {
			report.RenderSkipped(os.Stdout, res.Check, res.SkipReason)
			continue
		}
		report.Render(os.Stdout, res.Check, res.Violations)
	}
}
