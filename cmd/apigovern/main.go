// Command apigovern is the CI entry point for the API contract governance
// engine. Each subcommand runs one evaluator against the specification
// document and exits 0 on pass, 1 on policy violations, 2 on fatal errors.
package main

import (
	"fmt"
	"os"

	"github.com/rideflow/apigovern/internal/logger"
)

const (
	exitPass  = 0
	exitFail  = 1
	exitFatal = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitFatal
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "visibility":
		return cmdVisibility(rest)
	case "cap":
		return cmdCap(rest)
	case "coverage":
		return cmdCoverage(rest)
	case "drift":
		return cmdDrift(rest)
	case "compat":
		return cmdCompat(rest)
	case "stubs":
		return cmdStubs(rest)
	case "promote":
		return cmdPromote(rest)
	case "history":
		return cmdHistory(rest)
	case "watch":
		return cmdWatch(rest)
	case "daemon":
		return cmdDaemon(rest)
	case "help", "-h", "--help":
		usage()
		return exitPass
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		return exitFatal
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: apigovern <command> [flags]

Governance checks (exit 0 = pass, 1 = violations, 2 = fatal error):

  visibility   enforce per-stage visibility rules and the live quality gate
  cap          enforce the UAT allowlist size cap
  coverage     reconcile the allowlist against smoke-tested endpoints
  drift        reconcile observed frontend API usage against the spec
  compat       diff public contracts against a base revision
  stubs        check the stubbed-operation count against its budget

Mutations and tooling:

  promote      apply the allowlist to the spec (sets visibility: public)
  history      list recent governance runs
  watch        re-run checks when governance inputs change
  daemon       serve governance queries over a unix socket

Common flags (every command): -config, -log-level
`)
}

func initLogging(level string) {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(level)
	logger.Init(cfg)
}

func fatal(err error) int {
	fmt.Fprintf(os.Stderr, "apigovern: %v\n", err)
	return exitFatal
}
