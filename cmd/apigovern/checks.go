package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rideflow/apigovern/internal/allowlist"
	"github.com/rideflow/apigovern/internal/compat"
	"github.com/rideflow/apigovern/internal/config"
	"github.com/rideflow/apigovern/internal/drift"
	"github.com/rideflow/apigovern/internal/gitsrc"
	"github.com/rideflow/apigovern/internal/policy"
	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/scan"
	"github.com/rideflow/apigovern/internal/specdoc"
	"github.com/rideflow/apigovern/internal/stubs"
)

func cmdVisibility(args []string) int {
	fs := flag.NewFlagSet("visibility", flag.ExitOnError)
	common := addCommon(fs)
	stateFlag := fs.String("state", "", "release state: parked, uat, staging or live")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	state, err := policy.ParseReleaseState(*stateFlag)
	if err != nil {
		return fatal(err)
	}

	doc, err := specdoc.LoadFile(cfg.SpecPath)
	if err != nil {
		return fatal(err)
	}

	var allow *allowlist.Allowlist
	if state == policy.StateUAT {
		allow, err = loadRequiredAllowlist(cfg)
		if err != nil {
			return fatal(err)
		}
	}

	violations := policy.Evaluate(state, doc, allow)
	passed := report.Render(os.Stdout, "visibility", violations)
	recordRun(cfg, "visibility", string(state), len(violations), passed, false)
	if !passed {
		return exitFail
	}
	return exitPass
}

func cmdCap(args []string) int {
	fs := flag.NewFlagSet("cap", flag.ExitOnError)
	common := addCommon(fs)
	stateFlag := fs.String("state", "", "release state: parked, uat, staging or live")
	capFlag := fs.Int("cap", 0, "allowlist size cap (default from config)")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	state, err := policy.ParseReleaseState(*stateFlag)
	if err != nil {
		return fatal(err)
	}

	if state != policy.StateUAT {
		reason := fmt.Sprintf("cap applies only under uat, state is %s", state)
		report.RenderSkipped(os.Stdout, "cap", reason)
		recordRun(cfg, "cap", string(state), 0, false, true)
		return exitPass
	}

	allow, err := loadRequiredAllowlist(cfg)
	if err != nil {
		return fatal(err)
	}

	limit := cfg.Cap
	if *capFlag > 0 {
		limit = *capFlag
	}

	var violations []report.Violation
	if err := allow.EnforceCap(limit); err != nil {
		violations = append(violations, report.Violation{Kind: report.KindCap, Reason: err.Error()})
	}
	passed := report.Render(os.Stdout, "cap", violations)
	recordRun(cfg, "cap", string(state), len(violations), passed, false)
	if !passed {
		return exitFail
	}
	return exitPass
}

func cmdCoverage(args []string) int {
	fs := flag.NewFlagSet("coverage", flag.ExitOnError)
	common := addCommon(fs)
	testedFlag := fs.String("tested", "", "path to the smoke-tested endpoint list")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	if *testedFlag != "" {
		cfg.TestedPath = *testedFlag
	}

	allow, err := loadRequiredAllowlist(cfg)
	if err != nil {
		return fatal(err)
	}
	tested, err := allowlist.LoadFile(cfg.TestedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fatal(&config.ConfigError{Path: cfg.TestedPath, Err: err})
		}
		return fatal(err)
	}

	coverage := allow.Coverage(tested)
	var violations []report.Violation
	for _, key := range coverage.MissingFromTests {
		violations = append(violations, report.Violation{
			Kind:   report.KindCap,
			Reason: fmt.Sprintf("allowlisted endpoint %q has no smoke test", key),
		})
	}
	for _, key := range coverage.ExtraInTests {
		violations = append(violations, report.Violation{
			Kind:   report.KindCap,
			Reason: fmt.Sprintf("smoke-tested endpoint %q is not in the allowlist", key),
		})
	}
	passed := report.Render(os.Stdout, "coverage", violations)
	recordRun(cfg, "coverage", "", len(violations), passed, false)
	if !passed {
		return exitFail
	}
	return exitPass
}

func cmdDrift(args []string) int {
	fs := flag.NewFlagSet("drift", flag.ExitOnError)
	common := addCommon(fs)
	usageFlag := fs.String("usage", "", "path to a pre-extracted usage report")
	scanFlag := fs.String("scan", "", "scan a source tree instead of reading a usage report")
	ignoreFlag := fs.String("ignore", "", "path to the drift ignore-pattern file")
	strictFlag := fs.Bool("strict", false, "treat undocumented frontend usage as a failure")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	if *ignoreFlag != "" {
		cfg.IgnorePath = *ignoreFlag
	}

	doc, err := specdoc.LoadFile(cfg.SpecPath)
	if err != nil {
		return fatal(err)
	}

	var observed []drift.Usage
	switch {
	case *usageFlag != "":
		observed, err = scan.LoadUsageFile(*usageFlag)
		if err != nil {
			return fatal(err)
		}
	default:
		roots := cfg.Scan.Roots
		if *scanFlag != "" {
			roots = []string{*scanFlag}
		}
		observed, err = scan.Run(scan.Options{Roots: roots, ExcludePatterns: cfg.Scan.ExcludePatterns})
		if err != nil {
			return fatal(err)
		}
	}

	var declared []string
	for _, op := range doc.Operations() {
		declared = append(declared, op.Key())
	}

	patterns, err := drift.LoadIgnoreFile(cfg.IgnorePath)
	if err != nil {
		return fatal(err)
	}
	rep := drift.Reconcile(observed, declared).ApplyIgnores(patterns)

	var warnings []string
	for _, key := range rep.SpecOnly {
		warnings = append(warnings, fmt.Sprintf("documented but never referenced: %s", key))
	}

	var violations []report.Violation
	if *strictFlag {
		for _, key := range rep.FrontendOnly {
			violations = append(violations, report.Violation{
				Kind:   report.KindDrift,
				Reason: fmt.Sprintf("referenced by the frontend but undocumented: %s", key),
			})
		}
	} else {
		for _, key := range rep.FrontendOnly {
			warnings = append(warnings, fmt.Sprintf("referenced by the frontend but undocumented: %s", key))
		}
	}

	report.RenderWarnings(os.Stdout, warnings)
	passed := report.Render(os.Stdout, "drift", violations)
	recordRun(cfg, "drift", "", len(violations), passed, false)
	if !passed {
		return exitFail
	}
	return exitPass
}

func cmdCompat(args []string) int {
	fs := flag.NewFlagSet("compat", flag.ExitOnError)
	common := addCommon(fs)
	baseFlag := fs.String("base", "", "git revision holding the base spec snapshot")
	baseFileFlag := fs.String("base-file", "", "read the base snapshot from a file instead of git")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}

	current, err := specdoc.LoadFile(cfg.SpecPath)
	if err != nil {
		return fatal(err)
	}

	var baseData []byte
	switch {
	case *baseFileFlag != "":
		baseData, err = os.ReadFile(*baseFileFlag)
		if err != nil {
			if os.IsNotExist(err) {
				report.RenderSkipped(os.Stdout, "compat", "base snapshot does not exist")
				recordRun(cfg, "compat", "", 0, false, true)
				return exitPass
			}
			return fatal(err)
		}
	case *baseFlag != "":
		var found bool
		baseData, found, err = gitsrc.SpecAt(".", *baseFlag, cfg.SpecPath)
		if err != nil {
			return fatal(err)
		}
		if !found {
			report.RenderSkipped(os.Stdout, "compat",
				fmt.Sprintf("revision %s has no spec to compare against", *baseFlag))
			recordRun(cfg, "compat", "", 0, false, true)
			return exitPass
		}
	default:
		return fatal(errors.New("compat requires -base or -base-file"))
	}

	base, err := specdoc.Load(baseData)
	if err != nil {
		return fatal(err)
	}

	violations := compat.Compare(base, current)
	if len(violations) > 0 && base.Version() == current.Version() && current.Version() != "" {
		report.RenderWarnings(os.Stdout, []string{
			fmt.Sprintf("breaking changes without a version bump (still %s)", current.Version()),
		})
	}
	passed := report.Render(os.Stdout, "compat", violations)
	recordRun(cfg, "compat", "", len(violations), passed, false)
	if !passed {
		return exitFail
	}
	return exitPass
}

func cmdStubs(args []string) int {
	fs := flag.NewFlagSet("stubs", flag.ExitOnError)
	common := addCommon(fs)
	ceilingFlag := fs.String("ceiling-file", "", "path to the persisted ceiling file")
	maxFlag := fs.Int("max", -1, "explicit ceiling override (takes precedence over the persisted value)")
	fs.Parse(args)

	cfg, err := common.load()
	if err != nil {
		return fatal(err)
	}
	if *ceilingFlag != "" {
		cfg.CeilingPath = *ceilingFlag
	}

	doc, err := specdoc.LoadFile(cfg.SpecPath)
	if err != nil {
		return fatal(err)
	}

	count := stubs.Count(doc)
	tracker := stubs.NewTracker(cfg.CeilingPath)
	result, err := tracker.Check(count, *maxFlag, *maxFlag >= 0)

	var budgetErr *stubs.BudgetExceededError
	if err != nil && !errors.As(err, &budgetErr) {
		return fatal(err)
	}

	if result.Initialized {
		fmt.Fprintf(os.Stdout, "stub budget initialized: ceiling set to %d\n", result.Ceiling)
	}

	var violations []report.Violation
	if budgetErr != nil {
		violations = append(violations, report.Violation{Kind: report.KindBudget, Reason: budgetErr.Error()})
	}
	passed := report.Render(os.Stdout, "stubs", violations)
	if passed {
		fmt.Fprintf(os.Stdout, "stubbed operations: %d (ceiling %d)\n", result.Count, result.Ceiling)
	}
	recordRun(cfg, "stubs", "", len(violations), passed, false)
	if !passed {
		return exitFail
	}
	return exitPass
}

func loadRequiredAllowlist(cfg *config.Config) (*allowlist.Allowlist, error) {
	allow, err := allowlist.LoadFile(cfg.AllowlistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &config.ConfigError{Path: cfg.AllowlistPath, Err: err}
		}
		return nil, err
	}
	return allow, nil
}
