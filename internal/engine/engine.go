// Package engine bundles the read-only governance checks into one
// evaluation pass for the watch and daemon surfaces. The CLI commands run
// the same underlying checks individually.
package engine

import (
	"fmt"
	"os"

	"github.com/rideflow/apigovern/internal/allowlist"
	"github.com/rideflow/apigovern/internal/config"
	"github.com/rideflow/apigovern/internal/policy"
	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/rules"
	"github.com/rideflow/apigovern/internal/specdoc"
)

type CheckResult struct {
	Check      string
	Violations []report.Violation
	Skipped    bool
	SkipReason string
}

func (r CheckResult) Passed() bool {
	return !r.Skipped && len(r.Violations) == 0
}

type Engine struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs the visibility, cap, and custom-rule checks for one release
// state. Only read-only checks belong here; anything that persists state
// (promotion, the stub ratchet) stays a deliberate CLI invocation.
func (e *Engine) Evaluate(state policy.ReleaseState) ([]CheckResult, error) {
	doc, err := specdoc.LoadFile(e.cfg.SpecPath)
	if err != nil {
		return nil, err
	}

	var allow *allowlist.Allowlist
	if state == policy.StateUAT {
		allow, err = allowlist.LoadFile(e.cfg.AllowlistPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &config.ConfigError{
					Path: e.cfg.AllowlistPath,
					Err:  fmt.Errorf("allowlist is required under uat: %w", err),
				}
			}
			return nil, err
		}
	}

	results := []CheckResult{
		{Check: "visibility", Violations: policy.Evaluate(state, doc, allow)},
	}

	capResult := CheckResult{Check: "cap"}
	if state == policy.StateUAT {
		if err := allow.EnforceCap(e.cfg.Cap); err != nil {
			capResult.Violations = []report.Violation{{
				Kind:   report.KindCap,
				Reason: err.Error(),
			}}
		}
	} else {
		capResult.Skipped = true
		capResult.SkipReason = fmt.Sprintf("cap applies only under uat, state is %s", state)
	}
	results = append(results, capResult)

	if len(e.cfg.Rules) > 0 {
		compiled, err := rules.Compile(e.cfg.Rules)
		if err != nil {
			return nil, err
		}
		violations, err := rules.Evaluate(compiled, doc)
		if err != nil {
			return nil, err
		}
		results = append(results, CheckResult{Check: "rules", Violations: violations})
	}

	return results, nil
}
