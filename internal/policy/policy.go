// Package policy evaluates per-stage visibility rules and the live
// contract-quality gate against a specification document.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rideflow/apigovern/internal/allowlist"
	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/specdoc"
)

// Evaluate is a stateless predicate over one document and one release
// state. It collects every violation rather than stopping at the first.
//
// The allowlist is only consulted under UAT and may be nil in every other
// state.
func Evaluate(state ReleaseState, doc *specdoc.Document, allow *allowlist.Allowlist) []report.Violation {
	switch state {
	case StateParked, StateStaging:
		return noPublicOperations(state, doc)
	case StateUAT:
		return allowlistMembership(doc, allow)
	case StateLive:
		return qualityGate(doc)
	}
	return nil
}

// noPublicOperations enforces the parked/staging invariant: nothing is
// externally visible.
func noPublicOperations(state ReleaseState, doc *specdoc.Document) []report.Violation {
	var violations []report.Violation
	for _, op := range doc.Operations() {
		if op.Visibility() == specdoc.VisibilityPublic {
			violations = append(violations, report.Violation{
				Kind:   report.KindVisibility,
				Method: op.Method,
				Path:   op.Path,
				Reason: fmt.Sprintf("operation is public but release state is %s", state),
			})
		}
	}
	return violations
}

// allowlistMembership enforces the UAT invariant: every public operation
// must be an exact member of the allowlist. The cap itself is checked
// separately by the allowlist manager.
func allowlistMembership(doc *specdoc.Document, allow *allowlist.Allowlist) []report.Violation {
	var violations []report.Violation
	for _, op := range doc.Operations() {
		if op.Visibility() != specdoc.VisibilityPublic {
			continue
		}
		if allow == nil || !allow.Contains(op.Key()) {
			violations = append(violations, report.Violation{
				Kind:   report.KindVisibility,
				Method: op.Method,
				Path:   op.Path,
				Reason: "public operation is not in the allowlist",
			})
		}
	}
	return violations
}

// qualityGate applies the live contract-quality bar to every public
// operation. Each missing attribute is its own violation so a single weak
// contract surfaces all of its gaps at once.
func qualityGate(doc *specdoc.Document) []report.Violation {
	var violations []report.Violation

	if version := doc.Version(); version != "" {
		if _, err := semver.NewVersion(version); err != nil {
			violations = append(violations, report.Violation{
				Kind:   report.KindQuality,
				Reason: fmt.Sprintf("info.version %q is not a valid semantic version", version),
			})
		}
	}

	violations = append(violations, duplicateOperationIDs(doc)...)

	for _, op := range doc.Operations() {
		if op.Visibility() != specdoc.VisibilityPublic {
			continue
		}
		violations = append(violations, operationQuality(op)...)
	}
	return violations
}

// duplicateOperationIDs enforces document-wide uniqueness of assigned
// operationIds. Internal operations count too: the id namespace is shared
// with code generators regardless of visibility.
func duplicateOperationIDs(doc *specdoc.Document) []report.Violation {
	byID := make(map[string][]specdoc.Operation)
	for _, op := range doc.Operations() {
		if id := op.OperationID(); id != "" {
			byID[id] = append(byID[id], op)
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var violations []report.Violation
	for _, id := range ids {
		ops := byID[id]
		if len(ops) < 2 {
			continue
		}
		for _, op := range ops {
			others := make([]string, 0, len(ops)-1)
			for _, other := range ops {
				if other.Key() != op.Key() {
					others = append(others, other.Key())
				}
			}
			violations = append(violations, report.Violation{
				Kind:   report.KindQuality,
				Method: op.Method,
				Path:   op.Path,
				Reason: fmt.Sprintf("operationId %q is also used by %s", id, strings.Join(others, ", ")),
			})
		}
	}
	return violations
}

func operationQuality(op specdoc.Operation) []report.Violation {
	var violations []report.Violation
	add := func(reason string) {
		violations = append(violations, report.Violation{
			Kind:   report.KindQuality,
			Method: op.Method,
			Path:   op.Path,
			Reason: reason,
		})
	}

	if len(op.Security()) == 0 {
		add("public operation has no security requirement")
	}
	if op.Summary() == "" {
		add("public operation has no summary")
	}
	if op.OperationID() == "" {
		add("public operation has no operationId")
	}
	if len(op.Tags()) == 0 {
		add("public operation has no tags")
	}
	for _, resp := range op.SuccessResponses() {
		if resp.SchemaName() == specdoc.PlaceholderSchemaName {
			add(fmt.Sprintf("%s response still uses the %s schema", resp.Code, specdoc.PlaceholderSchemaName))
		}
	}
	return violations
}
