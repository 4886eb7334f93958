// Package report defines the violation model shared by every governance
// check and the textual rendering of check results.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

type Kind string

const (
	KindVisibility    Kind = "visibility"
	KindCap           Kind = "cap"
	KindQuality       Kind = "quality"
	KindCompatibility Kind = "compatibility"
	KindBudget        Kind = "budget"
	KindDrift         Kind = "drift"
	KindRule          Kind = "rule"
)

// Violation is one policy failure. Method and Path identify the operation
// when the violation is operation-scoped; document-level violations leave
// them empty.
type Violation struct {
	Kind   Kind
	Method string
	Path   string
	Reason string
}

func (v Violation) String() string {
	if v.Method == "" && v.Path == "" {
		return fmt.Sprintf("[%s] %s", v.Kind, v.Reason)
	}
	return fmt.Sprintf("[%s] %s %s: %s", v.Kind, v.Method, v.Path, v.Reason)
}

// Sort orders violations by path, then method, then reason so that report
// output is stable across runs regardless of how checks collected them.
func Sort(violations []Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Path != violations[j].Path {
			return violations[i].Path < violations[j].Path
		}
		if violations[i].Method != violations[j].Method {
			return violations[i].Method < violations[j].Method
		}
		return violations[i].Reason < violations[j].Reason
	})
}

// Render writes every violation followed by a pass/fail summary line and
// returns true when the check passed.
func Render(w io.Writer, check string, violations []Violation) bool {
	Sort(violations)
	for _, v := range violations {
		fmt.Fprintf(w, "FAIL %s\n", v)
	}
	if len(violations) > 0 {
		plural := "violations"
		if len(violations) == 1 {
			plural = "violation"
		}
		fmt.Fprintf(w, "%s: %d %s\n", check, len(violations), plural)
		return false
	}
	fmt.Fprintf(w, "%s: ok\n", check)
	return true
}

// RenderSkipped marks a check that does not apply to the current release
// state. A skip is not a pass and is reported as such.
func RenderSkipped(w io.Writer, check, reason string) {
	fmt.Fprintf(w, "%s: skipped (%s)\n", check, reason)
}

// Warnings are advisory lines that never affect the exit status.
func RenderWarnings(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintf(w, "WARN %s\n", strings.TrimSpace(line))
	}
}
