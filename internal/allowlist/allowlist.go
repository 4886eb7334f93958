// Package allowlist manages the set of endpoints permitted to be public
// during UAT, including the size cap and smoke-test coverage reconciliation.
package allowlist

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultCap bounds how many endpoints may be exposed during UAT.
const DefaultCap = 3

type CapExceededError struct {
	Count int
	Cap   int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("allowlist cap exceeded: %d > %d", e.Count, e.Cap)
}

// Allowlist is an ordered, duplicate-free set of "METHOD /path" keys.
type Allowlist struct {
	keys []string
	set  map[string]struct{}
}

// Parse reads a line-delimited allowlist. Blank lines and lines starting
// with '#' are skipped; duplicate keys collapse to their first occurrence.
func Parse(text string) *Allowlist {
	a := &Allowlist{set: make(map[string]struct{})}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := a.set[line]; dup {
			continue
		}
		a.set[line] = struct{}{}
		a.keys = append(a.keys, line)
	}
	return a
}

// LoadFile reads an allowlist from disk. A missing file is the caller's
// configuration error to classify, so the raw error is returned.
func LoadFile(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

func (a *Allowlist) Len() int {
	return len(a.keys)
}

func (a *Allowlist) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a *Allowlist) Contains(key string) bool {
	_, ok := a.set[key]
	return ok
}

// EnforceCap fails when the allowlist holds more entries than the cap. The
// caller is responsible for only invoking this under UAT.
func (a *Allowlist) EnforceCap(cap int) error {
	if a.Len() > cap {
		return &CapExceededError{Count: a.Len(), Cap: cap}
	}
	return nil
}

// CoverageReport is the two-way reconciliation between the allowlist and
// the set of endpoints covered by smoke tests.
type CoverageReport struct {
	MissingFromTests []string
	ExtraInTests     []string
}

func (r CoverageReport) Clean() bool {
	return len(r.MissingFromTests) == 0 && len(r.ExtraInTests) == 0
}

// Coverage computes both set differences between the allowlist and the
// tested set. Every allowlisted endpoint needs a smoke test and every
// smoke-tested endpoint must still be allowlisted.
func (a *Allowlist) Coverage(tested *Allowlist) CoverageReport {
	var rep CoverageReport
	for _, key := range a.keys {
		if !tested.Contains(key) {
			rep.MissingFromTests = append(rep.MissingFromTests, key)
		}
	}
	for _, key := range tested.keys {
		if !a.Contains(key) {
			rep.ExtraInTests = append(rep.ExtraInTests, key)
		}
	}
	sort.Strings(rep.MissingFromTests)
	sort.Strings(rep.ExtraInTests)
	return rep
}
