// Package stubs tracks implementation debt: the number of stubbed
// operations is ratcheted against a persisted ceiling so it can only grow
// through an explicit decision.
package stubs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rideflow/apigovern/internal/specdoc"
)

type BudgetExceededError struct {
	Count   int
	Ceiling int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("stub budget exceeded: %d > %d", e.Count, e.Ceiling)
}

// Count returns how many operations are still stubbed.
func Count(doc *specdoc.Document) int {
	n := 0
	for _, op := range doc.Operations() {
		if op.Status() == specdoc.StatusStub {
			n++
		}
	}
	return n
}

// Tracker persists the ceiling as a single integer file.
type Tracker struct {
	path string
}

func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

// Result describes one budget evaluation.
type Result struct {
	Count       int
	Ceiling     int
	Initialized bool
}

// Check compares the stub count against the ceiling. With no persisted
// ceiling and no override, the current count becomes the ceiling and the
// run passes (first-run initialization). An override always wins over the
// persisted value and is not written back. The ceiling is never lowered
// automatically when the count drops.
func (t *Tracker) Check(count int, override int, hasOverride bool) (Result, error) {
	if hasOverride {
		res := Result{Count: count, Ceiling: override}
		if count > override {
			return res, &BudgetExceededError{Count: count, Ceiling: override}
		}
		return res, nil
	}

	ceiling, found, err := t.load()
	if err != nil {
		return Result{}, err
	}
	if !found {
		if err := t.store(count); err != nil {
			return Result{}, err
		}
		return Result{Count: count, Ceiling: count, Initialized: true}, nil
	}

	res := Result{Count: count, Ceiling: ceiling}
	if count > ceiling {
		return res, &BudgetExceededError{Count: count, Ceiling: ceiling}
	}
	return res, nil
}

func (t *Tracker) load() (int, bool, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	ceiling, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false, fmt.Errorf("invalid ceiling file %s: %w", t.path, err)
	}
	return ceiling, true, nil
}

// store writes the ceiling atomically, same temp-then-rename discipline as
// the spec document itself.
func (t *Tracker) store(ceiling int) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := fmt.Fprintf(tmp, "%d\n", ceiling); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
