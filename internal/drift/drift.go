// Package drift reconciles API usage observed in calling code against the
// operations the specification declares.
package drift

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	templateSegment = regexp.MustCompile(`^\{[^/{}]+\}$|^:[A-Za-z_][A-Za-z0-9_]*$`)
	numericSegment  = regexp.MustCompile(`^[0-9]+$`)
	uuidSegment     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// NormalizePath maps a path template or an observed concrete path onto one
// canonical form: every parameter segment, whether written as {id}, :id, or
// an actual value (numeric or UUID), becomes the same placeholder.
func NormalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		path = "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if templateSegment.MatchString(seg) || numericSegment.MatchString(seg) || uuidSegment.MatchString(seg) {
			segments[i] = "{}"
		}
	}
	return strings.Join(segments, "/")
}

// Usage is one observed reference to an API path. Method is empty when the
// extraction could only recover a path literal.
type Usage struct {
	Method string
	Path   string
}

// DriftReport partitions normalized keys into the three disjoint drift
// classes. Keys are "METHOD /path" with normalized paths; method-less
// observations use the bare path.
type DriftReport struct {
	FrontendOnly []string
	Shared       []string
	SpecOnly     []string
}

// Reconcile compares observed usage against declared operation keys
// ("METHOD /path/{param}" form). A method-less observation counts as shared
// when any declared method serves its normalized path.
func Reconcile(observed []Usage, declared []string) DriftReport {
	declaredByKey := make(map[string]bool, len(declared))
	declaredPaths := make(map[string]bool, len(declared))
	declaredKeys := make([]string, 0, len(declared))
	for _, key := range declared {
		method, path, ok := strings.Cut(key, " ")
		if !ok {
			continue
		}
		norm := strings.ToUpper(method) + " " + NormalizePath(path)
		if !declaredByKey[norm] {
			declaredKeys = append(declaredKeys, norm)
		}
		declaredByKey[norm] = true
		declaredPaths[NormalizePath(path)] = true
	}

	observedMatched := make(map[string]bool)
	frontendOnly := make(map[string]bool)
	for _, u := range observed {
		normPath := NormalizePath(u.Path)
		if u.Method == "" {
			if declaredPaths[normPath] {
				observedMatched[normPath] = true
			} else {
				frontendOnly[normPath] = true
			}
			continue
		}
		key := strings.ToUpper(u.Method) + " " + normPath
		if declaredByKey[key] {
			observedMatched[key] = true
		} else {
			frontendOnly[key] = true
		}
	}

	var rep DriftReport
	for key := range frontendOnly {
		rep.FrontendOnly = append(rep.FrontendOnly, key)
	}
	for _, key := range declaredKeys {
		_, path, _ := strings.Cut(key, " ")
		if observedMatched[key] || observedMatched[path] {
			rep.Shared = append(rep.Shared, key)
		} else {
			rep.SpecOnly = append(rep.SpecOnly, key)
		}
	}
	sort.Strings(rep.FrontendOnly)
	sort.Strings(rep.Shared)
	sort.Strings(rep.SpecOnly)
	return rep
}

// ApplyIgnores removes frontend-only entries matched by any ignore pattern.
// Filtering an already-filtered report with the same patterns is a no-op,
// so accepted drift stays accepted across repeated runs.
func (r DriftReport) ApplyIgnores(patterns []*regexp.Regexp) DriftReport {
	if len(patterns) == 0 {
		return r
	}
	filtered := r
	filtered.FrontendOnly = nil
	for _, key := range r.FrontendOnly {
		ignored := false
		for _, p := range patterns {
			if p.MatchString(key) {
				ignored = true
				break
			}
		}
		if !ignored {
			filtered.FrontendOnly = append(filtered.FrontendOnly, key)
		}
	}
	return filtered
}

// LoadIgnoreFile reads one regular expression per line, skipping blanks and
// '#' comments. A missing file means no suppressions.
func LoadIgnoreFile(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := regexp.Compile(line)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, scanner.Err()
}
