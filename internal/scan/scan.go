// Package scan extracts API references from frontend source trees. The
// extraction is a heuristic text scan; its output feeds the drift detector
// as an untrusted external signal, never as ground truth.
package scan

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rideflow/apigovern/internal/drift"
	"github.com/rideflow/apigovern/internal/logger"
)

var log = logger.ForComponent("scan")

// methodCallPattern matches client calls like api.get('/api/rides') or
// http.post(`/api/rides/${id}/cancel`).
var methodCallPattern = regexp.MustCompile(
	"(?i)\\.(get|post|put|patch|delete)\\s*\\(\\s*['\"`](/api/[^'\"`\\s?#]*)")

// pathLiteralPattern matches bare path literals with the API prefix. No
// closing quote is required so query strings don't hide the path.
var pathLiteralPattern = regexp.MustCompile(
	"['\"`](/api/[^'\"`\\s?#]*)")

// templateExpr rewrites JS template interpolations into path parameters so
// `/api/rides/${id}` normalizes the same way as /api/rides/{id}.
var templateExpr = regexp.MustCompile(`\$\{[^}]*\}`)

var sourceExtensions = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".vue": true, ".svelte": true, ".html": true,
}

type Options struct {
	Roots           []string
	ExcludePatterns []string
}

// Run walks the configured roots and returns every observed API usage,
// de-duplicated and sorted. Unreadable files are logged and skipped; a
// heuristic scan has no business failing the build.
func Run(opts Options) ([]drift.Usage, error) {
	seen := make(map[drift.Usage]struct{})

	for _, root := range opts.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if excluded(rel, opts.ExcludePatterns) || excluded(rel+"/", opts.ExcludePatterns) {
					return fs.SkipDir
				}
				return nil
			}
			if excluded(rel, opts.ExcludePatterns) {
				return nil
			}
			if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}

			data, readErr := os.ReadFile(path)
			if readErr != nil {
				log.Warn("skipping unreadable file", "path", path, "error", readErr)
				return nil
			}
			for _, u := range Extract(decodeToUTF8(data)) {
				seen[u] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	usages := make([]drift.Usage, 0, len(seen))
	for u := range seen {
		usages = append(usages, u)
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Path != usages[j].Path {
			return usages[i].Path < usages[j].Path
		}
		return usages[i].Method < usages[j].Method
	})
	return usages, nil
}

// Extract pulls API references out of one source text. Method-qualified
// matches win over bare literals for the same path.
func Extract(text string) []drift.Usage {
	text = templateExpr.ReplaceAllString(text, "{param}")

	seen := make(map[drift.Usage]struct{})
	withMethod := make(map[string]bool)

	for _, m := range methodCallPattern.FindAllStringSubmatch(text, -1) {
		u := drift.Usage{Method: strings.ToUpper(m[1]), Path: m[2]}
		seen[u] = struct{}{}
		withMethod[m[2]] = true
	}
	for _, m := range pathLiteralPattern.FindAllStringSubmatch(text, -1) {
		if withMethod[m[1]] {
			continue
		}
		seen[drift.Usage{Path: m[1]}] = struct{}{}
	}

	out := make([]drift.Usage, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadUsageFile reads a pre-extracted usage report: one "METHOD /path" or
// bare "/path" per line, '#' comments allowed. This is how an external
// scanner hands its findings to the drift command.
func LoadUsageFile(path string) ([]drift.Usage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var usages []drift.Usage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if method, rest, ok := strings.Cut(line, " "); ok {
			usages = append(usages, drift.Usage{
				Method: strings.ToUpper(method),
				Path:   strings.TrimSpace(rest),
			})
			continue
		}
		usages = append(usages, drift.Usage{Path: line})
	}
	return usages, scanner.Err()
}
