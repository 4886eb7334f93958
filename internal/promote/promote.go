// Package promote applies an allowlist to the specification document,
// flipping the matching operations to public.
package promote

import (
	"strings"

	"github.com/rideflow/apigovern/internal/allowlist"
	"github.com/rideflow/apigovern/internal/specdoc"
)

// Apply sets visibility=public for every allowlist key that names an
// existing operation and returns the keys that were flipped. Keys with no
// matching operation are skipped silently: the allowlist may reference
// endpoints that have not landed yet. Applying the same allowlist twice
// changes nothing on the second pass.
func Apply(doc *specdoc.Document, allow *allowlist.Allowlist) []string {
	var promoted []string
	for _, key := range allow.Keys() {
		method, path, ok := strings.Cut(key, " ")
		if !ok {
			continue
		}
		op, found := doc.Lookup(method, path)
		if !found {
			continue
		}
		if op.Visibility() == specdoc.VisibilityPublic {
			continue
		}
		op.SetVisibility(specdoc.VisibilityPublic)
		promoted = append(promoted, key)
	}
	return promoted
}
