// Package compat diffs a base specification snapshot against the current
// document and flags structurally breaking changes to public contracts.
package compat

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/specdoc"
)

// Compare checks every public operation of the base snapshot against the
// current document. Operations removed from current are left to the
// deprecation policy; additions in current are always compatible. For the
// rest, every field reachable in the base success-response schema must
// remain reachable in the current one.
//
// Both documents are read-only; the violation set does not depend on
// traversal order and the report order is fixed by path then method.
func Compare(base, current *specdoc.Document) []report.Violation {
	var violations []report.Violation

	for _, baseOp := range base.Operations() {
		if baseOp.Visibility() != specdoc.VisibilityPublic {
			continue
		}
		currentOp, ok := current.Lookup(baseOp.Method, baseOp.Path)
		if !ok {
			continue
		}
		violations = append(violations, compareOperation(baseOp, currentOp)...)
	}

	report.Sort(violations)
	return violations
}

func compareOperation(baseOp, currentOp specdoc.Operation) []report.Violation {
	var violations []report.Violation

	currentByCode := make(map[string]specdoc.Response)
	for _, resp := range currentOp.SuccessResponses() {
		currentByCode[resp.Code] = resp
	}

	for _, baseResp := range baseOp.SuccessResponses() {
		if baseResp.Schema == nil {
			continue
		}
		currentResp, ok := currentByCode[baseResp.Code]
		if !ok {
			violations = append(violations, report.Violation{
				Kind:   report.KindCompatibility,
				Method: baseOp.Method,
				Path:   baseOp.Path,
				Reason: fmt.Sprintf("success response %s was removed", baseResp.Code),
			})
			continue
		}

		baseFields := fieldPaths(baseOp, baseResp)
		currentFields := fieldPaths(currentOp, currentResp)

		var missing []string
		for field := range baseFields {
			if _, still := currentFields[field]; !still {
				missing = append(missing, field)
			}
		}
		sort.Strings(missing)
		for _, field := range missing {
			violations = append(violations, report.Violation{
				Kind:   report.KindCompatibility,
				Method: baseOp.Method,
				Path:   baseOp.Path,
				Reason: fmt.Sprintf("field %q disappeared from the %s response", field, baseResp.Code),
			})
		}
	}
	return violations
}

// fieldPaths collects every property path reachable from a response schema,
// resolving local $refs through the operation's own document. The visited
// set guards against ref cycles along the current descent path only; a
// schema referenced from two sibling properties is walked under both.
func fieldPaths(op specdoc.Operation, resp specdoc.Response) map[string]struct{} {
	fields := make(map[string]struct{})
	visited := make(map[string]bool)
	if name := resp.SchemaName(); name != "" {
		visited[name] = true
	}
	walkSchema(op, op.ResolveSchema(resp), "", fields, visited)
	return fields
}

func walkSchema(op specdoc.Operation, schema *yaml.Node, prefix string, fields map[string]struct{}, visited map[string]bool) {
	if schema == nil || schema.Kind != yaml.MappingNode {
		return
	}

	if ref := nodeScalar(schema, "$ref"); ref != "" {
		name := strings.TrimPrefix(ref, "#/components/schemas/")
		if name == ref || visited[name] {
			return
		}
		visited[name] = true
		resolved := op.ResolveSchema(specdoc.Response{SchemaRef: ref})
		walkSchema(op, resolved, prefix, fields, visited)
		delete(visited, name)
		return
	}

	if items := nodeValue(schema, "items"); items != nil {
		walkSchema(op, items, prefix+"[]", fields, visited)
	}

	properties := nodeValue(schema, "properties")
	if properties == nil || properties.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(properties.Content); i += 2 {
		name := properties.Content[i].Value
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		fields[path] = struct{}{}
		walkSchema(op, properties.Content[i+1], path, fields, visited)
	}
}

func nodeValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func nodeScalar(m *yaml.Node, key string) string {
	v := nodeValue(m, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return v.Value
}
