// Package specdoc is the in-memory model of the API specification document.
//
// The document is held as a yaml.Node tree rather than typed structs so that
// keys this tool does not understand survive a load/save cycle byte-for-byte
// in content. Governance checks read through typed accessors; the only
// mutations are the visibility and status flips performed by promotion.
package specdoc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlaceholderSchemaName is the generated stand-in schema that stubbed
// endpoints point their responses at until a real contract exists.
const PlaceholderSchemaName = "Placeholder"

// methodOrder fixes the per-path iteration order so reports and diffs are
// reproducible independent of document layout.
var methodOrder = []string{"get", "post", "put", "patch", "delete", "options", "head"}

type Document struct {
	root *yaml.Node
}

// Load parses a specification document. Any YAML error or a non-mapping top
// level is a *ParseError; nothing else in the engine runs after one.
func Load(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Err: err}
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, NewParseError("document is empty")
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, NewParseError("top level must be a mapping")
	}

	return &Document{root: &root}, nil
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Save serializes the document, preserving field order and any keys the
// model never interpreted.
func (d *Document) Save() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root.Content[0]); err != nil {
		return nil, fmt.Errorf("serialize spec document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serialize spec document: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveFile replaces the document on disk atomically: the new content is
// written to a temporary file in the same directory, then renamed over the
// target. A crash mid-write never leaves a half-written spec.
func (d *Document) SaveFile(path string) error {
	data, err := d.Save()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (d *Document) body() *yaml.Node {
	return d.root.Content[0]
}

func (d *Document) pathsNode() *yaml.Node {
	return mapValue(d.body(), "paths")
}

// Version returns info.version, or "" when absent.
func (d *Document) Version() string {
	info := mapValue(d.body(), "info")
	if info == nil {
		return ""
	}
	return scalarValue(info, "version")
}

// GlobalSecurity returns the scheme names of the document-level security
// declaration.
func (d *Document) GlobalSecurity() []string {
	return securityNames(mapValue(d.body(), "security"))
}

// SchemaByName resolves a schema from the components/schemas registry.
func (d *Document) SchemaByName(name string) *yaml.Node {
	components := mapValue(d.body(), "components")
	if components == nil {
		return nil
	}
	schemas := mapValue(components, "schemas")
	if schemas == nil {
		return nil
	}
	return mapValue(schemas, name)
}

// Operations iterates every operation in deterministic order: paths sorted
// lexicographically, methods in the fixed method table order.
func (d *Document) Operations() []Operation {
	paths := d.pathsNode()
	if paths == nil || paths.Kind != yaml.MappingNode {
		return nil
	}

	byPath := make(map[string]*yaml.Node, len(paths.Content)/2)
	order := make([]string, 0, len(paths.Content)/2)
	for i := 0; i+1 < len(paths.Content); i += 2 {
		key := paths.Content[i].Value
		if _, seen := byPath[key]; !seen {
			order = append(order, key)
		}
		byPath[key] = paths.Content[i+1]
	}
	sort.Strings(order)

	var ops []Operation
	for _, path := range order {
		item := byPath[path]
		if item == nil || item.Kind != yaml.MappingNode {
			continue
		}
		for _, method := range methodOrder {
			node := mapValue(item, method)
			if node == nil || node.Kind != yaml.MappingNode {
				continue
			}
			ops = append(ops, Operation{
				Method: strings.ToUpper(method),
				Path:   path,
				doc:    d,
				node:   node,
			})
		}
	}
	return ops
}

// Lookup finds the operation for a METHOD and path template.
func (d *Document) Lookup(method, path string) (Operation, bool) {
	paths := d.pathsNode()
	if paths == nil {
		return Operation{}, false
	}
	item := mapValue(paths, path)
	if item == nil || item.Kind != yaml.MappingNode {
		return Operation{}, false
	}
	node := mapValue(item, strings.ToLower(method))
	if node == nil || node.Kind != yaml.MappingNode {
		return Operation{}, false
	}
	return Operation{Method: strings.ToUpper(method), Path: path, doc: d, node: node}, true
}

// mapValue returns the value node for key inside a mapping node, or nil.
func mapValue(m *yaml.Node, key string) *yaml.Node {
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

func scalarValue(m *yaml.Node, key string) string {
	v := mapValue(m, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return v.Value
}

// setScalar updates key in place when present, otherwise appends it.
func setScalar(m *yaml.Node, key, value string) {
	if v := mapValue(m, key); v != nil {
		v.Kind = yaml.ScalarNode
		v.Tag = "!!str"
		v.Value = value
		v.Style = 0
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}

func sequenceValues(m *yaml.Node, key string) []string {
	seq := mapValue(m, key)
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

// securityNames flattens a security requirement sequence into the scheme
// names it references.
func securityNames(seq *yaml.Node) []string {
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}
	var names []string
	for _, requirement := range seq.Content {
		if requirement.Kind != yaml.MappingNode {
			continue
		}
		for i := 0; i+1 < len(requirement.Content); i += 2 {
			names = append(names, requirement.Content[i].Value)
		}
	}
	return names
}
