package specdoc

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Visibility values carried in the x-visibility extension.
const (
	VisibilityInternal = "internal"
	VisibilityPublic   = "public"
)

// Status values carried in the x-status extension.
const (
	StatusStub        = "stub"
	StatusBaseline    = "baseline"
	StatusImplemented = "implemented"
)

// Operation is a view over one method+path entry of the document. It holds
// a live reference into the document tree, so setters mutate the document.
type Operation struct {
	Method string
	Path   string
	doc    *Document
	node   *yaml.Node
}

// Key is the canonical "METHOD /path" form used by allowlists and reports.
func (o Operation) Key() string {
	return o.Method + " " + o.Path
}

func (o Operation) Visibility() string {
	if v := scalarValue(o.node, "x-visibility"); v != "" {
		return v
	}
	return VisibilityInternal
}

func (o Operation) SetVisibility(visibility string) {
	setScalar(o.node, "x-visibility", visibility)
}

func (o Operation) Status() string {
	if v := scalarValue(o.node, "x-status"); v != "" {
		return v
	}
	return StatusImplemented
}

func (o Operation) SetStatus(status string) {
	setScalar(o.node, "x-status", status)
}

func (o Operation) Summary() string {
	return scalarValue(o.node, "summary")
}

func (o Operation) OperationID() string {
	return scalarValue(o.node, "operationId")
}

func (o Operation) Tags() []string {
	return sequenceValues(o.node, "tags")
}

// Security returns the effective security requirement scheme names: the
// operation's own declaration when present, the document-level one
// otherwise. An explicit empty sequence opts the operation out.
func (o Operation) Security() []string {
	if sec := mapValue(o.node, "security"); sec != nil {
		return securityNames(sec)
	}
	return o.doc.GlobalSecurity()
}

// Response is one entry of the operation's response map.
type Response struct {
	Code      string
	SchemaRef string
	Schema    *yaml.Node
}

// IsSuccess reports whether the response code is in the 2xx family.
func (r Response) IsSuccess() bool {
	return strings.HasPrefix(r.Code, "2")
}

// SchemaName extracts the components/schemas name from a local $ref, or ""
// for inline and external schemas.
func (r Response) SchemaName() string {
	const prefix = "#/components/schemas/"
	if strings.HasPrefix(r.SchemaRef, prefix) {
		return strings.TrimPrefix(r.SchemaRef, prefix)
	}
	return ""
}

// Responses lists the operation's responses in document order. The schema is
// taken from the application/json media type.
func (o Operation) Responses() []Response {
	responses := mapValue(o.node, "responses")
	if responses == nil || responses.Kind != yaml.MappingNode {
		return nil
	}

	var out []Response
	for i := 0; i+1 < len(responses.Content); i += 2 {
		code := responses.Content[i].Value
		body := responses.Content[i+1]

		resp := Response{Code: code}
		if content := mapValue(body, "content"); content != nil {
			if media := mapValue(content, "application/json"); media != nil {
				if schema := mapValue(media, "schema"); schema != nil {
					resp.Schema = schema
					resp.SchemaRef = scalarValue(schema, "$ref")
				}
			}
		}
		out = append(out, resp)
	}
	return out
}

// SuccessResponses filters Responses down to the 2xx family.
func (o Operation) SuccessResponses() []Response {
	var out []Response
	for _, r := range o.Responses() {
		if r.IsSuccess() {
			out = append(out, r)
		}
	}
	return out
}

// ResolveSchema follows a response schema to its definition: local $refs
// resolve through the components registry, inline schemas return as-is.
func (o Operation) ResolveSchema(r Response) *yaml.Node {
	if name := r.SchemaName(); name != "" {
		return o.doc.SchemaByName(name)
	}
	return r.Schema
}
