package specdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `openapi: 3.0.3
info:
  title: Rideflow API
  version: 1.4.0
x-custom-toplevel:
  nested: value
security:
  - bearerAuth: []
paths:
  /api/rides:
    post:
      operationId: createRide
      summary: Request a ride
      tags: [rides]
      x-visibility: public
      x-status: implemented
      x-unknown-extension: keep-me
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
    get:
      operationId: listRides
      x-visibility: internal
      x-status: stub
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Placeholder"
  /api/drivers/{id}:
    get:
      operationId: getDriver
      security: []
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Driver"
components:
  schemas:
    Ride:
      type: object
      properties:
        id:
          type: string
        fare:
          type: number
    Driver:
      type: object
      properties:
        id:
          type: string
    Placeholder:
      type: object
`

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	_, err := Load([]byte("paths: [unclosed"))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)

	_, err = Load([]byte(""))
	require.ErrorAs(t, err, &parseErr)

	_, err = Load([]byte("- just\n- a\n- list\n"))
	require.ErrorAs(t, err, &parseErr)
}

func TestRoundTripPreservesUnknownKeys(t *testing.T) {
	doc, err := Load([]byte(sampleSpec))
	require.NoError(t, err)

	out, err := doc.Save()
	require.NoError(t, err)

	assert.Contains(t, string(out), "x-custom-toplevel")
	assert.Contains(t, string(out), "x-unknown-extension: keep-me")

	// A second load/save cycle must be stable.
	doc2, err := Load(out)
	require.NoError(t, err)
	out2, err := doc2.Save()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(out2))
}

func TestOperationsOrderIsDeterministic(t *testing.T) {
	doc, err := Load([]byte(sampleSpec))
	require.NoError(t, err)

	ops := doc.Operations()
	require.Len(t, ops, 3)

	// Paths sort lexicographically; within a path the method table wins,
	// so GET /api/rides precedes POST /api/rides even though the document
	// lists post first.
	assert.Equal(t, "GET /api/drivers/{id}", ops[0].Key())
	assert.Equal(t, "GET /api/rides", ops[1].Key())
	assert.Equal(t, "POST /api/rides", ops[2].Key())
}

func TestOperationAccessors(t *testing.T) {
	doc, err := Load([]byte(sampleSpec))
	require.NoError(t, err)

	op, ok := doc.Lookup("POST", "/api/rides")
	require.True(t, ok)
	assert.Equal(t, "public", op.Visibility())
	assert.Equal(t, "implemented", op.Status())
	assert.Equal(t, "Request a ride", op.Summary())
	assert.Equal(t, "createRide", op.OperationID())
	assert.Equal(t, []string{"rides"}, op.Tags())
	assert.Equal(t, []string{"bearerAuth"}, op.Security(), "inherits the global security declaration")

	responses := op.SuccessResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "201", responses[0].Code)
	assert.Equal(t, "Ride", responses[0].SchemaName())

	// An explicit empty security sequence opts out of the global one.
	driver, ok := doc.Lookup("GET", "/api/drivers/{id}")
	require.True(t, ok)
	assert.Empty(t, driver.Security())

	// Defaults for absent extensions.
	list, ok := doc.Lookup("GET", "/api/rides")
	require.True(t, ok)
	assert.Equal(t, "stub", list.Status())
	assert.Equal(t, "Placeholder", list.SuccessResponses()[0].SchemaName())

	_, ok = doc.Lookup("DELETE", "/api/rides")
	assert.False(t, ok)
}

func TestVersionAndSchemaRegistry(t *testing.T) {
	doc, err := Load([]byte(sampleSpec))
	require.NoError(t, err)

	assert.Equal(t, "1.4.0", doc.Version())
	require.NotNil(t, doc.SchemaByName("Ride"))
	assert.Nil(t, doc.SchemaByName("Nope"))
}

func TestSetVisibilityMutatesDocument(t *testing.T) {
	doc, err := Load([]byte(sampleSpec))
	require.NoError(t, err)

	op, ok := doc.Lookup("GET", "/api/rides")
	require.True(t, ok)
	op.SetVisibility(VisibilityPublic)

	out, err := doc.Save()
	require.NoError(t, err)
	reloaded, err := Load(out)
	require.NoError(t, err)
	op2, ok := reloaded.Lookup("GET", "/api/rides")
	require.True(t, ok)
	assert.Equal(t, VisibilityPublic, op2.Visibility())
}

func TestSaveFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec), 0o644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	op, _ := doc.Lookup("GET", "/api/rides")
	op.SetVisibility(VisibilityPublic)
	require.NoError(t, doc.SaveFile(path))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	reloaded, err := LoadFile(path)
	require.NoError(t, err)
	op2, _ := reloaded.Lookup("GET", "/api/rides")
	assert.Equal(t, VisibilityPublic, op2.Visibility())
}
