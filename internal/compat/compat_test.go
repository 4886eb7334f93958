package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/specdoc"
)

func mustLoad(t *testing.T, text string) *specdoc.Document {
	t.Helper()
	doc, err := specdoc.Load([]byte(text))
	require.NoError(t, err)
	return doc
}

const baseSpec = `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
components:
  schemas:
    Ride:
      type: object
      properties:
        id:
          type: string
        fare:
          type: number
        driver:
          $ref: "#/components/schemas/Driver"
    Driver:
      type: object
      properties:
        name:
          type: string
`

func TestAdditiveChangesAreCompatible(t *testing.T) {
	current := `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
  /api/drivers:
    get:
      x-visibility: public
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
        eta:
          type: integer
        driver:
          $ref: "#/components/schemas/Driver"
    Driver:
      type: object
      properties:
        name:
          type: string
        rating:
          type: number
`
	violations := Compare(mustLoad(t, baseSpec), mustLoad(t, current))
	assert.Empty(t, violations)
}

func TestRemovedFieldIsBreaking(t *testing.T) {
	current := `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
components:
  schemas:
    Ride:
      type: object
      properties:
        id:
          type: string
        driver:
          $ref: "#/components/schemas/Driver"
    Driver:
      type: object
      properties:
        name:
          type: string
`
	violations := Compare(mustLoad(t, baseSpec), mustLoad(t, current))
	require.Len(t, violations, 1)
	assert.Equal(t, report.KindCompatibility, violations[0].Kind)
	assert.Equal(t, "POST", violations[0].Method)
	assert.Equal(t, "/api/rides", violations[0].Path)
	assert.Contains(t, violations[0].Reason, `"fare"`)
}

func TestRemovedNestedFieldIsBreaking(t *testing.T) {
	current := `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
components:
  schemas:
    Ride:
      type: object
      properties:
        id:
          type: string
        fare:
          type: number
        driver:
          $ref: "#/components/schemas/Driver"
    Driver:
      type: object
      properties:
        licensePlate:
          type: string
`
	violations := Compare(mustLoad(t, baseSpec), mustLoad(t, current))
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, `"driver.name"`)
}

func TestRemovedOperationIsNotAViolation(t *testing.T) {
	violations := Compare(mustLoad(t, baseSpec), mustLoad(t, "paths: {}\n"))
	assert.Empty(t, violations)
}

func TestRemovedSuccessResponseIsBreaking(t *testing.T) {
	current := `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "400":
          description: bad request
`
	violations := Compare(mustLoad(t, baseSpec), mustLoad(t, current))
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, "success response 201 was removed")
}

func TestInternalBaseOperationsAreSkipped(t *testing.T) {
	base := `paths:
  /api/internal/jobs:
    post:
      x-visibility: internal
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Job"
components:
  schemas:
    Job:
      type: object
      properties:
        id:
          type: string
`
	violations := Compare(mustLoad(t, base), mustLoad(t, "paths: {}\n"))
	assert.Empty(t, violations)
}

func TestArrayItemFieldsAreTracked(t *testing.T) {
	base := `paths:
  /api/rides:
    get:
      x-visibility: public
      responses:
        "200":
          content:
            application/json:
              schema:
                type: array
                items:
                  type: object
                  properties:
                    id:
                      type: string
                    fare:
                      type: number
`
	current := `paths:
  /api/rides:
    get:
      x-visibility: public
      responses:
        "200":
          content:
            application/json:
              schema:
                type: array
                items:
                  type: object
                  properties:
                    id:
                      type: string
`
	violations := Compare(mustLoad(t, base), mustLoad(t, current))
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, `"[].fare"`)
}

const sharedRefBase = `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
components:
  schemas:
    Ride:
      type: object
      properties:
        pickup:
          $ref: "#/components/schemas/Address"
        dropoff:
          $ref: "#/components/schemas/Address"
    Address:
      type: object
      properties:
        street:
          type: string
        city:
          type: string
`

func TestReorderedSiblingRefsAreCompatible(t *testing.T) {
	reordered := `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
components:
  schemas:
    Ride:
      type: object
      properties:
        dropoff:
          $ref: "#/components/schemas/Address"
        pickup:
          $ref: "#/components/schemas/Address"
    Address:
      type: object
      properties:
        street:
          type: string
        city:
          type: string
`
	violations := Compare(mustLoad(t, sharedRefBase), mustLoad(t, reordered))
	assert.Empty(t, violations)
}

func TestSharedSchemaRemovalFlagsEveryBranch(t *testing.T) {
	current := `paths:
  /api/rides:
    post:
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
components:
  schemas:
    Ride:
      type: object
      properties:
        pickup:
          $ref: "#/components/schemas/Address"
        dropoff:
          $ref: "#/components/schemas/Address"
    Address:
      type: object
      properties:
        city:
          type: string
`
	violations := Compare(mustLoad(t, sharedRefBase), mustLoad(t, current))
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0].Reason, `"dropoff.street"`)
	assert.Contains(t, violations[1].Reason, `"pickup.street"`)
}

func TestSelfReferentialSchemasTerminate(t *testing.T) {
	recursive := `paths:
  /api/zones:
    get:
      x-visibility: public
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Zone"
components:
  schemas:
    Zone:
      type: object
      properties:
        name:
          type: string
        parent:
          $ref: "#/components/schemas/Zone"
`
	violations := Compare(mustLoad(t, recursive), mustLoad(t, recursive))
	assert.Empty(t, violations)
}
