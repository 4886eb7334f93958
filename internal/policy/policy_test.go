package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rideflow/apigovern/internal/allowlist"
	"github.com/rideflow/apigovern/internal/report"
	"github.com/rideflow/apigovern/internal/specdoc"
)

func mustLoad(t *testing.T, text string) *specdoc.Document {
	t.Helper()
	doc, err := specdoc.Load([]byte(text))
	require.NoError(t, err)
	return doc
}

func TestParseReleaseState(t *testing.T) {
	for _, valid := range []string{"parked", "uat", "staging", "live"} {
		state, err := ParseReleaseState(valid)
		require.NoError(t, err)
		assert.Equal(t, ReleaseState(valid), state)
	}
	_, err := ParseReleaseState("production")
	assert.Error(t, err)
}

func TestParkedAndStagingForbidPublicOperations(t *testing.T) {
	withPublic := `info:
  version: 1.0.0
paths:
  /api/rides:
    post:
      x-visibility: public
    get:
      x-visibility: internal
`
	allInternal := `info:
  version: 1.0.0
paths:
  /api/rides:
    post:
      x-visibility: internal
`

	for _, state := range []ReleaseState{StateParked, StateStaging} {
		violations := Evaluate(state, mustLoad(t, withPublic), nil)
		require.Len(t, violations, 1, "state %s", state)
		assert.Equal(t, report.KindVisibility, violations[0].Kind)
		assert.Equal(t, "POST", violations[0].Method)
		assert.Equal(t, "/api/rides", violations[0].Path)

		assert.Empty(t, Evaluate(state, mustLoad(t, allInternal), nil))
	}
}

func TestUATRequiresAllowlistMembership(t *testing.T) {
	doc := `paths:
  /api/rides:
    post:
      x-visibility: public
  /api/drivers:
    get:
      x-visibility: public
`
	both := allowlist.Parse("POST /api/rides\nGET /api/drivers")
	assert.Empty(t, Evaluate(StateUAT, mustLoad(t, doc), both))

	one := allowlist.Parse("POST /api/rides")
	violations := Evaluate(StateUAT, mustLoad(t, doc), one)
	require.Len(t, violations, 1)
	assert.Equal(t, "GET", violations[0].Method)
	assert.Equal(t, "/api/drivers", violations[0].Path)
}

func TestLiveQualityGateReportsEachMissingAttribute(t *testing.T) {
	// One public operation missing both its security requirement and its
	// summary: exactly two distinct violations, not one generic failure.
	doc := `info:
  version: 2.0.0
paths:
  /api/rides:
    post:
      operationId: createRide
      tags: [rides]
      x-visibility: public
      security: []
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
`
	violations := Evaluate(StateLive, mustLoad(t, doc), nil)
	require.Len(t, violations, 2)

	reasons := []string{violations[0].Reason, violations[1].Reason}
	assert.Contains(t, reasons, "public operation has no security requirement")
	assert.Contains(t, reasons, "public operation has no summary")
	for _, v := range violations {
		assert.Equal(t, report.KindQuality, v.Kind)
		assert.Equal(t, "POST", v.Method)
		assert.Equal(t, "/api/rides", v.Path)
	}
}

func TestLiveFlagsPlaceholderSuccessSchema(t *testing.T) {
	doc := `security:
  - bearerAuth: []
paths:
  /api/rides:
    get:
      operationId: listRides
      summary: List rides
      tags: [rides]
      x-visibility: public
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Placeholder"
`
	violations := Evaluate(StateLive, mustLoad(t, doc), nil)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, "Placeholder")
}

func TestLiveIgnoresInternalOperations(t *testing.T) {
	doc := `paths:
  /api/internal/jobs:
    post:
      x-visibility: internal
`
	assert.Empty(t, Evaluate(StateLive, mustLoad(t, doc), nil))
}

func TestLiveFlagsInvalidSemver(t *testing.T) {
	doc := `info:
  version: not-a-version
paths: {}
`
	violations := Evaluate(StateLive, mustLoad(t, doc), nil)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Reason, "not-a-version")
}

func TestLiveFlagsDuplicateOperationIDs(t *testing.T) {
	doc := `security:
  - bearerAuth: []
paths:
  /api/rides:
    post:
      operationId: createRide
      summary: Request a ride
      tags: [rides]
      x-visibility: public
      responses:
        "201":
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Ride"
  /api/internal/rides:
    post:
      operationId: createRide
      x-visibility: internal
components:
  schemas:
    Ride:
      type: object
      properties:
        id:
          type: string
`
	violations := Evaluate(StateLive, mustLoad(t, doc), nil)
	require.Len(t, violations, 2, "one violation per operation sharing the id")

	for _, v := range violations {
		assert.Equal(t, report.KindQuality, v.Kind)
		assert.Contains(t, v.Reason, `operationId "createRide" is also used by`)
	}
	paths := []string{violations[0].Path, violations[1].Path}
	assert.Contains(t, paths, "/api/rides")
	assert.Contains(t, paths, "/api/internal/rides")
}

func TestLiveHasNoVisibilityRestriction(t *testing.T) {
	doc := `security:
  - bearerAuth: []
paths:
  /api/rides:
    post:
      operationId: createRide
      summary: Request a ride
      tags: [rides]
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
`
	assert.Empty(t, Evaluate(StateLive, mustLoad(t, doc), nil))
}
