package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parsnip-dev/parsnip/internal/parsniperr"
)

func assertInvalid(t *testing.T, err error) {
	t.Helper()
	assert.True(t, parsniperr.Is(err, parsniperr.KindInvalidInput), "want InvalidInput, got %v", err)
}

func TestValidateEntityName(t *testing.T) {
	assert.NoError(t, ValidateEntityName("John_Smith"))
	assertInvalid(t, ValidateEntityName(""))
	assertInvalid(t, ValidateEntityName(strings.Repeat("x", MaxEntityNameLen+1)))
}

func TestValidateObservation(t *testing.T) {
	assert.NoError(t, ValidateObservation("a fact"))
	assertInvalid(t, ValidateObservation(""))
	assertInvalid(t, ValidateObservation(strings.Repeat("x", MaxObservationLen+1)))
}

func TestValidateTag(t *testing.T) {
	assert.NoError(t, ValidateTag("engineer"))
	assertInvalid(t, ValidateTag(strings.Repeat("x", MaxTagLen+1)))
}

func TestValidateBatchCeilings(t *testing.T) {
	assert.NoError(t, ValidateBatchEntities(MaxBatchEntities))
	assertInvalid(t, ValidateBatchEntities(MaxBatchEntities+1))
	assert.NoError(t, ValidateBatchRelations(MaxBatchRelations))
	assertInvalid(t, ValidateBatchRelations(MaxBatchRelations+1))
}

func TestValidateTraversalDepth(t *testing.T) {
	assert.NoError(t, ValidateTraversalDepth(MaxTraversalDepth))
	assertInvalid(t, ValidateTraversalDepth(MaxTraversalDepth+1))
}

func TestValidateWeight(t *testing.T) {
	assert.NoError(t, ValidateWeight(nil))
	zero := 0.0
	assert.NoError(t, ValidateWeight(&zero))
	neg := -0.1
	assertInvalid(t, ValidateWeight(&neg))
}

func TestValidateProjectName(t *testing.T) {
	assert.NoError(t, ValidateProjectName("work_2024"))
	assertInvalid(t, ValidateProjectName("my-project"))
	assertInvalid(t, ValidateProjectName(""))
	assertInvalid(t, ValidateProjectName("has space"))
	assertInvalid(t, ValidateProjectName("slash/name"))
	assertInvalid(t, ValidateProjectName(strings.Repeat("x", MaxProjectNameLen+1)))
}
