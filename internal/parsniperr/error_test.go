package parsniperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindIsPreservedThroughWrapping(t *testing.T) {
	inner := NotFound("storage.get_entity", fmt.Errorf("entity %q not found", "alice"))
	wrapped := fmt.Errorf("engine.get_entity: %w", inner)

	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindAlreadyExists))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.False(t, Is(errors.New("plain"), KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := AlreadyExists("create_project", fmt.Errorf("project %q taken", "work"))
	assert.Contains(t, err.Error(), "create_project")
	assert.Contains(t, err.Error(), "AlreadyExists")
	assert.Contains(t, err.Error(), "work")

	bare := New(KindStorageError, "open", nil)
	assert.Contains(t, bare.Error(), "StorageError")
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("commit", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestKindStrings(t *testing.T) {
	for k, want := range map[Kind]string{
		KindNotFound:        "NotFound",
		KindAlreadyExists:   "AlreadyExists",
		KindInvalidInput:    "InvalidInput",
		KindIntegrityError:  "IntegrityError",
		KindStorageError:    "StorageError",
		KindSchemaTooNew:    "SchemaTooNew",
		KindMigrationFailed: "MigrationFailed",
		KindCancelled:       "Cancelled",
		KindNoPath:          "NoPath",
		KindUnknown:         "Unknown",
	} {
		assert.Equal(t, want, k.String())
	}
}
