package graph

import (
	"fmt"

	"github.com/parsnip-dev/parsnip/internal/parsniperr"
)

// Validation limits. Resource-protection ceilings applied before anything
// reaches storage.
const (
	MaxEntityNameLen         = 256
	MaxObservationLen        = 64 * 1024
	MaxObservationsPerEntity = 1000
	MaxBatchEntities         = 100
	MaxBatchRelations        = 100
	MaxTraversalDepth        = 50
	MaxTraversalNodes        = 10000
	MaxTagsPerEntity         = 100
	MaxTagLen                = 64
	MaxProjectNameLen        = 64
)

func ValidateEntityName(name string) error {
	if name == "" {
		return parsniperr.InvalidInput("validate_entity_name", fmt.Errorf("entity name cannot be empty"))
	}
	if len(name) > MaxEntityNameLen {
		return parsniperr.InvalidInput("validate_entity_name", fmt.Errorf("entity name too long: %d chars (max %d)", len(name), MaxEntityNameLen))
	}
	return nil
}

func ValidateObservation(content string) error {
	if content == "" {
		return parsniperr.InvalidInput("validate_observation", fmt.Errorf("observation cannot be empty"))
	}
	if len(content) > MaxObservationLen {
		return parsniperr.InvalidInput("validate_observation", fmt.Errorf("observation too long: %d bytes (max %d)", len(content), MaxObservationLen))
	}
	return nil
}

func ValidateTag(tag string) error {
	if len(tag) > MaxTagLen {
		return parsniperr.InvalidInput("validate_tag", fmt.Errorf("tag too long: %d chars (max %d)", len(tag), MaxTagLen))
	}
	return nil
}

func ValidateBatchEntities(count int) error {
	if count > MaxBatchEntities {
		return parsniperr.InvalidInput("validate_batch_entities", fmt.Errorf("too many entities in batch: %d (max %d)", count, MaxBatchEntities))
	}
	return nil
}

func ValidateBatchRelations(count int) error {
	if count > MaxBatchRelations {
		return parsniperr.InvalidInput("validate_batch_relations", fmt.Errorf("too many relations in batch: %d (max %d)", count, MaxBatchRelations))
	}
	return nil
}

func ValidateTraversalDepth(depth int) error {
	if depth > MaxTraversalDepth {
		return parsniperr.InvalidInput("validate_traversal_depth", fmt.Errorf("traversal depth too large: %d (max %d)", depth, MaxTraversalDepth))
	}
	return nil
}

// ValidateWeight rejects negative relation weights; a negative edge weight
// would make Dijkstra's non-negative-weight assumption unsound.
func ValidateWeight(weight *float64) error {
	if weight != nil && *weight < 0 {
		return parsniperr.InvalidInput("validate_weight", fmt.Errorf("relation weight cannot be negative: %v", *weight))
	}
	return nil
}

func ValidateProjectName(name string) error {
	if name == "" {
		return parsniperr.InvalidInput("validate_project_name", fmt.Errorf("project name cannot be empty"))
	}
	if len(name) > MaxProjectNameLen {
		return parsniperr.InvalidInput("validate_project_name", fmt.Errorf("project name too long: %d chars (max %d)", len(name), MaxProjectNameLen))
	}
	for _, c := range name {
		if !(c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return parsniperr.InvalidInput("validate_project_name", fmt.Errorf("project name contains invalid character %q", c))
		}
	}
	return nil
}
