package engine

import (
	"context"
	"fmt"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
)

// CreateEntity creates a single entity in the named project (or the default
// project if projectName is empty). Fails AlreadyExists if the name is
// already taken in that project.
func (e *Engine) CreateEntity(ctx context.Context, projectName string, spec graph.NewEntitySpec) (*graph.Entity, error) {
	done := metrics.TimeOp("create_entity")
	success := false
	defer func() { done(success) }()

	if err := graph.ValidateEntityName(spec.Name); err != nil {
		return nil, err
	}
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	ent := graph.NewEntity(projectID, spec.Name, spec.EntityType)
	for _, o := range spec.Observations {
		if err := graph.ValidateObservation(o); err != nil {
			return nil, err
		}
		ent.AddObservation(o)
	}
	for _, t := range spec.Tags {
		if err := graph.ValidateTag(t); err != nil {
			return nil, err
		}
		ent.AddTag(t)
	}
	if spec.Metadata != nil {
		ent.Metadata = spec.Metadata
	}
	ent.Embedding = spec.Embedding

	if err := e.backend.PutEntity(ctx, ent); err != nil {
		return nil, err
	}
	e.search.FullTextIndex().IndexEntity(ent)
	success = true
	return ent, nil
}

// CreateEntities batch-creates entities, all in the same project.
func (e *Engine) CreateEntities(ctx context.Context, projectName string, specs []graph.NewEntitySpec) ([]*graph.Entity, error) {
	if err := graph.ValidateBatchEntities(len(specs)); err != nil {
		return nil, err
	}
	out := make([]*graph.Entity, 0, len(specs))
	for _, spec := range specs {
		ent, err := e.CreateEntity(ctx, projectName, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

// GetEntity fetches one entity by name within a project.
func (e *Engine) GetEntity(ctx context.Context, projectName, name string) (*graph.Entity, error) {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	return e.backend.GetEntity(ctx, projectID, name)
}

// GetEntities fetches the present subset of names; missing names are
// silently dropped rather than erroring.
func (e *Engine) GetEntities(ctx context.Context, projectName string, names []string) ([]*graph.Entity, error) {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	out := make([]*graph.Entity, 0, len(names))
	for _, name := range names {
		ent, err := e.backend.GetEntity(ctx, projectID, name)
		if err != nil {
			if parsniperr.Is(err, parsniperr.KindNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

// UpdateEntity applies a partial update by name, refusing to change the
// entity's project or id. Returns the updated entity.
func (e *Engine) UpdateEntity(ctx context.Context, projectName, name string, spec graph.UpdateEntitySpec) (*graph.Entity, error) {
	done := metrics.TimeOp("update_entity")
	success := false
	defer func() { done(success) }()

	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	updated := ent.Clone()

	if spec.EntityType != nil {
		updated.EntityType = *spec.EntityType
	}
	if spec.Embedding != nil {
		updated.Embedding = spec.Embedding
	}
	if spec.ReplaceObservations != nil {
		updated.Observations = nil
		for _, o := range spec.ReplaceObservations {
			if err := graph.ValidateObservation(o); err != nil {
				return nil, err
			}
			updated.AddObservation(o)
		}
	}
	for _, o := range spec.MergeObservations {
		if err := graph.ValidateObservation(o); err != nil {
			return nil, err
		}
		updated.AddObservation(o)
	}
	if spec.ReplaceTags != nil {
		updated.Tags = nil
		for _, t := range spec.ReplaceTags {
			if err := graph.ValidateTag(t); err != nil {
				return nil, err
			}
			updated.AddTag(t)
		}
	}
	for _, t := range spec.MergeTags {
		if err := graph.ValidateTag(t); err != nil {
			return nil, err
		}
		updated.AddTag(t)
	}
	if spec.Name != "" && spec.Name != updated.Name {
		if err := graph.ValidateEntityName(spec.Name); err != nil {
			return nil, err
		}
		// A rename changes the (project_id, name) primary key; the backend
		// enforces uniqueness on PutEntity the same as for a brand new
		// entity, so a collision surfaces as AlreadyExists here too.
		updated.Name = spec.Name
	}

	if err := e.backend.PutEntity(ctx, updated); err != nil {
		return nil, err
	}
	e.search.FullTextIndex().IndexEntity(updated)
	success = true
	return updated, nil
}

// DeleteEntity removes an entity and cascades relation deletion.
// Idempotent: deleting an absent entity is not an error.
func (e *Engine) DeleteEntity(ctx context.Context, projectName, name string) error {
	done := metrics.TimeOp("delete_entity")
	success := false
	defer func() { done(success) }()

	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, name)
	if err != nil {
		if parsniperr.Is(err, parsniperr.KindNotFound) {
			success = true
			return nil
		}
		return err
	}
	rels, err := e.backend.RelationsForEntityGlobal(ctx, ent.ID)
	if err != nil {
		return err
	}
	for _, r := range rels {
		if err := e.backend.DeleteRelation(ctx, r.ID); err != nil {
			return err
		}
	}
	if err := e.backend.DeleteEntity(ctx, projectID, name); err != nil {
		return err
	}
	e.search.FullTextIndex().RemoveEntity(ent.ID)
	success = true
	return nil
}

// AddObservations appends facts to an entity, preserving ordering. All
// validation runs against a clone so a rejected call leaves the stored
// entity untouched — the backend may hand back its own live record.
func (e *Engine) AddObservations(ctx context.Context, projectName, name string, texts []string) ([]graph.Observation, error) {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	if len(ent.Observations)+len(texts) > graph.MaxObservationsPerEntity {
		return nil, parsniperr.InvalidInput("add_observations", fmt.Errorf("entity %q would exceed max observations (%d)", name, graph.MaxObservationsPerEntity))
	}
	updated := ent.Clone()
	added := make([]graph.Observation, 0, len(texts))
	for _, text := range texts {
		if err := graph.ValidateObservation(text); err != nil {
			return nil, err
		}
		added = append(added, updated.AddObservation(text))
	}
	if err := e.backend.PutEntity(ctx, updated); err != nil {
		return nil, err
	}
	e.search.FullTextIndex().IndexEntity(updated)
	return added, nil
}

// RemoveObservations deletes observations by id; atomic per call.
func (e *Engine) RemoveObservations(ctx context.Context, projectName, name string, ids []string) (int, error) {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return 0, err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, name)
	if err != nil {
		return 0, err
	}
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	updated := ent.Clone()
	removed := updated.RemoveObservations(idSet)
	if removed > 0 {
		if err := e.backend.PutEntity(ctx, updated); err != nil {
			return 0, err
		}
		e.search.FullTextIndex().IndexEntity(updated)
	}
	return removed, nil
}

// AddTags applies set-semantics tag addition. Mutation happens on a clone
// so the exceed-max rejection below can't leave a half-applied tag set in
// the backend.
func (e *Engine) AddTags(ctx context.Context, projectName, name string, tags []string) error {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, name)
	if err != nil {
		return err
	}
	updated := ent.Clone()
	changed := false
	for _, t := range tags {
		if err := graph.ValidateTag(t); err != nil {
			return err
		}
		if updated.AddTag(t) {
			changed = true
		}
	}
	if len(updated.Tags) > graph.MaxTagsPerEntity {
		return parsniperr.InvalidInput("add_tags", fmt.Errorf("entity %q would exceed max tags (%d)", name, graph.MaxTagsPerEntity))
	}
	if changed {
		if err := e.backend.PutEntity(ctx, updated); err != nil {
			return err
		}
		e.search.FullTextIndex().IndexEntity(updated)
	}
	return nil
}

// RemoveTags applies set-semantics tag removal.
func (e *Engine) RemoveTags(ctx context.Context, projectName, name string, tags []string) error {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, name)
	if err != nil {
		return err
	}
	updated := ent.Clone()
	changed := false
	for _, t := range tags {
		if updated.RemoveTag(t) {
			changed = true
		}
	}
	if changed {
		if err := e.backend.PutEntity(ctx, updated); err != nil {
			return err
		}
		e.search.FullTextIndex().IndexEntity(updated)
	}
	return nil
}
