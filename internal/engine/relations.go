package engine

import (
	"context"

	"github.com/parsnip-dev/parsnip/internal/graph"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/internal/parsniperr"
)

// CreateRelation resolves both endpoints by (project, name) and creates the
// edge. spec.FromProjectID/ToProjectID default to defaultProjectName when
// empty, so single-project callers never name a project twice.
func (e *Engine) CreateRelation(ctx context.Context, defaultProjectName string, spec graph.NewRelationSpec) (*graph.Relation, error) {
	done := metrics.TimeOp("create_relation")
	success := false
	defer func() { done(success) }()

	if err := graph.ValidateWeight(spec.Weight); err != nil {
		return nil, err
	}
	fromProject := spec.FromProjectID
	if fromProject == "" {
		fromProject = defaultProjectName
	}
	toProject := spec.ToProjectID
	if toProject == "" {
		toProject = defaultProjectName
	}
	fromProjectID, err := e.resolveProjectID(ctx, fromProject)
	if err != nil {
		return nil, err
	}
	toProjectID, err := e.resolveProjectID(ctx, toProject)
	if err != nil {
		return nil, err
	}
	from, err := e.backend.GetEntity(ctx, fromProjectID, spec.From)
	if err != nil {
		return nil, err
	}
	to, err := e.backend.GetEntity(ctx, toProjectID, spec.To)
	if err != nil {
		return nil, err
	}

	r := graph.NewRelation(fromProjectID, toProjectID, from.ID, from.Name, to.ID, to.Name, spec.RelationType)
	r.Weight = spec.Weight
	if spec.Metadata != nil {
		r.Metadata = spec.Metadata
	}
	if err := e.backend.PutRelation(ctx, r); err != nil {
		return nil, err
	}
	success = true
	return r, nil
}

// CreateRelations batch-creates relations.
func (e *Engine) CreateRelations(ctx context.Context, defaultProjectName string, specs []graph.NewRelationSpec) ([]*graph.Relation, error) {
	if err := graph.ValidateBatchRelations(len(specs)); err != nil {
		return nil, err
	}
	out := make([]*graph.Relation, 0, len(specs))
	for _, spec := range specs {
		r, err := e.CreateRelation(ctx, defaultProjectName, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// GetRelations returns the relations touching an entity in the given
// direction.
func (e *Engine) GetRelations(ctx context.Context, projectName, entityName string, direction graph.Direction) ([]*graph.Relation, error) {
	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return nil, err
	}
	ent, err := e.backend.GetEntity(ctx, projectID, entityName)
	if err != nil {
		return nil, err
	}
	switch direction {
	case graph.DirectionOutgoing:
		return e.backend.OutgoingRelations(ctx, projectID, ent.ID)
	case graph.DirectionIncoming:
		return e.backend.IncomingRelations(ctx, projectID, ent.ID)
	default:
		out, err := e.backend.OutgoingRelations(ctx, projectID, ent.ID)
		if err != nil {
			return nil, err
		}
		in, err := e.backend.IncomingRelations(ctx, projectID, ent.ID)
		if err != nil {
			return nil, err
		}
		return append(out, in...), nil
	}
}

// DeleteRelation removes the edge identified by its (from, to, type) triple
// within a project, resolving both endpoint names first. Idempotent.
func (e *Engine) DeleteRelation(ctx context.Context, projectName, fromName, toName, relationType string) error {
	done := metrics.TimeOp("delete_relation")
	success := false
	defer func() { done(success) }()

	projectID, err := e.resolveProjectID(ctx, projectName)
	if err != nil {
		return err
	}
	from, err := e.backend.GetEntity(ctx, projectID, fromName)
	if err != nil {
		return err
	}
	to, err := e.backend.GetEntity(ctx, projectID, toName)
	if err != nil {
		return err
	}
	r, err := e.backend.FindRelation(ctx, from.ID, to.ID, relationType)
	if err != nil {
		if parsniperr.Is(err, parsniperr.KindNotFound) {
			success = true
			return nil // idempotent: absent relation is not an error
		}
		return err
	}
	if err := e.backend.DeleteRelation(ctx, r.ID); err != nil {
		return err
	}
	success = true
	return nil
}
