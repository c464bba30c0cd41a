package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Merger applies a Plan to the graph. Implementations must be idempotent:
// applying the same plan twice leaves the graph in the same state as once.
type Merger interface {
	Apply(ctx context.Context, plan Plan) error
}

// MergeService applies plans through the Bolt driver. All statements of a
// plan run inside a single write transaction, in fixed order: replacements,
// then nodes, then edges.
type MergeService struct {
	client *Client
	logger ectologger.Logger

	// newUUID is swapped in tests for deterministic ids. Edge uuids are
	// generated client-side since Memgraph has no apoc.create.uuid().
	newUUID func() string
}

// NewMergeService creates a merge service backed by the graph client.
func NewMergeService(client *Client, logger ectologger.Logger) *MergeService {
	return &MergeService{
		client:  client,
		logger:  logger,
		newUUID: uuid.NewString,
	}
}

// Apply runs the plan in one write transaction. The driver bounds the batch
// size; plans are never split here, callers size them via the fetch limit.
func (s *MergeService) Apply(ctx context.Context, plan Plan) error {
	ctx, span := tracing.StartSpan(ctx, "graph.MergeService.Apply")
	defer span.End()

	if plan.IsEmpty() {
		return nil
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"replacements": len(plan.Replacements),
		"nodes":        len(plan.Nodes),
		"edges":        len(plan.Edges),
	})

	statements := s.render(plan)

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range statements {
			if _, err := tx.Run(ctx, stmt.Cypher, map[string]any{"batch": stmt.Batch}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to apply graph plan")
		return fmt.Errorf("failed to apply graph plan: %w", err)
	}

	log.Debug("Applied graph plan")
	return nil
}

// render turns the plan into ordered statements, assigning edge uuids.
func (s *MergeService) render(plan Plan) []Statement {
	var statements []Statement

	for _, group := range groupReplacements(plan.Replacements) {
		statements = append(statements, replacementStatement(group))
	}
	for _, group := range groupNodes(plan.Nodes) {
		statements = append(statements, nodeStatement(group))
	}
	for _, group := range groupEdges(plan.Edges) {
		stmt := edgeStatement(group)
		for _, row := range stmt.Batch {
			row["uuid"] = s.newUUID()
		}
		statements = append(statements, stmt)
	}

	return statements
}
