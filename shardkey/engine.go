package shardkey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/ddl"
	"github.com/getpup/sharding-orchestrator/metrics"
	"github.com/getpup/sharding-orchestrator/store"
)

// Config holds configuration for the inference Engine.
type Config struct {
	// Store is the metadata store (required).
	Store store.MetadataStore

	// Logger is for observability (optional).
	Logger es.Logger

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	MetricsEnabled *bool

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Engine derives and stores the shard keys of a project.
type Engine struct {
	config Config
}

// New creates a new Engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{config: cfg}
}

// RecomputeKeys rebuilds the logical schema from every applied schema of the
// project, in version order, and merges the inferred keys into the stored ones.
// Returns a PreconditionError when nothing has been applied yet.
func (e *Engine) RecomputeKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error) {
	if err := e.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	schemas, err := e.config.Store.ListSchemas(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	applied := make([]sharding.ProjectSchema, 0, len(schemas))
	for _, s := range schemas {
		if s.State == sharding.SchemaStateApplied {
			applied = append(applied, s)
		}
	}
	if len(applied) == 0 {
		return nil, sharding.NewPreconditionError(sharding.ReasonNoAppliedSchema,
			"project has no applied schema to infer shard keys from")
	}
	sort.Slice(applied, func(i, j int) bool {
		return applied[i].Version < applied[j].Version
	})

	scripts := make([]string, len(applied))
	for i, s := range applied {
		scripts[i] = s.DDL
	}
	logical, err := ddl.Build(scripts...)
	if err != nil {
		return nil, sharding.NewValidationError("ddl_sql",
			"shard keys can only be inferred from PostgreSQL DDL, set them manually instead: "+err.Error())
	}

	existing, err := e.config.Store.ListShardKeys(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shard keys: %w", err)
	}

	merged := Merge(existing, CandidatesFor(logical), e.config.Now())
	if err := e.config.Store.ReplaceShardKeys(ctx, projectID, merged); err != nil {
		return nil, fmt.Errorf("failed to store shard keys: %w", err)
	}

	metrics.For(metrics.Enabled(e.config.MetricsEnabled), projectID).IncShardKeyRecomputations()
	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "shard keys recomputed",
			"projectID", projectID, "tables", len(logical.Tables), "keys", len(merged))
	}

	return merged, nil
}

// OnApplied recomputes the keys of a project after one of its schemas was
// applied. It matches the lifecycle post-apply hook.
func (e *Engine) OnApplied(ctx context.Context, projectID string) error {
	_, err := e.RecomputeKeys(ctx, projectID)
	return err
}

// ReplaceShardKeys stores records as the complete key set of the project,
// bypassing inference. Table names must be unique and both names non-empty.
func (e *Engine) ReplaceShardKeys(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error {
	seen := make(map[string]bool, len(records))
	normalized := make([]sharding.ShardKeyRecord, 0, len(records))
	for i, r := range records {
		r.TableName = strings.TrimSpace(r.TableName)
		r.ShardKeyColumn = strings.TrimSpace(r.ShardKeyColumn)
		if r.TableName == "" {
			return sharding.NewValidationError(fmt.Sprintf("records[%d].table_name", i), "must not be empty")
		}
		if r.ShardKeyColumn == "" {
			return sharding.NewValidationError(fmt.Sprintf("records[%d].shard_key_column", i), "must not be empty")
		}
		if seen[r.TableName] {
			return sharding.NewValidationError(fmt.Sprintf("records[%d].table_name", i), "duplicate table "+r.TableName)
		}
		seen[r.TableName] = true

		r.ProjectID = projectID
		r.UpdatedAt = e.config.Now()
		normalized = append(normalized, r)
	}

	if err := e.requireProject(ctx, projectID); err != nil {
		return err
	}

	if err := e.config.Store.ReplaceShardKeys(ctx, projectID, normalized); err != nil {
		return fmt.Errorf("failed to store shard keys: %w", err)
	}

	if e.config.Logger != nil {
		e.config.Logger.Info(ctx, "shard keys replaced", "projectID", projectID, "keys", len(normalized))
	}
	return nil
}

// FetchShardKeys returns the stored keys of a project ordered by table name.
func (e *Engine) FetchShardKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error) {
	if err := e.requireProject(ctx, projectID); err != nil {
		return nil, err
	}

	keys, err := e.config.Store.ListShardKeys(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shard keys: %w", err)
	}
	return keys, nil
}

func (e *Engine) requireProject(ctx context.Context, projectID string) error {
	_, err := e.config.Store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrProjectNotFound) {
		return sharding.NewNotFoundError("project", projectID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	return nil
}
