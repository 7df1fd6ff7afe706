package store

import (
	"context"

	"github.com/getpup/sharding-orchestrator"
)

// MetadataStore provides durable storage for projects, shards, connections,
// schemas, per-shard execution statuses and shard keys.
// Implementations must be safe for concurrent access.
type MetadataStore interface {
	// CreateProject creates an inactive project.
	CreateProject(ctx context.Context, name, description string) (sharding.Project, error)

	// ListProjects returns all projects ordered by creation time.
	ListProjects(ctx context.Context) ([]sharding.Project, error)

	// GetProject returns a project by ID.
	// Returns ErrProjectNotFound if the project does not exist.
	GetProject(ctx context.Context, projectID string) (sharding.Project, error)

	// GetActiveProject returns the single active project.
	// Returns ErrProjectNotFound if no project is active.
	GetActiveProject(ctx context.Context) (sharding.Project, error)

	// SetProjectStatus updates the status of a project.
	// Returns ErrActiveProjectExists if activating would make a second project active.
	SetProjectStatus(ctx context.Context, projectID string, status sharding.ProjectStatus) error

	// CreateShard creates an inactive shard with the next free shard index of the project.
	CreateShard(ctx context.Context, projectID string) (sharding.Shard, error)

	// ListShards returns the shards of a project ordered by shard index.
	ListShards(ctx context.Context, projectID string) ([]sharding.Shard, error)

	// GetShard returns a shard by ID.
	// Returns ErrShardNotFound if the shard does not exist.
	GetShard(ctx context.Context, shardID string) (sharding.Shard, error)

	// SetShardStatus updates the status of a shard.
	SetShardStatus(ctx context.Context, shardID string, status sharding.ShardStatus) error

	// DeleteShard removes a shard together with its connection and execution statuses.
	DeleteShard(ctx context.Context, shardID string) error

	// GetConnection returns the connection settings of a shard, including the password.
	// Returns ErrConnectionNotFound if none were stored.
	GetConnection(ctx context.Context, shardID string) (sharding.ShardConnection, error)

	// CreateConnection stores connection settings for a shard.
	// Returns ErrConnectionExists if the shard already has settings.
	CreateConnection(ctx context.Context, conn sharding.ShardConnection) error

	// UpdateConnection replaces the connection settings of a shard.
	// An empty password keeps the stored one.
	UpdateConnection(ctx context.Context, conn sharding.ShardConnection) error

	// CreateSchema creates a draft schema.
	// Returns ErrSchemaInFlight if the project already has a non-terminal schema.
	CreateSchema(ctx context.Context, projectID, ddl string) (sharding.ProjectSchema, error)

	// GetSchema returns a schema by ID.
	GetSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error)

	// ListSchemas returns the schemas of a project, uncommitted drafts first,
	// then by version descending.
	ListSchemas(ctx context.Context, projectID string) ([]sharding.ProjectSchema, error)

	// UpdateSchemaDDL replaces the DDL of a draft.
	// Returns ErrSchemaNotDraft if the schema is no longer a draft.
	UpdateSchemaDDL(ctx context.Context, schemaID, ddl string) error

	// DeleteSchema removes a draft.
	// Returns ErrSchemaNotDraft if the schema is no longer a draft.
	DeleteSchema(ctx context.Context, schemaID string) error

	// CommitSchema moves a draft to pending and assigns the next version of its project.
	// Returns ErrProjectActive if the project is active at the time of the update.
	CommitSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error)

	// UpdateSchemaState sets the state of a committed schema.
	// errorMessage is stored only for the failed state; applied_at is set for the applied state.
	UpdateSchemaState(ctx context.Context, schemaID string, state sharding.SchemaState, errorMessage string) error

	// TransitionSchemaState moves a schema from one state to another and clears its error message.
	// Returns ErrSchemaStateChanged if the schema is no longer in the from state.
	TransitionSchemaState(ctx context.Context, schemaID string, from, to sharding.SchemaState) error

	// UpsertExecutionStatus records the outcome of a schema on one shard.
	UpsertExecutionStatus(ctx context.Context, status sharding.SchemaExecutionStatus) error

	// ListExecutionStatuses returns the per-shard statuses of a schema.
	ListExecutionStatuses(ctx context.Context, schemaID string) ([]sharding.SchemaExecutionStatus, error)

	// ListShardKeys returns the shard keys of a project ordered by table name.
	ListShardKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error)

	// ReplaceShardKeys atomically replaces every shard key of a project.
	// A record with a zero UpdatedAt is stamped with the current time.
	ReplaceShardKeys(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error
}
