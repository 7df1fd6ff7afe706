package sharding

import "time"

// ProjectStatus is the activation state of a project.
type ProjectStatus string

const (
	// ProjectStatusInactive indicates the project is not routable and its schema may be committed.
	ProjectStatusInactive ProjectStatus = "inactive"

	// ProjectStatusActive indicates the project is routable and its schema may be executed.
	// At most one project is active at any time.
	ProjectStatusActive ProjectStatus = "active"
)

// ShardStatus is the activation state of a single shard.
type ShardStatus string

const (
	// ShardStatusInactive indicates the shard has no pooled connection.
	ShardStatusInactive ShardStatus = "inactive"

	// ShardStatusActive indicates the shard has a live pooled connection.
	ShardStatusActive ShardStatus = "active"
)

// Project groups a set of shards that together hold one logical schema.
type Project struct {
	// ID is the unique identifier for this project (UUID).
	ID string `json:"id"`

	// Name is the display name. It must not be empty.
	Name string `json:"name"`

	// Description is free text.
	Description string `json:"description"`

	// ShardCount is the number of shards currently owned by the project.
	ShardCount int `json:"shard_count"`

	// Status is the activation state of the project.
	Status ProjectStatus `json:"status"`

	// CreatedAt is when this project was created.
	CreatedAt time.Time `json:"created_at"`
}

// Shard is one independently addressable database holding a slice of a project's data.
// ShardIndex is unique within the project and never changes after creation.
// A shard cannot be deleted while it is active.
type Shard struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"project_id"`
	ShardIndex int         `json:"shard_index"`
	Status     ShardStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Driver names accepted in ShardConnection.Driver.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// ShardConnection holds the settings used to reach a shard database.
// There is exactly one connection per shard.
type ShardConnection struct {
	ShardID string `json:"shard_id"`

	// Driver selects the database driver (default: postgres).
	Driver string `json:"driver,omitempty"`

	Host         string `json:"host"`
	Port         int    `json:"port"`
	DatabaseName string `json:"database_name"`
	Username     string `json:"username"`

	// Password is accepted on writes and never returned to callers in plaintext.
	Password string `json:"password,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Redacted returns a copy of the connection with the password removed.
func (c ShardConnection) Redacted() ShardConnection {
	c.Password = ""
	return c
}

// SchemaState is the lifecycle state of a ProjectSchema.
type SchemaState string

const (
	// SchemaStateNone is reported when a project has no schema at all. It is never stored.
	SchemaStateNone SchemaState = "none"

	// SchemaStateDraft indicates an editable schema without a version.
	SchemaStateDraft SchemaState = "draft"

	// SchemaStatePending indicates a committed schema awaiting execution.
	SchemaStatePending SchemaState = "pending"

	// SchemaStateApplying indicates execution against the shards is in progress.
	SchemaStateApplying SchemaState = "applying"

	// SchemaStateApplied indicates every dispatched shard applied the schema.
	SchemaStateApplied SchemaState = "applied"

	// SchemaStateFailed indicates at least one shard failed to apply the schema.
	SchemaStateFailed SchemaState = "failed"
)

// IsTerminal reports whether the state is applied or failed.
func (s SchemaState) IsTerminal() bool {
	return s == SchemaStateApplied || s == SchemaStateFailed
}

// ProjectSchema is one versioned DDL change for a project.
type ProjectSchema struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`

	// Version is assigned at commit and increases per project.
	// A value of 0 indicates a draft that has not been committed yet.
	Version int `json:"version"`

	State        SchemaState `json:"state"`
	DDL          string      `json:"ddl_sql"`
	ErrorMessage string      `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// ExecutionState is the per-shard state of a schema execution.
type ExecutionState string

const (
	ExecutionStatePending  ExecutionState = "pending"
	ExecutionStateApplying ExecutionState = "applying"
	ExecutionStateApplied  ExecutionState = "applied"
	ExecutionStateFailed   ExecutionState = "failed"
)

// SchemaExecutionStatus records the outcome of one schema on one shard.
// There is at most one row per (schema, shard) pair.
type SchemaExecutionStatus struct {
	ID           string         `json:"id"`
	SchemaID     string         `json:"schema_id"`
	ShardID      string         `json:"shard_id"`
	State        ExecutionState `json:"state"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ExecutedAt   *time.Time     `json:"executed_at,omitempty"`
}

// ShardKeyRecord names the sharding column of one table in a project.
type ShardKeyRecord struct {
	ProjectID      string `json:"project_id"`
	TableName      string `json:"table_name"`
	ShardKeyColumn string `json:"shard_key_column"`

	// IsManualOverride pins the column so that recomputation leaves it unchanged.
	IsManualOverride bool      `json:"is_manual_override"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Capabilities lists which schema lifecycle actions are currently legal for a project.
type Capabilities struct {
	CanCreateDraft bool `json:"can_create_draft"`
	CanEditDraft   bool `json:"can_edit_draft"`
	CanCommit      bool `json:"can_commit"`
	CanExecute     bool `json:"can_execute"`
	CanRetry       bool `json:"can_retry"`

	// Reason explains why nothing is allowed. It is empty when any action is allowed.
	Reason string `json:"reason,omitempty"`
}

// DeleteShardResult is the outcome of a shard deletion request.
// Refusing to delete an active shard is a normal result, not an error.
type DeleteShardResult string

const (
	// DeleteShardDeleted indicates the shard and its connection were removed.
	DeleteShardDeleted DeleteShardResult = "DELETED"

	// DeleteShardActive indicates the shard is active and was left untouched.
	DeleteShardActive DeleteShardResult = "CANNOT_DELETE_ACTIVE_SHARD"
)

// ExecutionResult is the outcome of one statement on one shard.
type ExecutionResult struct {
	ShardID      string   `json:"shard_id"`
	ShardIndex   int      `json:"shard_index"`
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`

	// Err is nil on success.
	Err error `json:"-"`

	// Error mirrors Err for serialization.
	Error string `json:"error,omitempty"`
}
