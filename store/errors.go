package store

import "errors"

var (
	// ErrProjectNotFound indicates the project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrShardNotFound indicates the shard does not exist.
	ErrShardNotFound = errors.New("shard not found")

	// ErrConnectionNotFound indicates the shard has no stored connection settings.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConnectionExists indicates the shard already has connection settings.
	ErrConnectionExists = errors.New("connection already exists")

	// ErrSchemaNotFound indicates the schema does not exist.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrSchemaNotDraft indicates the operation requires a draft schema.
	ErrSchemaNotDraft = errors.New("schema is not a draft")

	// ErrSchemaInFlight indicates the project already has a draft, pending or applying schema.
	ErrSchemaInFlight = errors.New("a non-terminal schema already exists for the project")

	// ErrSchemaStateChanged indicates the schema left the expected state before the update.
	ErrSchemaStateChanged = errors.New("schema state changed concurrently")

	// ErrProjectActive indicates the operation requires an inactive project.
	ErrProjectActive = errors.New("project is active")

	// ErrActiveProjectExists indicates another project is already active.
	ErrActiveProjectExists = errors.New("another project is already active")
)
