package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/store"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// Store is a PostgreSQL implementation of MetadataStore.
type Store struct {
	db     *sql.DB
	tables TableConfig
}

// New creates a new PostgreSQL store with default table names.
func New(db *sql.DB) *Store {
	return NewWithConfig(db, DefaultTableConfig())
}

// NewWithConfig creates a new PostgreSQL store with custom table names.
func NewWithConfig(db *sql.DB, config TableConfig) *Store {
	return &Store{db: db, tables: config}
}

var _ store.MetadataStore = (*Store)(nil)

// Migrate creates the metadata tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, MigrationUp(s.tables)); err != nil {
		return fmt.Errorf("failed to execute migrations: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Store) projectColumns() string {
	return fmt.Sprintf(`p.id, p.name, p.description, p.status, p.created_at,
		(SELECT COUNT(*) FROM %s sh WHERE sh.project_id = p.id)`, s.tables.ShardsTable)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (sharding.Project, error) {
	var p sharding.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.CreatedAt, &p.ShardCount)
	return p, err
}

// CreateProject creates an inactive project.
func (s *Store) CreateProject(ctx context.Context, name, description string) (sharding.Project, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, description, status, created_at)
		VALUES ($1, $2, $3, 'inactive', NOW())
		RETURNING created_at
	`, s.tables.ProjectsTable)

	p := sharding.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      sharding.ProjectStatusInactive,
	}

	if err := s.db.QueryRowContext(ctx, query, p.ID, name, description).Scan(&p.CreatedAt); err != nil {
		return sharding.Project{}, fmt.Errorf("failed to create project: %w", err)
	}

	return p, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]sharding.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p ORDER BY p.created_at`, s.projectColumns(), s.tables.ProjectsTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]sharding.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, projectID string) (sharding.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p WHERE p.id = $1`, s.projectColumns(), s.tables.ProjectsTable)

	p, err := scanProject(s.db.QueryRowContext(ctx, query, projectID))
	if err == sql.ErrNoRows {
		return sharding.Project{}, store.ErrProjectNotFound
	}
	if err != nil {
		return sharding.Project{}, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// GetActiveProject returns the single active project.
func (s *Store) GetActiveProject(ctx context.Context) (sharding.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s p WHERE p.status = 'active'`, s.projectColumns(), s.tables.ProjectsTable)

	p, err := scanProject(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return sharding.Project{}, store.ErrProjectNotFound
	}
	if err != nil {
		return sharding.Project{}, fmt.Errorf("failed to get active project: %w", err)
	}

	return p, nil
}

// SetProjectStatus updates the status of a project.
// The partial unique index rejects a second active project.
func (s *Store) SetProjectStatus(ctx context.Context, projectID string, status sharding.ProjectStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $1 WHERE id = $2`, s.tables.ProjectsTable)

	result, err := s.db.ExecContext(ctx, query, string(status), projectID)
	if isUniqueViolation(err) {
		return store.ErrActiveProjectExists
	}
	if err != nil {
		return fmt.Errorf("failed to set project status: %w", err)
	}

	return requireAffected(result, store.ErrProjectNotFound)
}

// CreateShard creates an inactive shard with the next free shard index of the project.
func (s *Store) CreateShard(ctx context.Context, projectID string) (sharding.Shard, error) {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (id, project_id, shard_index, status, created_at)
		SELECT $1, p.id,
			COALESCE((SELECT MAX(shard_index) + 1 FROM %[1]s WHERE project_id = p.id), 0),
			'inactive', NOW()
		FROM %[2]s p WHERE p.id = $2
		RETURNING shard_index, created_at
	`, s.tables.ShardsTable, s.tables.ProjectsTable)

	shard := sharding.Shard{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Status:    sharding.ShardStatusInactive,
	}

	err := s.db.QueryRowContext(ctx, query, shard.ID, projectID).Scan(&shard.ShardIndex, &shard.CreatedAt)
	if err == sql.ErrNoRows {
		return sharding.Shard{}, store.ErrProjectNotFound
	}
	if err != nil {
		return sharding.Shard{}, fmt.Errorf("failed to create shard: %w", err)
	}

	return shard, nil
}

// ListShards returns the shards of a project ordered by shard index.
func (s *Store) ListShards(ctx context.Context, projectID string) ([]sharding.Shard, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, shard_index, status, created_at
		FROM %s WHERE project_id = $1 ORDER BY shard_index
	`, s.tables.ShardsTable)

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}
	defer rows.Close()

	shards := make([]sharding.Shard, 0)
	for rows.Next() {
		var sh sharding.Shard
		if err := rows.Scan(&sh.ID, &sh.ProjectID, &sh.ShardIndex, &sh.Status, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shard: %w", err)
		}
		shards = append(shards, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shards: %w", err)
	}

	return shards, nil
}

// GetShard returns a shard by ID.
func (s *Store) GetShard(ctx context.Context, shardID string) (sharding.Shard, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, shard_index, status, created_at FROM %s WHERE id = $1
	`, s.tables.ShardsTable)

	var sh sharding.Shard
	err := s.db.QueryRowContext(ctx, query, shardID).Scan(&sh.ID, &sh.ProjectID, &sh.ShardIndex, &sh.Status, &sh.CreatedAt)
	if err == sql.ErrNoRows {
		return sharding.Shard{}, store.ErrShardNotFound
	}
	if err != nil {
		return sharding.Shard{}, fmt.Errorf("failed to get shard: %w", err)
	}

	return sh, nil
}

// SetShardStatus updates the status of a shard.
func (s *Store) SetShardStatus(ctx context.Context, shardID string, status sharding.ShardStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $1 WHERE id = $2`, s.tables.ShardsTable)

	result, err := s.db.ExecContext(ctx, query, string(status), shardID)
	if err != nil {
		return fmt.Errorf("failed to set shard status: %w", err)
	}

	return requireAffected(result, store.ErrShardNotFound)
}

// DeleteShard removes a shard. Its connection and execution statuses cascade.
func (s *Store) DeleteShard(ctx context.Context, shardID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tables.ShardsTable)

	result, err := s.db.ExecContext(ctx, query, shardID)
	if err != nil {
		return fmt.Errorf("failed to delete shard: %w", err)
	}

	return requireAffected(result, store.ErrShardNotFound)
}

// GetConnection returns the connection settings of a shard.
func (s *Store) GetConnection(ctx context.Context, shardID string) (sharding.ShardConnection, error) {
	query := fmt.Sprintf(`
		SELECT shard_id, driver, host, port, database_name, username, password, created_at, updated_at
		FROM %s WHERE shard_id = $1
	`, s.tables.ConnectionsTable)

	var c sharding.ShardConnection
	err := s.db.QueryRowContext(ctx, query, shardID).Scan(
		&c.ShardID, &c.Driver, &c.Host, &c.Port, &c.DatabaseName,
		&c.Username, &c.Password, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return sharding.ShardConnection{}, store.ErrConnectionNotFound
	}
	if err != nil {
		return sharding.ShardConnection{}, fmt.Errorf("failed to get connection: %w", err)
	}

	return c, nil
}

// CreateConnection stores connection settings for a shard.
func (s *Store) CreateConnection(ctx context.Context, conn sharding.ShardConnection) error {
	if _, err := s.GetShard(ctx, conn.ShardID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (shard_id, driver, host, port, database_name, username, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`, s.tables.ConnectionsTable)

	_, err := s.db.ExecContext(ctx, query, conn.ShardID, driverOrDefault(conn.Driver), conn.Host, conn.Port,
		conn.DatabaseName, conn.Username, conn.Password)
	if isUniqueViolation(err) {
		return store.ErrConnectionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	return nil
}

// UpdateConnection replaces the connection settings of a shard.
// An empty password keeps the stored one.
func (s *Store) UpdateConnection(ctx context.Context, conn sharding.ShardConnection) error {
	query := fmt.Sprintf(`
		UPDATE %s SET driver = $2, host = $3, port = $4, database_name = $5, username = $6,
			password = CASE WHEN $7 = '' THEN password ELSE $7 END, updated_at = NOW()
		WHERE shard_id = $1
	`, s.tables.ConnectionsTable)

	result, err := s.db.ExecContext(ctx, query, conn.ShardID, driverOrDefault(conn.Driver), conn.Host, conn.Port,
		conn.DatabaseName, conn.Username, conn.Password)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}

	return requireAffected(result, store.ErrConnectionNotFound)
}

func (s *Store) schemaColumns() string {
	return "id, project_id, version, state, ddl_sql, error_message, created_at, committed_at, applied_at"
}

func scanSchema(row scanner) (sharding.ProjectSchema, error) {
	var (
		schema      sharding.ProjectSchema
		version     sql.NullInt64
		committedAt sql.NullTime
		appliedAt   sql.NullTime
	)
	err := row.Scan(&schema.ID, &schema.ProjectID, &version, &schema.State, &schema.DDL,
		&schema.ErrorMessage, &schema.CreatedAt, &committedAt, &appliedAt)
	if err != nil {
		return sharding.ProjectSchema{}, err
	}

	schema.Version = int(version.Int64)
	if committedAt.Valid {
		schema.CommittedAt = &committedAt.Time
	}
	if appliedAt.Valid {
		schema.AppliedAt = &appliedAt.Time
	}

	return schema, nil
}

// CreateSchema creates a draft schema.
// The partial unique index rejects a second non-terminal schema for the project.
func (s *Store) CreateSchema(ctx context.Context, projectID, ddl string) (sharding.ProjectSchema, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return sharding.ProjectSchema{}, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, state, ddl_sql, created_at)
		VALUES ($1, $2, 'draft', $3, NOW())
		RETURNING created_at
	`, s.tables.SchemasTable)

	schema := sharding.ProjectSchema{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		State:     sharding.SchemaStateDraft,
		DDL:       ddl,
	}

	err := s.db.QueryRowContext(ctx, query, schema.ID, projectID, ddl).Scan(&schema.CreatedAt)
	if isUniqueViolation(err) {
		return sharding.ProjectSchema{}, store.ErrSchemaInFlight
	}
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to create schema: %w", err)
	}

	return schema, nil
}

// GetSchema returns a schema by ID.
func (s *Store) GetSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.schemaColumns(), s.tables.SchemasTable)

	schema, err := scanSchema(s.db.QueryRowContext(ctx, query, schemaID))
	if err == sql.ErrNoRows {
		return sharding.ProjectSchema{}, store.ErrSchemaNotFound
	}
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to get schema: %w", err)
	}

	return schema, nil
}

// ListSchemas returns the schemas of a project, drafts first, then by version descending.
func (s *Store) ListSchemas(ctx context.Context, projectID string) ([]sharding.ProjectSchema, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE project_id = $1 ORDER BY version DESC NULLS FIRST
	`, s.schemaColumns(), s.tables.SchemasTable)

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	schemas := make([]sharding.ProjectSchema, 0)
	for rows.Next() {
		schema, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		schemas = append(schemas, schema)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schemas: %w", err)
	}

	return schemas, nil
}

// draftGuard maps a zero-row update of a draft into the right sentinel.
func (s *Store) draftGuard(ctx context.Context, result sql.Result, schemaID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}
	if _, err := s.GetSchema(ctx, schemaID); err != nil {
		return err
	}
	return store.ErrSchemaNotDraft
}

// UpdateSchemaDDL replaces the DDL of a draft.
func (s *Store) UpdateSchemaDDL(ctx context.Context, schemaID, ddl string) error {
	query := fmt.Sprintf(`UPDATE %s SET ddl_sql = $1 WHERE id = $2 AND state = 'draft'`, s.tables.SchemasTable)

	result, err := s.db.ExecContext(ctx, query, ddl, schemaID)
	if err != nil {
		return fmt.Errorf("failed to update schema: %w", err)
	}

	return s.draftGuard(ctx, result, schemaID)
}

// DeleteSchema removes a draft.
func (s *Store) DeleteSchema(ctx context.Context, schemaID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND state = 'draft'`, s.tables.SchemasTable)

	result, err := s.db.ExecContext(ctx, query, schemaID)
	if err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}

	return s.draftGuard(ctx, result, schemaID)
}

// CommitSchema moves a draft to pending and assigns the next version of its project.
func (s *Store) CommitSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s s SET
			version = (SELECT COALESCE(MAX(version), 0) + 1 FROM %[1]s WHERE project_id = s.project_id),
			state = 'pending',
			committed_at = NOW()
		WHERE s.id = $1 AND s.state = 'draft'
			AND EXISTS (SELECT 1 FROM %[3]s p WHERE p.id = s.project_id AND p.status = 'inactive')
		RETURNING %[2]s
	`, s.tables.SchemasTable, s.schemaColumns(), s.tables.ProjectsTable)

	schema, err := scanSchema(s.db.QueryRowContext(ctx, query, schemaID))
	if err == sql.ErrNoRows {
		current, getErr := s.GetSchema(ctx, schemaID)
		if getErr != nil {
			return sharding.ProjectSchema{}, getErr
		}
		if current.State != sharding.SchemaStateDraft {
			return sharding.ProjectSchema{}, store.ErrSchemaNotDraft
		}
		return sharding.ProjectSchema{}, store.ErrProjectActive
	}
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to commit schema: %w", err)
	}

	return schema, nil
}

// UpdateSchemaState sets the state of a committed schema.
func (s *Store) UpdateSchemaState(ctx context.Context, schemaID string, state sharding.SchemaState, errorMessage string) error {
	if state != sharding.SchemaStateFailed {
		errorMessage = ""
	}

	query := fmt.Sprintf(`
		UPDATE %s SET state = $1, error_message = $2,
			applied_at = CASE WHEN $1 = 'applied' THEN NOW() ELSE applied_at END
		WHERE id = $3
	`, s.tables.SchemasTable)

	result, err := s.db.ExecContext(ctx, query, string(state), errorMessage, schemaID)
	if err != nil {
		return fmt.Errorf("failed to update schema state: %w", err)
	}

	return requireAffected(result, store.ErrSchemaNotFound)
}

// TransitionSchemaState moves a schema from one state to another.
// The state check and the write happen in one statement.
func (s *Store) TransitionSchemaState(ctx context.Context, schemaID string, from, to sharding.SchemaState) error {
	query := fmt.Sprintf(`
		UPDATE %s SET state = $1, error_message = ''
		WHERE id = $2 AND state = $3
	`, s.tables.SchemasTable)

	result, err := s.db.ExecContext(ctx, query, string(to), schemaID, string(from))
	if err != nil {
		return fmt.Errorf("failed to transition schema state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.GetSchema(ctx, schemaID); err != nil {
		return err
	}
	return store.ErrSchemaStateChanged
}

// UpsertExecutionStatus records the outcome of a schema on one shard.
func (s *Store) UpsertExecutionStatus(ctx context.Context, status sharding.SchemaExecutionStatus) error {
	if status.ID == "" {
		status.ID = uuid.New().String()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, schema_id, shard_id, state, error_message, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (schema_id, shard_id)
		DO UPDATE SET state = $4, error_message = $5, executed_at = $6
	`, s.tables.ExecutionsTable)

	var executedAt sql.NullTime
	if status.ExecutedAt != nil {
		executedAt = sql.NullTime{Time: *status.ExecutedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query, status.ID, status.SchemaID, status.ShardID,
		string(status.State), status.ErrorMessage, executedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return store.ErrSchemaNotFound
		}
		return fmt.Errorf("failed to upsert execution status: %w", err)
	}

	return nil
}

// ListExecutionStatuses returns the per-shard statuses of a schema ordered by shard index.
func (s *Store) ListExecutionStatuses(ctx context.Context, schemaID string) ([]sharding.SchemaExecutionStatus, error) {
	query := fmt.Sprintf(`
		SELECT e.id, e.schema_id, e.shard_id, e.state, e.error_message, e.executed_at
		FROM %s e JOIN %s sh ON sh.id = e.shard_id
		WHERE e.schema_id = $1
		ORDER BY sh.shard_index
	`, s.tables.ExecutionsTable, s.tables.ShardsTable)

	rows, err := s.db.QueryContext(ctx, query, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution statuses: %w", err)
	}
	defer rows.Close()

	statuses := make([]sharding.SchemaExecutionStatus, 0)
	for rows.Next() {
		var (
			st         sharding.SchemaExecutionStatus
			executedAt sql.NullTime
		)
		if err := rows.Scan(&st.ID, &st.SchemaID, &st.ShardID, &st.State, &st.ErrorMessage, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution status: %w", err)
		}
		if executedAt.Valid {
			st.ExecutedAt = &executedAt.Time
		}
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution statuses: %w", err)
	}

	return statuses, nil
}

// ListShardKeys returns the shard keys of a project ordered by table name.
func (s *Store) ListShardKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error) {
	query := fmt.Sprintf(`
		SELECT project_id, table_name, shard_key_column, is_manual_override, updated_at
		FROM %s WHERE project_id = $1 ORDER BY table_name
	`, s.tables.ShardKeysTable)

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shard keys: %w", err)
	}
	defer rows.Close()

	records := make([]sharding.ShardKeyRecord, 0)
	for rows.Next() {
		var r sharding.ShardKeyRecord
		if err := rows.Scan(&r.ProjectID, &r.TableName, &r.ShardKeyColumn, &r.IsManualOverride, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shard key: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shard keys: %w", err)
	}

	return records, nil
}

// ReplaceShardKeys atomically replaces every shard key of a project.
// A record with a zero UpdatedAt is stamped with the current time.
func (s *Store) ReplaceShardKeys(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1`, s.tables.ShardKeysTable)
	if _, err := tx.ExecContext(ctx, deleteQuery, projectID); err != nil {
		return fmt.Errorf("failed to clear shard keys: %w", err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (project_id, table_name, shard_key_column, is_manual_override, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		ON CONFLICT (project_id, table_name)
		DO UPDATE SET shard_key_column = $3, is_manual_override = $4, updated_at = COALESCE($5, NOW())
	`, s.tables.ShardKeysTable)
	for _, r := range records {
		updatedAt := sql.NullTime{Time: r.UpdatedAt, Valid: !r.UpdatedAt.IsZero()}
		if _, err := tx.ExecContext(ctx, insertQuery, projectID, r.TableName, r.ShardKeyColumn, r.IsManualOverride, updatedAt); err != nil {
			return fmt.Errorf("failed to insert shard key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shard keys: %w", err)
	}

	return nil
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func driverOrDefault(driver string) string {
	if driver == "" {
		return sharding.DriverPostgres
	}
	return driver
}
