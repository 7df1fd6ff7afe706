package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/store"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of MetadataStore.
// It provides thread-safe access to all records using a sync.RWMutex.
type Store struct {
	mu          sync.RWMutex
	projects    map[string]sharding.Project                          // projectID -> project
	shards      map[string]sharding.Shard                            // shardID -> shard
	connections map[string]sharding.ShardConnection                  // shardID -> connection
	schemas     map[string]sharding.ProjectSchema                    // schemaID -> schema
	executions  map[string]map[string]sharding.SchemaExecutionStatus // schemaID -> shardID -> status
	shardKeys   map[string]map[string]sharding.ShardKeyRecord        // projectID -> table -> record
}

// New creates a new in-memory store with initialized maps.
func New() *Store {
	return &Store{
		projects:    make(map[string]sharding.Project),
		shards:      make(map[string]sharding.Shard),
		connections: make(map[string]sharding.ShardConnection),
		schemas:     make(map[string]sharding.ProjectSchema),
		executions:  make(map[string]map[string]sharding.SchemaExecutionStatus),
		shardKeys:   make(map[string]map[string]sharding.ShardKeyRecord),
	}
}

var _ store.MetadataStore = (*Store)(nil)

// CreateProject creates an inactive project.
func (s *Store) CreateProject(ctx context.Context, name, description string) (sharding.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project := sharding.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Status:      sharding.ProjectStatusInactive,
		CreatedAt:   time.Now(),
	}
	s.projects[project.ID] = project

	return project, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]sharding.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]sharding.Project, 0, len(s.projects))
	for _, p := range s.projects {
		p.ShardCount = s.shardCountLocked(p.ID)
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})

	return projects, nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, projectID string) (sharding.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return sharding.Project{}, store.ErrProjectNotFound
	}
	p.ShardCount = s.shardCountLocked(p.ID)

	return p, nil
}

// GetActiveProject returns the single active project.
func (s *Store) GetActiveProject(ctx context.Context) (sharding.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.projects {
		if p.Status == sharding.ProjectStatusActive {
			p.ShardCount = s.shardCountLocked(p.ID)
			return p, nil
		}
	}

	return sharding.Project{}, store.ErrProjectNotFound
}

// SetProjectStatus updates the status of a project.
func (s *Store) SetProjectStatus(ctx context.Context, projectID string, status sharding.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return store.ErrProjectNotFound
	}

	if status == sharding.ProjectStatusActive {
		for id, other := range s.projects {
			if id != projectID && other.Status == sharding.ProjectStatusActive {
				return store.ErrActiveProjectExists
			}
		}
	}

	p.Status = status
	s.projects[projectID] = p

	return nil
}

// CreateShard creates an inactive shard with the next free shard index of the project.
func (s *Store) CreateShard(ctx context.Context, projectID string) (sharding.Shard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return sharding.Shard{}, store.ErrProjectNotFound
	}

	next := 0
	for _, sh := range s.shards {
		if sh.ProjectID == projectID && sh.ShardIndex >= next {
			next = sh.ShardIndex + 1
		}
	}

	shard := sharding.Shard{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		ShardIndex: next,
		Status:     sharding.ShardStatusInactive,
		CreatedAt:  time.Now(),
	}
	s.shards[shard.ID] = shard

	return shard, nil
}

// ListShards returns the shards of a project ordered by shard index.
func (s *Store) ListShards(ctx context.Context, projectID string) ([]sharding.Shard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shards := make([]sharding.Shard, 0)
	for _, sh := range s.shards {
		if sh.ProjectID == projectID {
			shards = append(shards, sh)
		}
	}
	sort.Slice(shards, func(i, j int) bool {
		return shards[i].ShardIndex < shards[j].ShardIndex
	})

	return shards, nil
}

// GetShard returns a shard by ID.
func (s *Store) GetShard(ctx context.Context, shardID string) (sharding.Shard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shards[shardID]
	if !ok {
		return sharding.Shard{}, store.ErrShardNotFound
	}

	return sh, nil
}

// SetShardStatus updates the status of a shard.
func (s *Store) SetShardStatus(ctx context.Context, shardID string, status sharding.ShardStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shards[shardID]
	if !ok {
		return store.ErrShardNotFound
	}

	sh.Status = status
	s.shards[shardID] = sh

	return nil
}

// DeleteShard removes a shard together with its connection and execution statuses.
func (s *Store) DeleteShard(ctx context.Context, shardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shards[shardID]; !ok {
		return store.ErrShardNotFound
	}

	delete(s.shards, shardID)
	delete(s.connections, shardID)
	for _, rows := range s.executions {
		delete(rows, shardID)
	}

	return nil
}

// GetConnection returns the connection settings of a shard.
func (s *Store) GetConnection(ctx context.Context, shardID string) (sharding.ShardConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[shardID]
	if !ok {
		return sharding.ShardConnection{}, store.ErrConnectionNotFound
	}

	return conn, nil
}

// CreateConnection stores connection settings for a shard.
func (s *Store) CreateConnection(ctx context.Context, conn sharding.ShardConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shards[conn.ShardID]; !ok {
		return store.ErrShardNotFound
	}
	if _, ok := s.connections[conn.ShardID]; ok {
		return store.ErrConnectionExists
	}

	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	s.connections[conn.ShardID] = conn

	return nil
}

// UpdateConnection replaces the connection settings of a shard.
func (s *Store) UpdateConnection(ctx context.Context, conn sharding.ShardConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.connections[conn.ShardID]
	if !ok {
		return store.ErrConnectionNotFound
	}

	if conn.Password == "" {
		conn.Password = existing.Password
	}
	conn.CreatedAt = existing.CreatedAt
	conn.UpdatedAt = time.Now()
	s.connections[conn.ShardID] = conn

	return nil
}

// CreateSchema creates a draft schema.
func (s *Store) CreateSchema(ctx context.Context, projectID, ddl string) (sharding.ProjectSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return sharding.ProjectSchema{}, store.ErrProjectNotFound
	}
	for _, existing := range s.schemas {
		if existing.ProjectID == projectID && !existing.State.IsTerminal() {
			return sharding.ProjectSchema{}, store.ErrSchemaInFlight
		}
	}

	schema := sharding.ProjectSchema{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		State:     sharding.SchemaStateDraft,
		DDL:       ddl,
		CreatedAt: time.Now(),
	}
	s.schemas[schema.ID] = schema

	return schema, nil
}

// GetSchema returns a schema by ID.
func (s *Store) GetSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return sharding.ProjectSchema{}, store.ErrSchemaNotFound
	}

	return schema, nil
}

// ListSchemas returns the schemas of a project, drafts first, then by version descending.
func (s *Store) ListSchemas(ctx context.Context, projectID string) ([]sharding.ProjectSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schemas := make([]sharding.ProjectSchema, 0)
	for _, schema := range s.schemas {
		if schema.ProjectID == projectID {
			schemas = append(schemas, schema)
		}
	}
	sort.Slice(schemas, func(i, j int) bool {
		vi, vj := schemas[i].Version, schemas[j].Version
		if vi == 0 || vj == 0 {
			return vi == 0 && vj != 0
		}
		return vi > vj
	})

	return schemas, nil
}

// UpdateSchemaDDL replaces the DDL of a draft.
func (s *Store) UpdateSchemaDDL(ctx context.Context, schemaID, ddl string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return store.ErrSchemaNotFound
	}
	if schema.State != sharding.SchemaStateDraft {
		return store.ErrSchemaNotDraft
	}

	schema.DDL = ddl
	s.schemas[schemaID] = schema

	return nil
}

// DeleteSchema removes a draft.
func (s *Store) DeleteSchema(ctx context.Context, schemaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return store.ErrSchemaNotFound
	}
	if schema.State != sharding.SchemaStateDraft {
		return store.ErrSchemaNotDraft
	}

	delete(s.schemas, schemaID)

	return nil
}

// CommitSchema moves a draft to pending and assigns the next version of its project.
func (s *Store) CommitSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return sharding.ProjectSchema{}, store.ErrSchemaNotFound
	}
	if schema.State != sharding.SchemaStateDraft {
		return sharding.ProjectSchema{}, store.ErrSchemaNotDraft
	}
	if s.projects[schema.ProjectID].Status == sharding.ProjectStatusActive {
		return sharding.ProjectSchema{}, store.ErrProjectActive
	}

	version := 0
	for _, other := range s.schemas {
		if other.ProjectID == schema.ProjectID && other.Version > version {
			version = other.Version
		}
	}

	now := time.Now()
	schema.Version = version + 1
	schema.State = sharding.SchemaStatePending
	schema.CommittedAt = &now
	s.schemas[schemaID] = schema

	return schema, nil
}

// UpdateSchemaState sets the state of a committed schema.
func (s *Store) UpdateSchemaState(ctx context.Context, schemaID string, state sharding.SchemaState, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return store.ErrSchemaNotFound
	}

	schema.State = state
	schema.ErrorMessage = ""
	switch state {
	case sharding.SchemaStateFailed:
		schema.ErrorMessage = errorMessage
	case sharding.SchemaStateApplied:
		now := time.Now()
		schema.AppliedAt = &now
	}
	s.schemas[schemaID] = schema

	return nil
}

// TransitionSchemaState moves a schema from one state to another.
func (s *Store) TransitionSchemaState(ctx context.Context, schemaID string, from, to sharding.SchemaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.schemas[schemaID]
	if !ok {
		return store.ErrSchemaNotFound
	}
	if schema.State != from {
		return store.ErrSchemaStateChanged
	}

	schema.State = to
	schema.ErrorMessage = ""
	s.schemas[schemaID] = schema

	return nil
}

// UpsertExecutionStatus records the outcome of a schema on one shard.
func (s *Store) UpsertExecutionStatus(ctx context.Context, status sharding.SchemaExecutionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[status.SchemaID]; !ok {
		return store.ErrSchemaNotFound
	}

	rows, ok := s.executions[status.SchemaID]
	if !ok {
		rows = make(map[string]sharding.SchemaExecutionStatus)
		s.executions[status.SchemaID] = rows
	}

	if existing, ok := rows[status.ShardID]; ok {
		status.ID = existing.ID
	} else if status.ID == "" {
		status.ID = uuid.New().String()
	}
	rows[status.ShardID] = status

	return nil
}

// ListExecutionStatuses returns the per-shard statuses of a schema.
func (s *Store) ListExecutionStatuses(ctx context.Context, schemaID string) ([]sharding.SchemaExecutionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.executions[schemaID]
	statuses := make([]sharding.SchemaExecutionStatus, 0, len(rows))
	for _, status := range rows {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return s.shardIndexLocked(statuses[i].ShardID) < s.shardIndexLocked(statuses[j].ShardID)
	})

	return statuses, nil
}

// ListShardKeys returns the shard keys of a project ordered by table name.
func (s *Store) ListShardKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.shardKeys[projectID]
	records := make([]sharding.ShardKeyRecord, 0, len(keys))
	for _, r := range keys {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].TableName < records[j].TableName
	})

	return records, nil
}

// ReplaceShardKeys atomically replaces every shard key of a project.
func (s *Store) ReplaceShardKeys(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return store.ErrProjectNotFound
	}

	keys := make(map[string]sharding.ShardKeyRecord, len(records))
	for _, r := range records {
		r.ProjectID = projectID
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = time.Now()
		}
		keys[r.TableName] = r
	}
	s.shardKeys[projectID] = keys

	return nil
}

func (s *Store) shardCountLocked(projectID string) int {
	count := 0
	for _, sh := range s.shards {
		if sh.ProjectID == projectID {
			count++
		}
	}
	return count
}

// shardIndexLocked returns -1 for shards that no longer exist.
func (s *Store) shardIndexLocked(shardID string) int {
	if sh, ok := s.shards[shardID]; ok {
		return sh.ShardIndex
	}
	return -1
}
