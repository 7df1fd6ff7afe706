package store

import (
	"context"
	"sync"

	"github.com/getpup/sharding-orchestrator"
)

// MockMetadataStore wraps a MetadataStore for use in tests. Methods without a
// Func override delegate to the embedded store; the overridable methods track
// their calls so tests can assert on writes and inject errors.
type MockMetadataStore struct {
	MetadataStore

	mu sync.RWMutex

	// SetProjectStatusFunc is called by SetProjectStatus if set.
	SetProjectStatusFunc func(ctx context.Context, projectID string, status sharding.ProjectStatus) error

	// CommitSchemaFunc is called by CommitSchema if set.
	CommitSchemaFunc func(ctx context.Context, schemaID string) (sharding.ProjectSchema, error)

	// TransitionSchemaStateFunc is called by TransitionSchemaState if set.
	TransitionSchemaStateFunc func(ctx context.Context, schemaID string, from, to sharding.SchemaState) error

	// UpdateSchemaStateFunc is called by UpdateSchemaState if set.
	UpdateSchemaStateFunc func(ctx context.Context, schemaID string, state sharding.SchemaState, errorMessage string) error

	// UpsertExecutionStatusFunc is called by UpsertExecutionStatus if set.
	UpsertExecutionStatusFunc func(ctx context.Context, status sharding.SchemaExecutionStatus) error

	// ReplaceShardKeysFunc is called by ReplaceShardKeys if set.
	ReplaceShardKeysFunc func(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error

	// Call tracking
	SetProjectStatusCalls      []SetProjectStatusCall
	UpdateSchemaStateCalls     []UpdateSchemaStateCall
	UpsertExecutionStatusCalls []sharding.SchemaExecutionStatus
	ReplaceShardKeysCalls      []ReplaceShardKeysCall
}

// Call tracking structs
type SetProjectStatusCall struct {
	ProjectID string
	Status    sharding.ProjectStatus
}

type UpdateSchemaStateCall struct {
	SchemaID     string
	State        sharding.SchemaState
	ErrorMessage string
}

type ReplaceShardKeysCall struct {
	ProjectID string
	Records   []sharding.ShardKeyRecord
}

// NewMockMetadataStore creates a mock that delegates to backing.
func NewMockMetadataStore(backing MetadataStore) *MockMetadataStore {
	return &MockMetadataStore{MetadataStore: backing}
}

// SetProjectStatus implements MetadataStore.
func (m *MockMetadataStore) SetProjectStatus(ctx context.Context, projectID string, status sharding.ProjectStatus) error {
	m.mu.Lock()
	m.SetProjectStatusCalls = append(m.SetProjectStatusCalls, SetProjectStatusCall{
		ProjectID: projectID,
		Status:    status,
	})
	m.mu.Unlock()

	if m.SetProjectStatusFunc != nil {
		return m.SetProjectStatusFunc(ctx, projectID, status)
	}

	return m.MetadataStore.SetProjectStatus(ctx, projectID, status)
}

// CommitSchema implements MetadataStore.
func (m *MockMetadataStore) CommitSchema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	if m.CommitSchemaFunc != nil {
		return m.CommitSchemaFunc(ctx, schemaID)
	}
	return m.MetadataStore.CommitSchema(ctx, schemaID)
}

// TransitionSchemaState implements MetadataStore.
func (m *MockMetadataStore) TransitionSchemaState(ctx context.Context, schemaID string, from, to sharding.SchemaState) error {
	if m.TransitionSchemaStateFunc != nil {
		return m.TransitionSchemaStateFunc(ctx, schemaID, from, to)
	}
	return m.MetadataStore.TransitionSchemaState(ctx, schemaID, from, to)
}

// UpdateSchemaState implements MetadataStore.
func (m *MockMetadataStore) UpdateSchemaState(ctx context.Context, schemaID string, state sharding.SchemaState, errorMessage string) error {
	m.mu.Lock()
	m.UpdateSchemaStateCalls = append(m.UpdateSchemaStateCalls, UpdateSchemaStateCall{
		SchemaID:     schemaID,
		State:        state,
		ErrorMessage: errorMessage,
	})
	m.mu.Unlock()

	if m.UpdateSchemaStateFunc != nil {
		return m.UpdateSchemaStateFunc(ctx, schemaID, state, errorMessage)
	}

	return m.MetadataStore.UpdateSchemaState(ctx, schemaID, state, errorMessage)
}

// UpsertExecutionStatus implements MetadataStore.
func (m *MockMetadataStore) UpsertExecutionStatus(ctx context.Context, status sharding.SchemaExecutionStatus) error {
	m.mu.Lock()
	m.UpsertExecutionStatusCalls = append(m.UpsertExecutionStatusCalls, status)
	m.mu.Unlock()

	if m.UpsertExecutionStatusFunc != nil {
		return m.UpsertExecutionStatusFunc(ctx, status)
	}

	return m.MetadataStore.UpsertExecutionStatus(ctx, status)
}

// ReplaceShardKeys implements MetadataStore.
func (m *MockMetadataStore) ReplaceShardKeys(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error {
	m.mu.Lock()
	m.ReplaceShardKeysCalls = append(m.ReplaceShardKeysCalls, ReplaceShardKeysCall{
		ProjectID: projectID,
		Records:   append([]sharding.ShardKeyRecord(nil), records...),
	})
	m.mu.Unlock()

	if m.ReplaceShardKeysFunc != nil {
		return m.ReplaceShardKeysFunc(ctx, projectID, records)
	}

	return m.MetadataStore.ReplaceShardKeys(ctx, projectID, records)
}

// UpsertCalls returns a snapshot of the recorded UpsertExecutionStatus calls.
func (m *MockMetadataStore) UpsertCalls() []sharding.SchemaExecutionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]sharding.SchemaExecutionStatus(nil), m.UpsertExecutionStatusCalls...)
}

// Reset clears all call tracking data.
func (m *MockMetadataStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetProjectStatusCalls = nil
	m.UpdateSchemaStateCalls = nil
	m.UpsertExecutionStatusCalls = nil
	m.ReplaceShardKeysCalls = nil
}
