// Package lifecycle owns the per-project schema state machine:
// draft, pending, applying, then applied or failed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/ddl"
	"github.com/getpup/sharding-orchestrator/events"
	"github.com/getpup/sharding-orchestrator/executor"
	"github.com/getpup/sharding-orchestrator/metrics"
	"github.com/getpup/sharding-orchestrator/store"
)

const eventSource = "lifecycle"

// interruptedMessage is recorded for executions found in flight at startup.
const interruptedMessage = "execution interrupted before completion"

// ConnSource resolves the pooled handle of an active shard.
type ConnSource interface {
	Conn(shardID string) (executor.Conn, error)
}

// Config holds configuration for the lifecycle Manager.
type Config struct {
	// Store is the metadata store (required).
	Store store.MetadataStore

	// Runner fans schema DDL out to the shards (required).
	Runner executor.Runner

	// Conns provides shard handles. Without it every shard fails with a missing connection.
	Conns ConnSource

	// OnApplied runs after a schema reaches the applied state (optional).
	// Its error is logged and does not change the schema state.
	OnApplied func(ctx context.Context, projectID string) error

	// Logger is for observability (optional).
	Logger es.Logger

	// Events receives per-shard progress events (optional).
	Events *events.Emitter

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	MetricsEnabled *bool
}

// Manager drives schema transitions. Transitions of one project are serialized;
// different projects proceed independently.
type Manager struct {
	config Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new lifecycle Manager with the given configuration.
func New(cfg Config) *Manager {
	return &Manager{
		config: cfg,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lock acquires the project-scoped lock and returns its release function.
func (m *Manager) lock(projectID string) func() {
	m.mu.Lock()
	l, ok := m.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[projectID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// CreateDraft creates a draft schema.
// Returns a ConflictError if the project already has a draft, pending or applying schema.
func (m *Manager) CreateDraft(ctx context.Context, projectID, ddlSQL string) (sharding.ProjectSchema, error) {
	unlock := m.lock(projectID)
	defer unlock()

	if _, err := m.project(ctx, projectID); err != nil {
		return sharding.ProjectSchema{}, err
	}

	schema, err := m.config.Store.CreateSchema(ctx, projectID, ddlSQL)
	if errors.Is(err, store.ErrSchemaInFlight) {
		return sharding.ProjectSchema{}, sharding.NewConflictError("a schema change is already in progress for this project")
	}
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to create draft: %w", err)
	}

	m.logInfo(ctx, "schema draft created", "projectID", projectID, "schemaID", schema.ID)
	return schema, nil
}

// UpdateDraft replaces the DDL of a draft.
// Returns a NotFoundError if the schema is not a draft of the project.
func (m *Manager) UpdateDraft(ctx context.Context, projectID, schemaID, ddlSQL string) error {
	unlock := m.lock(projectID)
	defer unlock()

	if _, err := m.draft(ctx, projectID, schemaID); err != nil {
		return err
	}

	err := m.config.Store.UpdateSchemaDDL(ctx, schemaID, ddlSQL)
	if errors.Is(err, store.ErrSchemaNotDraft) || errors.Is(err, store.ErrSchemaNotFound) {
		return sharding.NewNotFoundError("draft schema", schemaID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}

	m.logInfo(ctx, "schema draft updated", "projectID", projectID, "schemaID", schemaID)
	return nil
}

// DeleteDraft removes a draft.
// Returns a NotFoundError if the schema does not exist or is no longer a draft.
func (m *Manager) DeleteDraft(ctx context.Context, schemaID string) error {
	schema, err := m.schema(ctx, schemaID)
	if err != nil {
		return err
	}

	unlock := m.lock(schema.ProjectID)
	defer unlock()

	if _, err := m.draft(ctx, schema.ProjectID, schemaID); err != nil {
		return err
	}

	err = m.config.Store.DeleteSchema(ctx, schemaID)
	if errors.Is(err, store.ErrSchemaNotDraft) || errors.Is(err, store.ErrSchemaNotFound) {
		return sharding.NewNotFoundError("draft schema", schemaID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	m.logInfo(ctx, "schema draft deleted", "projectID", schema.ProjectID, "schemaID", schemaID)
	return nil
}

// CommitDraft freezes a draft into the next version of the project.
// The project must be inactive and the DDL must be a non-empty, DDL-only
// script, parsed as PostgreSQL when every shard runs PostgreSQL. Once any
// schema has been applied, destructive statements are refused.
func (m *Manager) CommitDraft(ctx context.Context, projectID, schemaID string) (sharding.ProjectSchema, error) {
	unlock := m.lock(projectID)
	defer unlock()

	project, err := m.project(ctx, projectID)
	if err != nil {
		return sharding.ProjectSchema{}, err
	}
	if project.Status == sharding.ProjectStatusActive {
		return sharding.ProjectSchema{}, sharding.NewPreconditionError(sharding.ReasonProjectActive,
			"project must be inactive to commit a schema")
	}

	draft, err := m.draft(ctx, projectID, schemaID)
	if err != nil {
		return sharding.ProjectSchema{}, err
	}

	if err := m.validateDDL(ctx, projectID, draft.DDL); err != nil {
		return sharding.ProjectSchema{}, err
	}

	committed, err := m.config.Store.CommitSchema(ctx, schemaID)
	if errors.Is(err, store.ErrSchemaNotDraft) {
		return sharding.ProjectSchema{}, sharding.NewNotFoundError("draft schema", schemaID, err)
	}
	if errors.Is(err, store.ErrProjectActive) {
		return sharding.ProjectSchema{}, sharding.NewPreconditionError(sharding.ReasonProjectActive,
			"project was activated while the schema was being committed")
	}
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to commit draft: %w", err)
	}

	m.logInfo(ctx, "schema committed", "projectID", projectID, "schemaID", schemaID, "version", committed.Version)
	return committed, nil
}

func (m *Manager) validateDDL(ctx context.Context, projectID, script string) error {
	if strings.TrimSpace(script) == "" {
		return sharding.NewValidationError("ddl_sql", "must not be empty")
	}

	postgres, err := m.postgresOnly(ctx, projectID)
	if err != nil {
		return err
	}

	var report ddl.Report
	if postgres {
		if report, err = ddl.Classify(script); err != nil {
			return sharding.NewValidationError("ddl_sql", err.Error())
		}
	} else {
		report = ddl.ClassifyText(script)
	}
	if report.Statements == 0 {
		return sharding.NewValidationError("ddl_sql", "contains no statements")
	}
	if !report.IsDDLOnly() {
		return sharding.NewValidationError("ddl_sql",
			"only DDL statements are allowed, found "+strings.Join(report.NonDDL, ", "))
	}

	if !report.IsDestructive() {
		return nil
	}

	applied, err := m.hasApplied(ctx, projectID)
	if err != nil {
		return err
	}
	if applied {
		return sharding.NewPreconditionError(sharding.ReasonDestructiveDDL,
			"destructive DDL is not allowed after the initial schema: "+strings.Join(report.Destructive, ", "))
	}
	return nil
}

// postgresOnly reports whether every configured shard of the project runs
// PostgreSQL. Shards without connection settings are not counted.
func (m *Manager) postgresOnly(ctx context.Context, projectID string) (bool, error) {
	shards, err := m.config.Store.ListShards(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to list shards: %w", err)
	}

	for _, shard := range shards {
		conn, err := m.config.Store.GetConnection(ctx, shard.ID)
		if errors.Is(err, store.ErrConnectionNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to get connection: %w", err)
		}
		if conn.Driver != "" && conn.Driver != sharding.DriverPostgres {
			return false, nil
		}
	}
	return true, nil
}

// Execute applies the pending schema to every active shard of an active project.
//
// The schema is moved to applying before any shard is called. Each shard's
// outcome is persisted as soon as it settles; the schema ends applied iff no
// shard failed, otherwise failed with the error of the lowest shard index.
// A failed execution is reported through the returned schema, not the error.
func (m *Manager) Execute(ctx context.Context, projectID string) (sharding.ProjectSchema, error) {
	project, schema, shards, err := m.begin(ctx, projectID, sharding.SchemaStatePending, nil)
	if err != nil {
		return sharding.ProjectSchema{}, err
	}

	return m.run(ctx, project, schema, shards)
}

// Retry re-applies a failed schema to the shards whose status is failed or missing.
// Shards that already applied it are skipped. When nothing is left to run
// the schema is marked applied without any shard call; retrying an already
// applied schema is a no-op.
func (m *Manager) Retry(ctx context.Context, projectID string) (sharding.ProjectSchema, error) {
	project, schema, shards, err := m.begin(ctx, projectID, sharding.SchemaStateFailed, m.unapplied)
	if errors.Is(err, errAlreadyApplied) {
		m.logInfo(ctx, "schema already applied, nothing to retry", "projectID", projectID, "schemaID", schema.ID)
		return schema, nil
	}
	if err != nil {
		return sharding.ProjectSchema{}, err
	}

	m.logInfo(ctx, "retrying schema execution", "projectID", projectID, "schemaID", schema.ID, "shards", len(shards))
	return m.run(ctx, project, schema, shards)
}

var errAlreadyApplied = errors.New("schema already applied")

// shardFilter narrows the shards a run is dispatched to.
type shardFilter func(ctx context.Context, schema sharding.ProjectSchema, shards []sharding.Shard) ([]sharding.Shard, error)

// begin checks the guards of Execute or Retry under the project lock and moves
// the schema to applying. The lock is released before any shard is called.
func (m *Manager) begin(ctx context.Context, projectID string, from sharding.SchemaState, filter shardFilter) (sharding.Project, sharding.ProjectSchema, []sharding.Shard, error) {
	unlock := m.lock(projectID)
	defer unlock()

	project, err := m.project(ctx, projectID)
	if err != nil {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, err
	}
	if project.Status != sharding.ProjectStatusActive {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, sharding.NewPreconditionError(sharding.ReasonProjectInactive,
			"project must be active to execute a schema")
	}

	schema, found, err := m.current(ctx, projectID)
	if err != nil {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, err
	}
	if !found {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, sharding.NewPreconditionError(sharding.ReasonSchemaNotRunnable,
			"project has no schema to execute")
	}

	switch {
	case schema.State == from:
	case schema.State == sharding.SchemaStateApplying:
		return sharding.Project{}, sharding.ProjectSchema{}, nil, sharding.NewConflictError("schema execution already in progress")
	case from == sharding.SchemaStateFailed && schema.State == sharding.SchemaStateApplied:
		return project, schema, nil, errAlreadyApplied
	default:
		return sharding.Project{}, sharding.ProjectSchema{}, nil, sharding.NewPreconditionError(sharding.ReasonSchemaNotRunnable,
			fmt.Sprintf("schema is %s, expected %s", schema.State, from))
	}

	shards, err := m.activeShards(ctx, projectID)
	if err != nil {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, err
	}
	if filter != nil {
		if shards, err = filter(ctx, schema, shards); err != nil {
			return sharding.Project{}, sharding.ProjectSchema{}, nil, err
		}
	}

	err = m.config.Store.TransitionSchemaState(ctx, schema.ID, schema.State, sharding.SchemaStateApplying)
	if errors.Is(err, store.ErrSchemaStateChanged) {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, sharding.NewConflictError("schema execution already in progress")
	}
	if err != nil {
		return sharding.Project{}, sharding.ProjectSchema{}, nil, fmt.Errorf("failed to mark schema applying: %w", err)
	}
	schema.State = sharding.SchemaStateApplying
	schema.ErrorMessage = ""

	return project, schema, shards, nil
}

// unapplied keeps the shards without an applied status row for the schema.
func (m *Manager) unapplied(ctx context.Context, schema sharding.ProjectSchema, shards []sharding.Shard) ([]sharding.Shard, error) {
	statuses, err := m.config.Store.ListExecutionStatuses(ctx, schema.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution statuses: %w", err)
	}

	applied := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		if s.State == sharding.ExecutionStateApplied {
			applied[s.ShardID] = true
		}
	}

	remaining := make([]sharding.Shard, 0, len(shards))
	for _, shard := range shards {
		if !applied[shard.ID] {
			remaining = append(remaining, shard)
		}
	}
	return remaining, nil
}

// run dispatches the schema and resolves its final state. Persistence is
// detached from ctx so a caller going away cannot strand the schema in applying.
func (m *Manager) run(ctx context.Context, project sharding.Project, schema sharding.ProjectSchema, shards []sharding.Shard) (sharding.ProjectSchema, error) {
	ctx = context.WithoutCancel(ctx)
	collector := metrics.For(metrics.Enabled(m.config.MetricsEnabled), project.ID)

	targets := make([]executor.Target, 0, len(shards))
	for _, shard := range shards {
		target := executor.Target{ShardID: shard.ID, ShardIndex: shard.ShardIndex}
		if m.config.Conns != nil {
			if conn, err := m.config.Conns.Conn(shard.ID); err == nil {
				target.Conn = conn
			}
		}
		targets = append(targets, target)

		if err := m.config.Store.UpsertExecutionStatus(ctx, sharding.SchemaExecutionStatus{
			SchemaID: schema.ID,
			ShardID:  shard.ID,
			State:    sharding.ExecutionStateApplying,
		}); err != nil {
			m.logError(ctx, "failed to record shard applying", "schemaID", schema.ID, "shardID", shard.ID, "error", err)
		}
	}

	m.logInfo(ctx, "executing schema", "projectID", project.ID, "schemaID", schema.ID, "version", schema.Version, "shards", len(targets))

	var results []sharding.ExecutionResult
	if len(targets) > 0 {
		results = m.config.Runner.Run(ctx, project.ID, targets, schema.DDL, func(result sharding.ExecutionResult) {
			m.record(ctx, schema, result)
		})
	}

	if failure, failed := executor.FirstFailure(results); failed {
		execErr := &sharding.ExecutionError{ShardID: failure.ShardID, ShardIndex: failure.ShardIndex, Err: failure.Err}
		if err := m.config.Store.UpdateSchemaState(ctx, schema.ID, sharding.SchemaStateFailed, execErr.Error()); err != nil {
			return sharding.ProjectSchema{}, fmt.Errorf("failed to mark schema failed: %w", err)
		}
		collector.IncSchemaExecution("failed")
		m.logError(ctx, "schema execution failed", "projectID", project.ID, "schemaID", schema.ID, "error", execErr)
		return m.reload(ctx, schema.ID)
	}

	if err := m.config.Store.UpdateSchemaState(ctx, schema.ID, sharding.SchemaStateApplied, ""); err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to mark schema applied: %w", err)
	}
	collector.IncSchemaExecution("applied")
	m.logInfo(ctx, "schema applied", "projectID", project.ID, "schemaID", schema.ID, "version", schema.Version)

	if m.config.OnApplied != nil {
		if err := m.config.OnApplied(ctx, project.ID); err != nil {
			m.logError(ctx, "post-apply hook failed", "projectID", project.ID, "schemaID", schema.ID, "error", err)
		}
	}

	return m.reload(ctx, schema.ID)
}

// record persists one shard outcome.
func (m *Manager) record(ctx context.Context, schema sharding.ProjectSchema, result sharding.ExecutionResult) {
	now := time.Now()
	status := sharding.SchemaExecutionStatus{
		SchemaID:   schema.ID,
		ShardID:    result.ShardID,
		State:      sharding.ExecutionStateApplied,
		ExecutedAt: &now,
	}
	fields := map[string]string{
		"schema_id":   schema.ID,
		"shard_id":    result.ShardID,
		"shard_index": fmt.Sprint(result.ShardIndex),
	}

	if result.Err != nil {
		status.State = sharding.ExecutionStateFailed
		status.ErrorMessage = result.Err.Error()
		fields["error"] = status.ErrorMessage
		m.config.Events.Error(eventSource, "schema failed on shard", fields)
	} else {
		m.config.Events.Info(eventSource, "schema applied on shard", fields)
	}

	if err := m.config.Store.UpsertExecutionStatus(ctx, status); err != nil {
		m.logError(ctx, "failed to record shard outcome", "schemaID", schema.ID, "shardID", result.ShardID, "error", err)
	}
}

// RecoverInterrupted fails every schema left in applying, along with its
// applying shard rows, so the executions can be resumed with Retry.
// It is meant to run once at startup, before requests are served.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	projects, err := m.config.Store.ListProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list projects: %w", err)
	}

	recovered := 0
	for _, project := range projects {
		schemas, err := m.config.Store.ListSchemas(ctx, project.ID)
		if err != nil {
			return recovered, fmt.Errorf("failed to list schemas: %w", err)
		}

		for _, schema := range schemas {
			if schema.State != sharding.SchemaStateApplying {
				continue
			}
			if err := m.failInterrupted(ctx, schema); err != nil {
				return recovered, err
			}
			recovered++
			m.logInfo(ctx, "recovered interrupted schema execution", "projectID", project.ID, "schemaID", schema.ID)
		}
	}
	return recovered, nil
}

func (m *Manager) failInterrupted(ctx context.Context, schema sharding.ProjectSchema) error {
	statuses, err := m.config.Store.ListExecutionStatuses(ctx, schema.ID)
	if err != nil {
		return fmt.Errorf("failed to list execution statuses: %w", err)
	}

	for _, status := range statuses {
		if status.State == sharding.ExecutionStateApplied || status.State == sharding.ExecutionStateFailed {
			continue
		}
		status.State = sharding.ExecutionStateFailed
		status.ErrorMessage = interruptedMessage
		if err := m.config.Store.UpsertExecutionStatus(ctx, status); err != nil {
			return fmt.Errorf("failed to fail shard status: %w", err)
		}
	}

	if err := m.config.Store.UpdateSchemaState(ctx, schema.ID, sharding.SchemaStateFailed, interruptedMessage); err != nil {
		return fmt.Errorf("failed to fail schema: %w", err)
	}
	return nil
}

// GetCapabilities reports which lifecycle actions are legal for the project right now.
func (m *Manager) GetCapabilities(ctx context.Context, projectID string) (sharding.Capabilities, error) {
	project, err := m.project(ctx, projectID)
	if err != nil {
		return sharding.Capabilities{}, err
	}

	state := sharding.SchemaStateNone
	schema, found, err := m.current(ctx, projectID)
	if err != nil {
		return sharding.Capabilities{}, err
	}
	if found {
		state = schema.State
	}

	return Capabilities(project.Status, state), nil
}

// GetHistory returns every schema of the project ordered by version descending.
// An uncommitted draft has no version and is listed last.
func (m *Manager) GetHistory(ctx context.Context, projectID string) ([]sharding.ProjectSchema, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return nil, err
	}

	schemas, err := m.config.Store.ListSchemas(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	sort.SliceStable(schemas, func(i, j int) bool {
		return schemas[i].Version > schemas[j].Version
	})
	return schemas, nil
}

// GetCurrent returns the non-terminal schema of the project or, if there is
// none, the latest committed one.
func (m *Manager) GetCurrent(ctx context.Context, projectID string) (sharding.ProjectSchema, error) {
	if _, err := m.project(ctx, projectID); err != nil {
		return sharding.ProjectSchema{}, err
	}

	schema, found, err := m.current(ctx, projectID)
	if err != nil {
		return sharding.ProjectSchema{}, err
	}
	if !found {
		return sharding.ProjectSchema{}, sharding.NewNotFoundError("schema", projectID, store.ErrSchemaNotFound)
	}
	return schema, nil
}

// GetExecutionStatuses returns the per-shard statuses of a schema.
func (m *Manager) GetExecutionStatuses(ctx context.Context, schemaID string) ([]sharding.SchemaExecutionStatus, error) {
	if _, err := m.schema(ctx, schemaID); err != nil {
		return nil, err
	}

	statuses, err := m.config.Store.ListExecutionStatuses(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution statuses: %w", err)
	}
	return statuses, nil
}

func (m *Manager) current(ctx context.Context, projectID string) (sharding.ProjectSchema, bool, error) {
	schemas, err := m.config.Store.ListSchemas(ctx, projectID)
	if err != nil {
		return sharding.ProjectSchema{}, false, fmt.Errorf("failed to list schemas: %w", err)
	}
	if len(schemas) == 0 {
		return sharding.ProjectSchema{}, false, nil
	}
	return schemas[0], true, nil
}

func (m *Manager) hasApplied(ctx context.Context, projectID string) (bool, error) {
	schemas, err := m.config.Store.ListSchemas(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to list schemas: %w", err)
	}
	for _, s := range schemas {
		if s.State == sharding.SchemaStateApplied {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) activeShards(ctx context.Context, projectID string) ([]sharding.Shard, error) {
	shards, err := m.config.Store.ListShards(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}

	active := make([]sharding.Shard, 0, len(shards))
	for _, shard := range shards {
		if shard.Status == sharding.ShardStatusActive {
			active = append(active, shard)
		}
	}
	return active, nil
}

func (m *Manager) project(ctx context.Context, projectID string) (sharding.Project, error) {
	project, err := m.config.Store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrProjectNotFound) {
		return sharding.Project{}, sharding.NewNotFoundError("project", projectID, err)
	}
	if err != nil {
		return sharding.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (m *Manager) schema(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	schema, err := m.config.Store.GetSchema(ctx, schemaID)
	if errors.Is(err, store.ErrSchemaNotFound) {
		return sharding.ProjectSchema{}, sharding.NewNotFoundError("schema", schemaID, err)
	}
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to get schema: %w", err)
	}
	return schema, nil
}

// draft returns the schema if it is a draft owned by the project.
func (m *Manager) draft(ctx context.Context, projectID, schemaID string) (sharding.ProjectSchema, error) {
	schema, err := m.schema(ctx, schemaID)
	if err != nil {
		return sharding.ProjectSchema{}, err
	}
	if schema.ProjectID != projectID || schema.State != sharding.SchemaStateDraft {
		return sharding.ProjectSchema{}, sharding.NewNotFoundError("draft schema", schemaID, store.ErrSchemaNotDraft)
	}
	return schema, nil
}

func (m *Manager) reload(ctx context.Context, schemaID string) (sharding.ProjectSchema, error) {
	schema, err := m.config.Store.GetSchema(ctx, schemaID)
	if err != nil {
		return sharding.ProjectSchema{}, fmt.Errorf("failed to reload schema: %w", err)
	}
	return schema, nil
}

func (m *Manager) logInfo(ctx context.Context, msg string, keyvals ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, msg, keyvals...)
	}
}

func (m *Manager) logError(ctx context.Context, msg string, keyvals ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Error(ctx, msg, keyvals...)
	}
}
