// Package service exposes the request/response surface used by the UI. Every
// call validates its input, delegates to the owning component and reports the
// outcome on the log and the event stream.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/coordinator"
	"github.com/getpup/sharding-orchestrator/events"
	"github.com/getpup/sharding-orchestrator/executor"
	"github.com/getpup/sharding-orchestrator/lifecycle"
	"github.com/getpup/sharding-orchestrator/shardkey"
	"github.com/getpup/sharding-orchestrator/store"
)

// Config holds the components behind the Service.
type Config struct {
	// Store is the metadata store (required).
	Store store.MetadataStore

	// Lifecycle drives schema transitions (required).
	Lifecycle *lifecycle.Manager

	// ShardKeys derives and stores shard keys (required).
	ShardKeys *shardkey.Engine

	// Coordinator applies activation changes (required).
	Coordinator *coordinator.Coordinator

	// Runner broadcasts ad-hoc statements (required for ExecuteSQL).
	Runner executor.Runner

	// Conns provides shard handles for ad-hoc statements.
	Conns lifecycle.ConnSource

	// Logger is for observability (optional).
	Logger es.Logger

	// Events receives one event per call outcome (optional).
	Events *events.Emitter
}

// Service implements the RPC-style surface.
type Service struct {
	config Config
}

// New creates a new Service with the given configuration.
func New(cfg Config) *Service {
	return &Service{config: cfg}
}

// CreateProject creates an inactive project. The name must not be blank.
func (s *Service) CreateProject(ctx context.Context, name, description string) (sharding.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		err := sharding.NewValidationError("name", "must not be empty")
		s.failed(ctx, "CreateProject", "project creation failed", err, nil)
		return sharding.Project{}, err
	}

	project, err := s.config.Store.CreateProject(ctx, name, strings.TrimSpace(description))
	if err != nil {
		err = fmt.Errorf("failed to create project: %w", err)
		s.failed(ctx, "CreateProject", "project creation failed", err, nil)
		return sharding.Project{}, err
	}

	s.succeeded(ctx, "CreateProject", "project created", map[string]string{"project_id": project.ID, "name": name})
	return project, nil
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]sharding.Project, error) {
	projects, err := s.config.Store.ListProjects(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list projects: %w", err)
		s.failed(ctx, "ListProjects", "project listing failed", err, nil)
		return nil, err
	}
	return projects, nil
}

// FetchProjectByID returns one project.
func (s *Service) FetchProjectByID(ctx context.Context, projectID string) (sharding.Project, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		s.failed(ctx, "FetchProjectByID", "project fetch failed", err, projectFields(projectID))
		return sharding.Project{}, err
	}
	return project, nil
}

// FetchProjectStatus returns the activation status of a project.
func (s *Service) FetchProjectStatus(ctx context.Context, projectID string) (sharding.ProjectStatus, error) {
	project, err := s.project(ctx, projectID)
	if err != nil {
		s.failed(ctx, "FetchProjectStatus", "project status fetch failed", err, projectFields(projectID))
		return "", err
	}
	return project.Status, nil
}

// ActivateProject makes the project the single active project.
func (s *Service) ActivateProject(ctx context.Context, projectID string) error {
	if err := s.config.Coordinator.Activate(ctx, projectID); err != nil {
		s.failed(ctx, "ActivateProject", "project activation failed", err, projectFields(projectID))
		return err
	}
	s.succeeded(ctx, "ActivateProject", "project activated", projectFields(projectID))
	return nil
}

// DeactivateProject deactivates the project and closes its shard handles.
func (s *Service) DeactivateProject(ctx context.Context, projectID string) error {
	if err := s.config.Coordinator.Deactivate(ctx, projectID); err != nil {
		s.failed(ctx, "DeactivateProject", "project deactivation failed", err, projectFields(projectID))
		return err
	}
	s.succeeded(ctx, "DeactivateProject", "project deactivated", projectFields(projectID))
	return nil
}

// ListShards returns the shards of a project ordered by shard index.
func (s *Service) ListShards(ctx context.Context, projectID string) ([]sharding.Shard, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		s.failed(ctx, "ListShards", "shard listing failed", err, projectFields(projectID))
		return nil, err
	}

	shards, err := s.config.Store.ListShards(ctx, projectID)
	if err != nil {
		err = fmt.Errorf("failed to list shards: %w", err)
		s.failed(ctx, "ListShards", "shard listing failed", err, projectFields(projectID))
		return nil, err
	}
	return shards, nil
}

// AddShard creates an inactive shard for the project.
func (s *Service) AddShard(ctx context.Context, projectID string) (sharding.Shard, error) {
	shard, err := s.config.Coordinator.AddShard(ctx, projectID)
	if err != nil {
		s.failed(ctx, "AddShard", "shard addition failed", err, projectFields(projectID))
		return sharding.Shard{}, err
	}
	s.succeeded(ctx, "AddShard", "shard added", map[string]string{"project_id": projectID, "shard_id": shard.ID})
	return shard, nil
}

// ActivateShard opens the shard's handle and marks it active.
func (s *Service) ActivateShard(ctx context.Context, shardID string) error {
	if err := s.config.Coordinator.ActivateShard(ctx, shardID); err != nil {
		s.failed(ctx, "ActivateShard", "shard activation failed", err, shardFields(shardID))
		return err
	}
	s.succeeded(ctx, "ActivateShard", "shard activated", shardFields(shardID))
	return nil
}

// DeactivateShard closes the shard's handle and marks it inactive.
func (s *Service) DeactivateShard(ctx context.Context, shardID string) error {
	if err := s.config.Coordinator.DeactivateShard(ctx, shardID); err != nil {
		s.failed(ctx, "DeactivateShard", "shard deactivation failed", err, shardFields(shardID))
		return err
	}
	s.succeeded(ctx, "DeactivateShard", "shard deactivated", shardFields(shardID))
	return nil
}

// FetchShardStatus returns the activation status of a shard.
func (s *Service) FetchShardStatus(ctx context.Context, shardID string) (sharding.ShardStatus, error) {
	shard, err := s.config.Store.GetShard(ctx, shardID)
	if errors.Is(err, store.ErrShardNotFound) {
		err = sharding.NewNotFoundError("shard", shardID, err)
	} else if err != nil {
		err = fmt.Errorf("failed to get shard: %w", err)
	}
	if err != nil {
		s.failed(ctx, "FetchShardStatus", "shard status fetch failed", err, shardFields(shardID))
		return "", err
	}
	return shard.Status, nil
}

// DeleteShard removes an inactive shard. Refusing an active shard is reported
// through the result, not as an error.
func (s *Service) DeleteShard(ctx context.Context, shardID string) (sharding.DeleteShardResult, error) {
	result, err := s.config.Coordinator.DeleteShard(ctx, shardID)
	if err != nil {
		s.failed(ctx, "DeleteShard", "shard deletion failed", err, shardFields(shardID))
		return "", err
	}

	if result == sharding.DeleteShardActive {
		s.config.Events.Warn(source("DeleteShard"), "active shard cannot be deleted", shardFields(shardID))
		return result, nil
	}
	s.succeeded(ctx, "DeleteShard", "shard deleted", shardFields(shardID))
	return result, nil
}

// FetchConnectionInfo returns the connection settings of a shard without the password.
func (s *Service) FetchConnectionInfo(ctx context.Context, shardID string) (sharding.ShardConnection, error) {
	conn, err := s.config.Store.GetConnection(ctx, shardID)
	if errors.Is(err, store.ErrConnectionNotFound) {
		err = sharding.NewNotFoundError("connection", shardID, err)
	} else if err != nil {
		err = fmt.Errorf("failed to get connection: %w", err)
	}
	if err != nil {
		s.failed(ctx, "FetchConnectionInfo", "connection fetch failed", err, shardFields(shardID))
		return sharding.ShardConnection{}, err
	}
	return conn.Redacted(), nil
}

// AddConnection stores the connection settings of an inactive shard.
func (s *Service) AddConnection(ctx context.Context, conn sharding.ShardConnection) error {
	if err := s.config.Coordinator.AddConnection(ctx, conn); err != nil {
		s.failed(ctx, "AddConnection", "connection addition failed", err, shardFields(conn.ShardID))
		return err
	}
	s.succeeded(ctx, "AddConnection", "connection added", shardFields(conn.ShardID))
	return nil
}

// UpdateConnection replaces the connection settings of an inactive shard.
func (s *Service) UpdateConnection(ctx context.Context, conn sharding.ShardConnection) error {
	if err := s.config.Coordinator.UpdateConnection(ctx, conn); err != nil {
		s.failed(ctx, "UpdateConnection", "connection update failed", err, shardFields(conn.ShardID))
		return err
	}
	s.succeeded(ctx, "UpdateConnection", "connection updated", shardFields(conn.ShardID))
	return nil
}

// RetryShardConnections reopens the handles of every active shard.
func (s *Service) RetryShardConnections(ctx context.Context) error {
	if err := s.config.Coordinator.Restore(ctx); err != nil {
		s.failed(ctx, "RetryShardConnections", "shard connection retry failed", err, nil)
		return err
	}
	s.succeeded(ctx, "RetryShardConnections", "shard connections retried", nil)
	return nil
}

// CreateSchemaDraft creates a draft schema for the project.
func (s *Service) CreateSchemaDraft(ctx context.Context, projectID, ddlSQL string) (sharding.ProjectSchema, error) {
	schema, err := s.config.Lifecycle.CreateDraft(ctx, projectID, ddlSQL)
	if err != nil {
		s.failed(ctx, "CreateSchemaDraft", "schema draft creation failed", err, projectFields(projectID))
		return sharding.ProjectSchema{}, err
	}
	s.succeeded(ctx, "CreateSchemaDraft", "schema draft created", schemaFields(projectID, schema.ID))
	return schema, nil
}

// UpdateProjectSchemaDraft replaces the DDL of a draft.
func (s *Service) UpdateProjectSchemaDraft(ctx context.Context, projectID, schemaID, ddlSQL string) error {
	if err := s.config.Lifecycle.UpdateDraft(ctx, projectID, schemaID, ddlSQL); err != nil {
		s.failed(ctx, "UpdateProjectSchemaDraft", "schema draft update failed", err, schemaFields(projectID, schemaID))
		return err
	}
	s.succeeded(ctx, "UpdateProjectSchemaDraft", "schema draft updated", schemaFields(projectID, schemaID))
	return nil
}

// CommitSchemaDraft validates a draft and freezes it as the next version.
func (s *Service) CommitSchemaDraft(ctx context.Context, projectID, schemaID string) (sharding.ProjectSchema, error) {
	schema, err := s.config.Lifecycle.CommitDraft(ctx, projectID, schemaID)
	if err != nil {
		s.failed(ctx, "CommitSchemaDraft", "schema commit failed", err, schemaFields(projectID, schemaID))
		return sharding.ProjectSchema{}, err
	}

	fields := schemaFields(projectID, schemaID)
	fields["version"] = fmt.Sprint(schema.Version)
	s.succeeded(ctx, "CommitSchemaDraft", "schema committed", fields)
	return schema, nil
}

// DeleteSchemaDraft removes a draft.
func (s *Service) DeleteSchemaDraft(ctx context.Context, schemaID string) error {
	if err := s.config.Lifecycle.DeleteDraft(ctx, schemaID); err != nil {
		s.failed(ctx, "DeleteSchemaDraft", "schema draft deletion failed", err, map[string]string{"schema_id": schemaID})
		return err
	}
	s.succeeded(ctx, "DeleteSchemaDraft", "schema draft deleted", map[string]string{"schema_id": schemaID})
	return nil
}

// GetCurrentSchema returns the in-flight schema, or the latest one.
func (s *Service) GetCurrentSchema(ctx context.Context, projectID string) (sharding.ProjectSchema, error) {
	schema, err := s.config.Lifecycle.GetCurrent(ctx, projectID)
	if err != nil {
		s.failed(ctx, "GetCurrentSchema", "current schema fetch failed", err, projectFields(projectID))
		return sharding.ProjectSchema{}, err
	}
	return schema, nil
}

// GetSchemaHistory returns every schema of the project, newest version first.
func (s *Service) GetSchemaHistory(ctx context.Context, projectID string) ([]sharding.ProjectSchema, error) {
	history, err := s.config.Lifecycle.GetHistory(ctx, projectID)
	if err != nil {
		s.failed(ctx, "GetSchemaHistory", "schema history fetch failed", err, projectFields(projectID))
		return nil, err
	}
	return history, nil
}

// GetSchemaCapabilities returns the lifecycle actions currently allowed.
func (s *Service) GetSchemaCapabilities(ctx context.Context, projectID string) (sharding.Capabilities, error) {
	caps, err := s.config.Lifecycle.GetCapabilities(ctx, projectID)
	if err != nil {
		s.failed(ctx, "GetSchemaCapabilities", "schema capabilities fetch failed", err, projectFields(projectID))
		return sharding.Capabilities{}, err
	}
	return caps, nil
}

// GetSchemaExecutionStatus returns the per-shard outcome of a schema.
func (s *Service) GetSchemaExecutionStatus(ctx context.Context, schemaID string) ([]sharding.SchemaExecutionStatus, error) {
	statuses, err := s.config.Lifecycle.GetExecutionStatuses(ctx, schemaID)
	if err != nil {
		s.failed(ctx, "GetSchemaExecutionStatus", "schema execution status fetch failed", err, map[string]string{"schema_id": schemaID})
		return nil, err
	}
	return statuses, nil
}

// GetFailedShardExecutions returns the shards on which a schema failed.
func (s *Service) GetFailedShardExecutions(ctx context.Context, schemaID string) ([]sharding.SchemaExecutionStatus, error) {
	statuses, err := s.config.Lifecycle.GetExecutionStatuses(ctx, schemaID)
	if err != nil {
		s.failed(ctx, "GetFailedShardExecutions", "failed shard execution fetch failed", err, map[string]string{"schema_id": schemaID})
		return nil, err
	}

	failed := make([]sharding.SchemaExecutionStatus, 0, len(statuses))
	for _, status := range statuses {
		if status.State == sharding.ExecutionStateFailed {
			failed = append(failed, status)
		}
	}
	return failed, nil
}

// ExecuteProjectSchema applies the pending schema to every active shard.
// A schema that ends failed is returned without an error; its per-shard
// statuses tell which shards diverged.
func (s *Service) ExecuteProjectSchema(ctx context.Context, projectID string) (sharding.ProjectSchema, error) {
	schema, err := s.config.Lifecycle.Execute(ctx, projectID)
	if err != nil {
		s.failed(ctx, "ExecuteProjectSchema", "schema execution failed", err, projectFields(projectID))
		return sharding.ProjectSchema{}, err
	}
	s.settled(ctx, "ExecuteProjectSchema", schema)
	return schema, nil
}

// RetrySchemaExecution re-runs a failed schema on the shards that have not applied it.
func (s *Service) RetrySchemaExecution(ctx context.Context, projectID string) (sharding.ProjectSchema, error) {
	schema, err := s.config.Lifecycle.Retry(ctx, projectID)
	if err != nil {
		s.failed(ctx, "RetrySchemaExecution", "schema retry failed", err, projectFields(projectID))
		return sharding.ProjectSchema{}, err
	}
	s.settled(ctx, "RetrySchemaExecution", schema)
	return schema, nil
}

// FetchShardKeys returns the stored shard keys of a project.
func (s *Service) FetchShardKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error) {
	keys, err := s.config.ShardKeys.FetchShardKeys(ctx, projectID)
	if err != nil {
		s.failed(ctx, "FetchShardKeys", "shard key fetch failed", err, projectFields(projectID))
		return nil, err
	}
	return keys, nil
}

// RecomputeKeys re-infers the shard keys of a project from its applied schemas.
func (s *Service) RecomputeKeys(ctx context.Context, projectID string) ([]sharding.ShardKeyRecord, error) {
	keys, err := s.config.ShardKeys.RecomputeKeys(ctx, projectID)
	if err != nil {
		s.failed(ctx, "RecomputeKeys", "shard key recomputation failed", err, projectFields(projectID))
		return nil, err
	}

	fields := projectFields(projectID)
	fields["keys"] = fmt.Sprint(len(keys))
	s.succeeded(ctx, "RecomputeKeys", "shard keys recomputed", fields)
	return keys, nil
}

// ReplaceShardKeys overwrites the shard keys of a project.
func (s *Service) ReplaceShardKeys(ctx context.Context, projectID string, records []sharding.ShardKeyRecord) error {
	if err := s.config.ShardKeys.ReplaceShardKeys(ctx, projectID, records); err != nil {
		s.failed(ctx, "ReplaceShardKeys", "shard key replacement failed", err, projectFields(projectID))
		return err
	}
	s.succeeded(ctx, "ReplaceShardKeys", "shard keys replaced", projectFields(projectID))
	return nil
}

// ExecuteSQL sends one statement to every active shard of the active project
// and returns one result per shard ordered by shard index. Shard failures are
// reported in the results.
func (s *Service) ExecuteSQL(ctx context.Context, projectID, statement string) ([]sharding.ExecutionResult, error) {
	results, err := s.executeSQL(ctx, projectID, statement)
	if err != nil {
		s.failed(ctx, "ExecuteSQL", "query execution failed", err, projectFields(projectID))
		return nil, err
	}

	fields := projectFields(projectID)
	fields["shards"] = fmt.Sprint(len(results))
	if failure, failed := executor.FirstFailure(results); failed {
		fields["error"] = (&sharding.ExecutionError{
			ShardID: failure.ShardID, ShardIndex: failure.ShardIndex, Err: failure.Err,
		}).Error()
		s.config.Events.Warn(source("ExecuteSQL"), "query failed on some shards", fields)
		return results, nil
	}
	s.succeeded(ctx, "ExecuteSQL", "query executed", fields)
	return results, nil
}

func (s *Service) executeSQL(ctx context.Context, projectID, statement string) ([]sharding.ExecutionResult, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, sharding.NewValidationError("sql", "must not be empty")
	}

	project, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != sharding.ProjectStatusActive {
		return nil, sharding.NewPreconditionError(sharding.ReasonProjectInactive,
			"activate the project before running statements")
	}

	shards, err := s.config.Store.ListShards(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}

	targets := make([]executor.Target, 0, len(shards))
	for _, shard := range shards {
		if shard.Status != sharding.ShardStatusActive {
			continue
		}
		target := executor.Target{ShardID: shard.ID, ShardIndex: shard.ShardIndex}
		if s.config.Conns != nil {
			if conn, err := s.config.Conns.Conn(shard.ID); err == nil {
				target.Conn = conn
			}
		}
		targets = append(targets, target)
	}
	if len(targets) == 0 {
		return nil, sharding.NewPreconditionError(sharding.ReasonShardsNotActive, "project has no active shards")
	}

	return s.config.Runner.Run(ctx, projectID, targets, statement, nil), nil
}

func (s *Service) project(ctx context.Context, projectID string) (sharding.Project, error) {
	project, err := s.config.Store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrProjectNotFound) {
		return sharding.Project{}, sharding.NewNotFoundError("project", projectID, err)
	}
	if err != nil {
		return sharding.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// settled reports the final state of an execution or retry.
func (s *Service) settled(ctx context.Context, op string, schema sharding.ProjectSchema) {
	fields := schemaFields(schema.ProjectID, schema.ID)
	fields["state"] = string(schema.State)

	if schema.State == sharding.SchemaStateFailed {
		fields["error"] = schema.ErrorMessage
		s.logError(ctx, "schema execution finished with failures", "projectID", schema.ProjectID, "schemaID", schema.ID, "error", schema.ErrorMessage)
		s.config.Events.Error(source(op), "schema execution failed on some shards", fields)
		return
	}
	s.succeeded(ctx, op, "schema applied", fields)
}

func (s *Service) succeeded(ctx context.Context, op, msg string, fields map[string]string) {
	if s.config.Logger != nil {
		s.config.Logger.Info(ctx, msg, append([]interface{}{"op", op}, keyvals(fields)...)...)
	}
	s.config.Events.Info(source(op), msg, fields)
}

func (s *Service) failed(ctx context.Context, op, msg string, err error, fields map[string]string) {
	if fields == nil {
		fields = make(map[string]string, 2)
	}
	fields["error"] = err.Error()
	if reason := sharding.ReasonOf(err); reason != "" {
		fields["reason"] = string(reason)
	}

	s.logError(ctx, msg, append([]interface{}{"op", op}, keyvals(fields)...)...)
	s.config.Events.Error(source(op), msg, fields)
}

func (s *Service) logError(ctx context.Context, msg string, kv ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Error(ctx, msg, kv...)
	}
}

func source(op string) string {
	return "service - " + op
}

func projectFields(projectID string) map[string]string {
	return map[string]string{"project_id": projectID}
}

func shardFields(shardID string) map[string]string {
	return map[string]string{"shard_id": shardID}
}

func schemaFields(projectID, schemaID string) map[string]string {
	return map[string]string{"project_id": projectID, "schema_id": schemaID}
}

// keyvals flattens event fields into logger key/value pairs.
func keyvals(fields map[string]string) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
