// Package coordinator enforces project and shard activation rules and keeps
// the connection pool in step with them.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/events"
	"github.com/getpup/sharding-orchestrator/metrics"
	"github.com/getpup/sharding-orchestrator/store"
)

const eventSource = "coordinator"

// ShardPool owns the live handles of active shards.
type ShardPool interface {
	// Open opens and validates a handle, failing if the shard cannot be reached.
	Open(ctx context.Context, conn sharding.ShardConnection) error

	// Ensure opens a handle if needed and validates it, keeping it on failure.
	Ensure(ctx context.Context, conn sharding.ShardConnection) error

	// Ping validates an open handle.
	Ping(ctx context.Context, shardID string) error

	// Close closes the handle of a shard. Statements already running finish.
	Close(shardID string) error
}

// Config holds configuration for the Coordinator.
type Config struct {
	// Store is the metadata store (required).
	Store store.MetadataStore

	// Pool holds shard handles (required).
	Pool ShardPool

	// Logger is for observability (optional).
	Logger es.Logger

	// Events receives activation warnings (optional).
	Events *events.Emitter

	// MetricsEnabled enables Prometheus metrics collection (default: true).
	MetricsEnabled *bool
}

// Coordinator applies activation changes. Every change runs under one
// process-wide lock, so the single-active-project check and the write that
// follows it cannot interleave with another change.
type Coordinator struct {
	config Config
	mu     sync.Mutex
}

// New creates a new Coordinator with the given configuration.
func New(cfg Config) *Coordinator {
	return &Coordinator{config: cfg}
}

// Activate makes the project the single active project.
//
// Returns a ConflictError if another project is active and a PreconditionError
// unless the project has shards and all of them are active. On success every
// shard handle is opened or revalidated; a shard that fails validation is
// reported as a warning and does not undo the activation.
func (c *Coordinator) Activate(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	collector := metrics.For(metrics.Enabled(c.config.MetricsEnabled), projectID)

	project, err := c.project(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status == sharding.ProjectStatusActive {
		return nil
	}

	active, err := c.config.Store.GetActiveProject(ctx)
	switch {
	case err == nil && active.ID != projectID:
		collector.IncActivation("conflict")
		return sharding.NewConflictError("another project is already active")
	case err != nil && !errors.Is(err, store.ErrProjectNotFound):
		return fmt.Errorf("failed to get active project: %w", err)
	}

	shards, err := c.shards(ctx, projectID)
	if err != nil {
		return err
	}
	if !allActive(shards) {
		collector.IncActivation("rejected")
		return sharding.NewPreconditionError(sharding.ReasonShardsNotActive, "not all shards are active")
	}

	err = c.config.Store.SetProjectStatus(ctx, projectID, sharding.ProjectStatusActive)
	if errors.Is(err, store.ErrActiveProjectExists) {
		collector.IncActivation("conflict")
		return sharding.NewConflictError("another project is already active")
	}
	if err != nil {
		return fmt.Errorf("failed to activate project: %w", err)
	}

	for _, shard := range shards {
		c.ensure(ctx, shard)
	}

	collector.IncActivation("success")
	collector.SetActive(true)
	c.logInfo(ctx, "project activated", "projectID", projectID, "shards", len(shards))
	return nil
}

// Deactivate closes the project's shard handles and marks it inactive.
// Shard statuses are left as they are; statements already running on the
// closed handles are allowed to finish.
func (c *Coordinator) Deactivate(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deactivate(ctx, projectID)
}

func (c *Coordinator) deactivate(ctx context.Context, projectID string) error {
	project, err := c.project(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status == sharding.ProjectStatusInactive {
		return nil
	}

	if err := c.config.Store.SetProjectStatus(ctx, projectID, sharding.ProjectStatusInactive); err != nil {
		return fmt.Errorf("failed to deactivate project: %w", err)
	}

	shards, err := c.shards(ctx, projectID)
	if err != nil {
		return err
	}
	for _, shard := range shards {
		if err := c.config.Pool.Close(shard.ID); err != nil {
			c.logError(ctx, "failed to close shard handle", "shardID", shard.ID, "error", err)
		}
	}

	metrics.For(metrics.Enabled(c.config.MetricsEnabled), projectID).SetActive(false)
	c.logInfo(ctx, "project deactivated", "projectID", projectID)
	return nil
}

// AddShard creates an inactive shard with the next shard index.
// Refused while the project is active, since every shard of an active project must be active.
func (c *Coordinator) AddShard(ctx context.Context, projectID string) (sharding.Shard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	project, err := c.project(ctx, projectID)
	if err != nil {
		return sharding.Shard{}, err
	}
	if project.Status == sharding.ProjectStatusActive {
		return sharding.Shard{}, sharding.NewPreconditionError(sharding.ReasonProjectActive,
			"deactivate the project before adding shards")
	}

	shard, err := c.config.Store.CreateShard(ctx, projectID)
	if err != nil {
		return sharding.Shard{}, fmt.Errorf("failed to create shard: %w", err)
	}

	c.logInfo(ctx, "shard added", "projectID", projectID, "shardID", shard.ID, "shardIndex", shard.ShardIndex)
	return shard, nil
}

// ActivateShard opens and validates the shard's handle, then marks it active.
// Returns a PreconditionError if the shard has no connection settings or cannot be reached.
func (c *Coordinator) ActivateShard(ctx context.Context, shardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	shard, err := c.shard(ctx, shardID)
	if err != nil {
		return err
	}
	if shard.Status == sharding.ShardStatusActive {
		return nil
	}

	conn, err := c.config.Store.GetConnection(ctx, shardID)
	if errors.Is(err, store.ErrConnectionNotFound) {
		return sharding.NewPreconditionError(sharding.ReasonConnectionMissing,
			"shard has no connection settings")
	}
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}

	if err := c.config.Pool.Open(ctx, conn); err != nil {
		c.config.Events.Warn(eventSource, "shard unreachable", map[string]string{
			"shard_id": shardID,
			"error":    err.Error(),
		})
		return sharding.NewPreconditionError(sharding.ReasonShardUnreachable, err.Error())
	}

	if err := c.config.Store.SetShardStatus(ctx, shardID, sharding.ShardStatusActive); err != nil {
		_ = c.config.Pool.Close(shardID)
		return fmt.Errorf("failed to activate shard: %w", err)
	}

	c.logInfo(ctx, "shard activated", "projectID", shard.ProjectID, "shardID", shardID)
	return nil
}

// DeactivateShard closes the shard's handle and marks it inactive.
// Refused while the owning project is active.
func (c *Coordinator) DeactivateShard(ctx context.Context, shardID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	shard, err := c.shard(ctx, shardID)
	if err != nil {
		return err
	}

	project, err := c.project(ctx, shard.ProjectID)
	if err != nil {
		return err
	}
	if project.Status == sharding.ProjectStatusActive {
		return sharding.NewPreconditionError(sharding.ReasonProjectActive,
			"deactivate the project before deactivating its shards")
	}

	return c.deactivateShard(ctx, shard)
}

func (c *Coordinator) deactivateShard(ctx context.Context, shard sharding.Shard) error {
	if err := c.config.Pool.Close(shard.ID); err != nil {
		c.logError(ctx, "failed to close shard handle", "shardID", shard.ID, "error", err)
	}
	if shard.Status == sharding.ShardStatusInactive {
		return nil
	}

	if err := c.config.Store.SetShardStatus(ctx, shard.ID, sharding.ShardStatusInactive); err != nil {
		return fmt.Errorf("failed to deactivate shard: %w", err)
	}

	c.logInfo(ctx, "shard deactivated", "projectID", shard.ProjectID, "shardID", shard.ID)
	return nil
}

// DeleteShard removes an inactive shard and its connection settings.
// An active shard is left untouched and DeleteShardActive is returned.
func (c *Coordinator) DeleteShard(ctx context.Context, shardID string) (sharding.DeleteShardResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	shard, err := c.shard(ctx, shardID)
	if err != nil {
		return "", err
	}
	if shard.Status == sharding.ShardStatusActive {
		return sharding.DeleteShardActive, nil
	}

	if err := c.config.Pool.Close(shardID); err != nil {
		c.logError(ctx, "failed to close shard handle", "shardID", shardID, "error", err)
	}

	err = c.config.Store.DeleteShard(ctx, shardID)
	if errors.Is(err, store.ErrShardNotFound) {
		return "", sharding.NewNotFoundError("shard", shardID, err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete shard: %w", err)
	}

	c.logInfo(ctx, "shard deleted", "projectID", shard.ProjectID, "shardID", shardID)
	return sharding.DeleteShardDeleted, nil
}

// AddConnection stores the connection settings of an inactive shard.
// Returns a ConflictError if the shard already has settings.
func (c *Coordinator) AddConnection(ctx context.Context, conn sharding.ShardConnection) error {
	conn, err := normalizeConnection(conn, true)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInactiveShard(ctx, conn.ShardID); err != nil {
		return err
	}

	err = c.config.Store.CreateConnection(ctx, conn)
	if errors.Is(err, store.ErrConnectionExists) {
		return sharding.NewConflictError("shard already has connection settings")
	}
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	c.logInfo(ctx, "connection added", "shardID", conn.ShardID, "driver", conn.Driver, "host", conn.Host)
	return nil
}

// UpdateConnection replaces the connection settings of an inactive shard.
// An empty password keeps the stored one.
func (c *Coordinator) UpdateConnection(ctx context.Context, conn sharding.ShardConnection) error {
	conn, err := normalizeConnection(conn, false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInactiveShard(ctx, conn.ShardID); err != nil {
		return err
	}

	err = c.config.Store.UpdateConnection(ctx, conn)
	if errors.Is(err, store.ErrConnectionNotFound) {
		return sharding.NewNotFoundError("connection", conn.ShardID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}

	c.logInfo(ctx, "connection updated", "shardID", conn.ShardID, "driver", conn.Driver, "host", conn.Host)
	return nil
}

// Restore reopens the handles of every active shard, typically at startup.
// Shards that cannot be reached are reported and keep their status; the
// health monitor deals with them.
func (c *Coordinator) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	projects, err := c.config.Store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	restored := 0
	for _, project := range projects {
		shards, err := c.shards(ctx, project.ID)
		if err != nil {
			return err
		}
		for _, shard := range shards {
			if shard.Status != sharding.ShardStatusActive {
				continue
			}
			c.ensure(ctx, shard)
			restored++
		}
		if project.Status == sharding.ProjectStatusActive {
			metrics.For(metrics.Enabled(c.config.MetricsEnabled), project.ID).SetActive(true)
		}
	}

	c.logInfo(ctx, "shard handles restored", "shards", restored)
	return nil
}

// ensure opens or revalidates a shard handle and reports failures as warnings.
func (c *Coordinator) ensure(ctx context.Context, shard sharding.Shard) {
	conn, err := c.config.Store.GetConnection(ctx, shard.ID)
	if err == nil {
		err = c.config.Pool.Ensure(ctx, conn)
	}
	if err == nil {
		return
	}

	c.logError(ctx, "shard handle not validated", "projectID", shard.ProjectID, "shardID", shard.ID, "error", err)
	c.config.Events.Warn(eventSource, "shard connection could not be validated", map[string]string{
		"project_id": shard.ProjectID,
		"shard_id":   shard.ID,
		"error":      err.Error(),
	})
}

func (c *Coordinator) requireInactiveShard(ctx context.Context, shardID string) error {
	shard, err := c.shard(ctx, shardID)
	if err != nil {
		return err
	}
	if shard.Status == sharding.ShardStatusActive {
		return sharding.NewPreconditionError(sharding.ReasonShardActive,
			"deactivate the shard before changing its connection settings")
	}
	return nil
}

// normalizeConnection trims and validates connection settings. Passwords are
// only required when creating settings for a server-based driver.
func normalizeConnection(conn sharding.ShardConnection, creating bool) (sharding.ShardConnection, error) {
	conn.ShardID = strings.TrimSpace(conn.ShardID)
	conn.Driver = strings.TrimSpace(conn.Driver)
	conn.Host = strings.TrimSpace(conn.Host)
	conn.DatabaseName = strings.TrimSpace(conn.DatabaseName)
	conn.Username = strings.TrimSpace(conn.Username)
	if conn.Driver == "" {
		conn.Driver = sharding.DriverPostgres
	}

	if conn.ShardID == "" {
		return conn, sharding.NewValidationError("shard_id", "must not be empty")
	}
	if conn.DatabaseName == "" {
		return conn, sharding.NewValidationError("database_name", "must not be empty")
	}
	if conn.Port < 0 || conn.Port > 65535 {
		return conn, sharding.NewValidationError("port", "must be between 0 and 65535")
	}

	switch conn.Driver {
	case sharding.DriverSQLite:
		return conn, nil
	case sharding.DriverPostgres, sharding.DriverMySQL:
	default:
		return conn, sharding.NewValidationError("driver", "unsupported driver "+conn.Driver)
	}

	if conn.Host == "" {
		return conn, sharding.NewValidationError("host", "must not be empty")
	}
	if conn.Username == "" {
		return conn, sharding.NewValidationError("username", "must not be empty")
	}
	if creating && conn.Password == "" {
		return conn, sharding.NewValidationError("password", "must not be empty")
	}
	return conn, nil
}

func allActive(shards []sharding.Shard) bool {
	if len(shards) == 0 {
		return false
	}
	for _, shard := range shards {
		if shard.Status != sharding.ShardStatusActive {
			return false
		}
	}
	return true
}

func (c *Coordinator) project(ctx context.Context, projectID string) (sharding.Project, error) {
	project, err := c.config.Store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrProjectNotFound) {
		return sharding.Project{}, sharding.NewNotFoundError("project", projectID, err)
	}
	if err != nil {
		return sharding.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (c *Coordinator) shard(ctx context.Context, shardID string) (sharding.Shard, error) {
	shard, err := c.config.Store.GetShard(ctx, shardID)
	if errors.Is(err, store.ErrShardNotFound) {
		return sharding.Shard{}, sharding.NewNotFoundError("shard", shardID, err)
	}
	if err != nil {
		return sharding.Shard{}, fmt.Errorf("failed to get shard: %w", err)
	}
	return shard, nil
}

func (c *Coordinator) shards(ctx context.Context, projectID string) ([]sharding.Shard, error) {
	shards, err := c.config.Store.ListShards(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}
	return shards, nil
}

func (c *Coordinator) logInfo(ctx context.Context, msg string, keyvals ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(ctx, msg, keyvals...)
	}
}

func (c *Coordinator) logError(ctx context.Context, msg string, keyvals ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(ctx, msg, keyvals...)
	}
}
