package api

import (
	"net/http"

	"github.com/getpup/sharding-orchestrator"
	"github.com/gin-gonic/gin"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ddlRequest struct {
	DDL string `json:"ddl_sql"`
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

type shardKeysRequest struct {
	Records []sharding.ShardKeyRecord `json:"records"`
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if !bind(c, &req) {
		return
	}

	project, err := s.service.CreateProject(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.service.ListProjects(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) fetchProject(c *gin.Context) {
	project, err := s.service.FetchProjectByID(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (s *Server) fetchProjectStatus(c *gin.Context) {
	status, err := s.service.FetchProjectStatus(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) activateProject(c *gin.Context) {
	if err := s.service.ActivateProject(c.Request.Context(), c.Param("projectID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deactivateProject(c *gin.Context) {
	if err := s.service.DeactivateProject(c.Request.Context(), c.Param("projectID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) executeSQL(c *gin.Context) {
	var req sqlRequest
	if !bind(c, &req) {
		return
	}

	results, err := s.service.ExecuteSQL(c.Request.Context(), c.Param("projectID"), req.SQL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) listShards(c *gin.Context) {
	shards, err := s.service.ListShards(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shards": shards})
}

func (s *Server) addShard(c *gin.Context) {
	shard, err := s.service.AddShard(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"shard": shard})
}

func (s *Server) retryShardConnections(c *gin.Context) {
	if err := s.service.RetryShardConnections(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) fetchShardStatus(c *gin.Context) {
	status, err := s.service.FetchShardStatus(c.Request.Context(), c.Param("shardID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) activateShard(c *gin.Context) {
	if err := s.service.ActivateShard(c.Request.Context(), c.Param("shardID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deactivateShard(c *gin.Context) {
	if err := s.service.DeactivateShard(c.Request.Context(), c.Param("shardID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteShard answers 200 for both outcomes; the caller branches on result.
func (s *Server) deleteShard(c *gin.Context) {
	result, err := s.service.DeleteShard(c.Request.Context(), c.Param("shardID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) fetchConnection(c *gin.Context) {
	conn, err := s.service.FetchConnectionInfo(c.Request.Context(), c.Param("shardID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": conn})
}

func (s *Server) addConnection(c *gin.Context) {
	var conn sharding.ShardConnection
	if !bind(c, &conn) {
		return
	}
	conn.ShardID = c.Param("shardID")

	if err := s.service.AddConnection(c.Request.Context(), conn); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) updateConnection(c *gin.Context) {
	var conn sharding.ShardConnection
	if !bind(c, &conn) {
		return
	}
	conn.ShardID = c.Param("shardID")

	if err := s.service.UpdateConnection(c.Request.Context(), conn); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) schemaHistory(c *gin.Context) {
	history, err := s.service.GetSchemaHistory(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schemas": history})
}

func (s *Server) createSchemaDraft(c *gin.Context) {
	var req ddlRequest
	if !bind(c, &req) {
		return
	}

	schema, err := s.service.CreateSchemaDraft(c.Request.Context(), c.Param("projectID"), req.DDL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"schema": schema})
}

func (s *Server) currentSchema(c *gin.Context) {
	schema, err := s.service.GetCurrentSchema(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schema": schema})
}

func (s *Server) schemaCapabilities(c *gin.Context) {
	caps, err := s.service.GetSchemaCapabilities(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, caps)
}

func (s *Server) executeSchema(c *gin.Context) {
	schema, err := s.service.ExecuteProjectSchema(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schema": schema})
}

func (s *Server) retrySchema(c *gin.Context) {
	schema, err := s.service.RetrySchemaExecution(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schema": schema})
}

func (s *Server) updateSchemaDraft(c *gin.Context) {
	var req ddlRequest
	if !bind(c, &req) {
		return
	}

	err := s.service.UpdateProjectSchemaDraft(c.Request.Context(), c.Param("projectID"), c.Param("schemaID"), req.DDL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) commitSchemaDraft(c *gin.Context) {
	schema, err := s.service.CommitSchemaDraft(c.Request.Context(), c.Param("projectID"), c.Param("schemaID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schema": schema})
}

func (s *Server) deleteSchemaDraft(c *gin.Context) {
	if err := s.service.DeleteSchemaDraft(c.Request.Context(), c.Param("schemaID")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// schemaExecutions lists per-shard statuses; ?state=failed keeps only failures.
func (s *Server) schemaExecutions(c *gin.Context) {
	ctx := c.Request.Context()
	schemaID := c.Param("schemaID")

	var (
		statuses []sharding.SchemaExecutionStatus
		err      error
	)
	if c.Query("state") == string(sharding.ExecutionStateFailed) {
		statuses, err = s.service.GetFailedShardExecutions(ctx, schemaID)
	} else {
		statuses, err = s.service.GetSchemaExecutionStatus(ctx, schemaID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": statuses})
}

func (s *Server) fetchShardKeys(c *gin.Context) {
	keys, err := s.service.FetchShardKeys(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shard_keys": keys})
}

func (s *Server) replaceShardKeys(c *gin.Context) {
	var req shardKeysRequest
	if !bind(c, &req) {
		return
	}

	if err := s.service.ReplaceShardKeys(c.Request.Context(), c.Param("projectID"), req.Records); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) recomputeKeys(c *gin.Context) {
	keys, err := s.service.RecomputeKeys(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shard_keys": keys})
}
