package api

import (
	"errors"
	"net/http"

	"github.com/getpup/sharding-orchestrator"
	"github.com/gin-gonic/gin"
)

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		validation   *sharding.ValidationError
		notFound     *sharding.NotFoundError
		conflict     *sharding.ConflictError
		precondition *sharding.PreconditionError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	case errors.As(err, &precondition):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": precondition.Error(), "reason": precondition.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// bind decodes the JSON body and answers 400 when it is malformed.
func bind(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
