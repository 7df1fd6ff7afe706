package sharding

import (
	"errors"
	"fmt"
)

// Reason is a stable code carried by a PreconditionError.
// Callers branch on the code, never on the message text.
type Reason string

const (
	ReasonProjectActive     Reason = "project_active"
	ReasonProjectInactive   Reason = "project_inactive"
	ReasonShardsNotActive   Reason = "shards_not_active"
	ReasonShardActive       Reason = "shard_active"
	ReasonSchemaNotRunnable Reason = "schema_not_runnable"
	ReasonNoAppliedSchema   Reason = "no_applied_schema"
	ReasonShardUnreachable  Reason = "shard_unreachable"
	ReasonDestructiveDDL    Reason = "destructive_ddl"
	ReasonConnectionMissing Reason = "connection_missing"
)

// ValidationError indicates malformed input. It is returned before any state changes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// ConflictError indicates the request collides with existing state,
// such as another active project or an in-flight schema.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// PreconditionError indicates the request is well formed but not allowed in the current state.
type PreconditionError struct {
	Reason  Reason
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// NotFoundError indicates the referenced resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string

	// Err is the underlying store sentinel, if any.
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ExecutionError is a statement failure on a single shard.
type ExecutionError struct {
	ShardID    string
	ShardIndex int
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("shard %d (%s): %v", e.ShardIndex, e.ShardID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a ValidationError for the given field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConflictError returns a ConflictError with the given message.
func NewConflictError(message string) error {
	return &ConflictError{Message: message}
}

// NewPreconditionError returns a PreconditionError with a reason code.
func NewPreconditionError(reason Reason, message string) error {
	return &PreconditionError{Reason: reason, Message: message}
}

// NewNotFoundError returns a NotFoundError wrapping err.
func NewNotFoundError(resource, id string, err error) error {
	return &NotFoundError{Resource: resource, ID: id, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// ReasonOf returns the reason code of a PreconditionError, or "" for any other error.
func ReasonOf(err error) Reason {
	var target *PreconditionError
	if errors.As(err, &target) {
		return target.Reason
	}
	return ""
}
