package lifecycle

import "github.com/getpup/sharding-orchestrator"

// Reasons reported when no lifecycle action is allowed.
const (
	ReasonExecutionInProgress = "schema execution in progress"
	ReasonAwaitingActivation  = "project must be active to execute the pending schema"
)

// Capabilities projects a project status and the state of its current schema
// onto the set of legal lifecycle actions. It mirrors the guards of Manager.
//
// Reason is set only when every action is disallowed.
func Capabilities(status sharding.ProjectStatus, state sharding.SchemaState) sharding.Capabilities {
	active := status == sharding.ProjectStatusActive

	var caps sharding.Capabilities
	switch state {
	case sharding.SchemaStateNone, sharding.SchemaStateApplied:
		caps.CanCreateDraft = true
	case sharding.SchemaStateDraft:
		caps.CanEditDraft = true
		caps.CanCommit = !active
	case sharding.SchemaStatePending:
		caps.CanExecute = active
		if !active {
			caps.Reason = ReasonAwaitingActivation
		}
	case sharding.SchemaStateApplying:
		caps.Reason = ReasonExecutionInProgress
	case sharding.SchemaStateFailed:
		caps.CanCreateDraft = true
		caps.CanRetry = active
	default:
		caps.Reason = "unknown schema state " + string(state)
	}

	return caps
}
