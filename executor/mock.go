package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/getpup/sharding-orchestrator"
)

// MockRunner is a mock implementation of Runner for testing.
type MockRunner struct {
	mu sync.Mutex

	// ShardFunc, when set, produces the error for one shard. A nil error means success.
	ShardFunc func(target Target, statement string) error

	RunCalls []RunCall
}

// RunCall records the parameters of a single Run call.
type RunCall struct {
	ProjectID string
	Targets   []Target
	Statement string
}

// NewMockRunner creates a new MockRunner with an empty call history.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		RunCalls: make([]RunCall, 0),
	}
}

// Run implements the Runner interface.
// It records the call, then reports one result per target using ShardFunc.
// Without ShardFunc every shard succeeds.
func (m *MockRunner) Run(ctx context.Context, projectID string, targets []Target, statement string, onResult ResultFunc) []sharding.ExecutionResult {
	m.mu.Lock()
	m.RunCalls = append(m.RunCalls, RunCall{
		ProjectID: projectID,
		Targets:   append([]Target(nil), targets...),
		Statement: statement,
	})
	shardFunc := m.ShardFunc
	m.mu.Unlock()

	results := make([]sharding.ExecutionResult, 0, len(targets))
	for _, target := range targets {
		result := sharding.ExecutionResult{ShardID: target.ShardID, ShardIndex: target.ShardIndex}
		if shardFunc != nil {
			if err := shardFunc(target, statement); err != nil {
				result = withErr(result, err)
			}
		}
		if onResult != nil {
			onResult(result)
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ShardIndex < results[j].ShardIndex
	})

	return results
}

// Calls returns a copy of the recorded calls.
func (m *MockRunner) Calls() []RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunCall(nil), m.RunCalls...)
}

// Reset clears the call history.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls = make([]RunCall, 0)
}
