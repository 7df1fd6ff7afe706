package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/getpup/sharding-orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRunner_RecordsCalls(t *testing.T) {
	mock := NewMockRunner()
	targets := []Target{{ShardID: "s0", ShardIndex: 0}, {ShardID: "s1", ShardIndex: 1}}

	results := mock.Run(context.Background(), "p1", targets, "CREATE TABLE t (id INT)", nil)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "p1", calls[0].ProjectID)
	assert.Equal(t, targets, calls[0].Targets)
	assert.Equal(t, "CREATE TABLE t (id INT)", calls[0].Statement)
}

func TestMockRunner_ShardFuncFailsSelectedShards(t *testing.T) {
	mock := NewMockRunner()
	mock.ShardFunc = func(target Target, statement string) error {
		if target.ShardIndex == 1 {
			return errors.New("unreachable")
		}
		return nil
	}

	var reported []sharding.ExecutionResult
	results := mock.Run(context.Background(), "p", []Target{
		{ShardID: "s1", ShardIndex: 1}, {ShardID: "s0", ShardIndex: 0},
	}, "x", func(r sharding.ExecutionResult) { reported = append(reported, r) })

	assert.Len(t, reported, 2)
	assert.Equal(t, "s0", results[0].ShardID)
	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "unreachable")
}

func TestMockRunner_Reset(t *testing.T) {
	mock := NewMockRunner()
	mock.Run(context.Background(), "p", nil, "x", nil)

	mock.Reset()

	assert.Empty(t, mock.Calls())
}
