package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector_StoresProject(t *testing.T) {
	collector := NewCollector("project-1")

	assert.Equal(t, "project-1", collector.project)
}

func TestCollector_IncSchemaExecution(t *testing.T) {
	collector := NewCollector("c-p1")

	before := testutil.ToFloat64(SchemaExecutionsTotal.WithLabelValues("c-p1", "failed"))
	collector.IncSchemaExecution("failed")
	after := testutil.ToFloat64(SchemaExecutionsTotal.WithLabelValues("c-p1", "failed"))

	assert.Equal(t, before+1, after)
}

func TestCollector_ObserveShardExecution(t *testing.T) {
	collector := NewCollector("c-p2")

	before := testutil.ToFloat64(ShardExecutionsTotal.WithLabelValues("c-p2", "timeout"))
	collector.ObserveShardExecution("timeout", 2*time.Second)
	after := testutil.ToFloat64(ShardExecutionsTotal.WithLabelValues("c-p2", "timeout"))

	assert.Equal(t, before+1, after)
}

func TestCollector_SetActive(t *testing.T) {
	collector := NewCollector("c-p3")

	collector.SetActive(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveProject.WithLabelValues("c-p3")))

	collector.SetActive(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(ActiveProject.WithLabelValues("c-p3")))
}

func TestCollector_Counters(t *testing.T) {
	collector := NewCollector("c-p4")

	collector.IncActivation("success")
	collector.IncShardKeyRecomputations()
	collector.IncUnhealthyShards()

	assert.Equal(t, float64(1), testutil.ToFloat64(ProjectActivationsTotal.WithLabelValues("c-p4", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ShardKeyRecomputationsTotal.WithLabelValues("c-p4")))
	assert.Equal(t, float64(1), testutil.ToFloat64(UnhealthyShardsTotal.WithLabelValues("c-p4")))
}

func TestCollector_NilDiscards(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.IncSchemaExecution("applied")
		collector.ObserveShardExecution("success", time.Millisecond)
		collector.IncActivation("success")
		collector.SetActive(true)
		collector.IncShardKeyRecomputations()
		collector.IncUnhealthyShards()
	})
}

func TestFor(t *testing.T) {
	assert.Nil(t, For(false, "p"))
	assert.NotNil(t, For(true, "p"))
}
