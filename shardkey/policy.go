// Package shardkey infers a sharding column per table from the applied
// schema and merges the result with user overrides.
package shardkey

import (
	"sort"
	"time"

	"github.com/getpup/sharding-orchestrator"
	"github.com/getpup/sharding-orchestrator/ddl"
)

// Infer picks the shard key of a table: the first primary key column, else the
// first column leading a unique constraint or index. It reports false when the
// table has neither.
func Infer(table *ddl.Table) (string, bool) {
	if len(table.PrimaryKey) > 0 {
		return table.PrimaryKey[0], true
	}
	if len(table.Indexed) > 0 {
		return table.Indexed[0], true
	}
	return "", false
}

// Candidates maps every table of a schema to its inferred column.
// Tables without a candidate map to "".
type Candidates map[string]string

// CandidatesFor runs Infer over every table of the schema.
func CandidatesFor(schema *ddl.Schema) Candidates {
	candidates := make(Candidates, len(schema.Tables))
	for name, table := range schema.Tables {
		column, _ := Infer(table)
		candidates[name] = column
	}
	return candidates
}

// Merge combines existing records with fresh candidates, keyed by table name.
//
// Manual overrides are kept as they are. Other records take the candidate
// column. Tables missing from candidates lose their record, and tables without
// a candidate get none unless they carry an override. Records whose content is
// unchanged keep their UpdatedAt; changed and new ones get now.
// The result is sorted by table name.
func Merge(existing []sharding.ShardKeyRecord, candidates Candidates, now time.Time) []sharding.ShardKeyRecord {
	byTable := make(map[string]sharding.ShardKeyRecord, len(existing))
	for _, r := range existing {
		byTable[r.TableName] = r
	}

	merged := make([]sharding.ShardKeyRecord, 0, len(candidates))
	for table, column := range candidates {
		prev, had := byTable[table]

		switch {
		case had && prev.IsManualOverride:
			merged = append(merged, prev)
		case column == "":
		case had && prev.ShardKeyColumn == column:
			merged = append(merged, prev)
		default:
			merged = append(merged, sharding.ShardKeyRecord{
				ProjectID:      prev.ProjectID,
				TableName:      table,
				ShardKeyColumn: column,
				UpdatedAt:      now,
			})
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TableName < merged[j].TableName
	})
	return merged
}
