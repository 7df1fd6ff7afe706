package ddl

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// Report summarizes what a script does.
type Report struct {
	// Statements is the number of statements in the script.
	Statements int

	// NonDDL lists the kinds of data statements found, such as "SELECT".
	NonDDL []string

	// Destructive lists descriptions of statements that drop or truncate data.
	Destructive []string
}

// Classify parses a script and reports data statements and destructive statements.
func Classify(script string) (Report, error) {
	tree, err := pg_query.Parse(script)
	if err != nil {
		return Report{}, fmt.Errorf("failed to parse ddl: %w", err)
	}

	var report Report
	for _, raw := range tree.Stmts {
		report.Statements++
		switch n := raw.Stmt.Node.(type) {
		case *pg_query.Node_SelectStmt:
			report.NonDDL = append(report.NonDDL, "SELECT")
		case *pg_query.Node_InsertStmt:
			report.NonDDL = append(report.NonDDL, "INSERT")
		case *pg_query.Node_UpdateStmt:
			report.NonDDL = append(report.NonDDL, "UPDATE")
		case *pg_query.Node_DeleteStmt:
			report.NonDDL = append(report.NonDDL, "DELETE")
		case *pg_query.Node_TruncateStmt:
			report.Destructive = append(report.Destructive, "TRUNCATE")
		case *pg_query.Node_DropStmt:
			if n.DropStmt.RemoveType == pg_query.ObjectType_OBJECT_TABLE {
				report.Destructive = append(report.Destructive, "DROP TABLE")
			}
		case *pg_query.Node_AlterTableStmt:
			if n.AlterTableStmt.Objtype != pg_query.ObjectType_OBJECT_TABLE {
				continue
			}
			for _, cmd := range n.AlterTableStmt.Cmds {
				c, ok := cmd.Node.(*pg_query.Node_AlterTableCmd)
				if !ok {
					continue
				}
				if c.AlterTableCmd.Subtype == pg_query.AlterTableType_AT_DropColumn {
					report.Destructive = append(report.Destructive,
						fmt.Sprintf("DROP COLUMN %s.%s", n.AlterTableStmt.Relation.Relname, c.AlterTableCmd.Name))
				}
			}
		}
	}

	return report, nil
}

// IsDestructive reports whether the script drops or truncates data.
func (r Report) IsDestructive() bool {
	return len(r.Destructive) > 0
}

// IsDDLOnly reports whether the script contains no data statements.
func (r Report) IsDDLOnly() bool {
	return len(r.NonDDL) == 0
}

// rowKeywords start statements that return rows.
var rowKeywords = []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "VALUES", "TABLE", "PRAGMA", "DESCRIBE"}

// ReturnsRows reports whether a statement is expected to produce a result set.
// Only the leading keyword and a RETURNING clause are inspected; the statement
// is not parsed, since shards may run MySQL or SQLite.
func ReturnsRows(statement string) bool {
	upper := strings.Join(strings.Fields(strings.ToUpper(statement)), " ")
	for strings.HasPrefix(upper, "(") {
		upper = strings.TrimSpace(upper[1:])
	}
	for _, kw := range rowKeywords {
		if strings.HasPrefix(upper, kw) {
			rest := upper[len(kw):]
			if rest == "" || !isIdentChar(rest[0]) {
				return true
			}
		}
	}
	return strings.Contains(upper+" ", " RETURNING ")
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ClassifyText reports data and destructive statements without parsing the
// script. It is used for MySQL and SQLite DDL, which the PostgreSQL grammar
// rejects. Statements are split on semicolons outside quotes and comments and
// judged by their leading keywords.
func ClassifyText(script string) Report {
	var report Report
	for _, stmt := range splitStatements(script) {
		report.Statements++
		words := strings.Fields(stmt)
		switch strings.ToUpper(words[0]) {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE", "WITH", "VALUES", "MERGE", "CALL", "LOAD":
			report.NonDDL = append(report.NonDDL, strings.ToUpper(words[0]))
		case "TRUNCATE":
			report.Destructive = append(report.Destructive, "TRUNCATE")
		case "DROP":
			if len(words) > 1 && strings.EqualFold(words[1], "TABLE") {
				report.Destructive = append(report.Destructive, "DROP TABLE")
			}
		case "ALTER":
			if len(words) > 2 && strings.EqualFold(words[1], "TABLE") {
				report.Destructive = append(report.Destructive, droppedColumns(words[2:])...)
			}
		}
	}
	return report
}

// notColumns follow DROP inside ALTER TABLE without naming a column.
var notColumns = map[string]bool{
	"INDEX": true, "KEY": true, "PRIMARY": true, "FOREIGN": true, "CONSTRAINT": true,
	"CHECK": true, "DEFAULT": true, "PARTITION": true, "NOT": true, "IDENTITY": true, "EXPRESSION": true,
}

// droppedColumns returns a "DROP COLUMN table.column" entry per dropped column.
// words starts after ALTER TABLE.
func droppedColumns(words []string) []string {
	for len(words) > 1 && (strings.EqualFold(words[0], "IF") || strings.EqualFold(words[0], "EXISTS") || strings.EqualFold(words[0], "ONLY")) {
		words = words[1:]
	}
	table := unquote(words[0])

	var dropped []string
	for i := 1; i < len(words)-1; i++ {
		if !strings.EqualFold(words[i], "DROP") {
			continue
		}
		next := i + 1
		if strings.EqualFold(words[next], "COLUMN") {
			next++
		}
		for next < len(words)-1 && (strings.EqualFold(words[next], "IF") || strings.EqualFold(words[next], "EXISTS")) {
			next++
		}
		if next >= len(words) || notColumns[strings.ToUpper(words[next])] {
			continue
		}
		dropped = append(dropped, fmt.Sprintf("DROP COLUMN %s.%s", table, unquote(words[next])))
	}
	return dropped
}

func unquote(word string) string {
	return strings.Trim(word, "`\"[],")
}

// splitStatements splits a script on semicolons, ignoring those inside quoted
// strings, quoted identifiers and comments. Comments are dropped.
func splitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      byte
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		if quote != 0 {
			current.WriteByte(c)
			if c == '\\' && quote != '`' && i+1 < len(script) {
				i++
				current.WriteByte(script[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			current.WriteByte(c)
		case c == '-' && i+1 < len(script) && script[i+1] == '-', c == '#':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			current.WriteByte(' ')
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
			} else {
				i += end + 3
			}
			current.WriteByte(' ')
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return statements
}
