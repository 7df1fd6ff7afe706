// Package ddl parses PostgreSQL DDL into a logical table model and
// classifies statements before they are sent to shards.
package ddl

import (
	"fmt"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// Column is one column of a table, in declaration order.
type Column struct {
	Name         string
	DataType     string
	Nullable     bool
	IsPrimaryKey bool
	IsUnique     bool
}

// Table is the logical shape of one table after all statements are applied.
type Table struct {
	Name    string
	Columns []*Column

	// PrimaryKey lists the primary key columns in key order.
	PrimaryKey []string

	// Indexed lists columns that lead a unique constraint or an index,
	// in the order those were declared. Duplicates are removed.
	Indexed []string
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (t *Table) addIndexed(name string) {
	for _, existing := range t.Indexed {
		if existing == name {
			return
		}
	}
	t.Indexed = append(t.Indexed, name)
}

func (t *Table) addPrimaryKey(name string) {
	for _, existing := range t.PrimaryKey {
		if existing == name {
			return
		}
	}
	t.PrimaryKey = append(t.PrimaryKey, name)
	if c := t.Column(name); c != nil {
		c.IsPrimaryKey = true
		c.Nullable = false
	}
}

// Schema is a set of tables keyed by table name.
type Schema struct {
	Tables map[string]*Table
}

// TableNames returns the table names in sorted order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build parses every script in order and folds the statements into one schema.
// Later scripts see the tables created by earlier ones.
func Build(scripts ...string) (*Schema, error) {
	schema := &Schema{Tables: make(map[string]*Table)}
	for i, script := range scripts {
		if strings.TrimSpace(script) == "" {
			continue
		}
		tree, err := pg_query.Parse(script)
		if err != nil {
			return nil, fmt.Errorf("failed to parse script %d: %w", i+1, err)
		}
		for _, raw := range tree.Stmts {
			schema.apply(raw.Stmt)
		}
	}
	return schema, nil
}

func (s *Schema) table(name string) *Table {
	t, ok := s.Tables[name]
	if !ok {
		t = &Table{Name: name}
		s.Tables[name] = t
	}
	return t
}

func (s *Schema) apply(stmt *pg_query.Node) {
	switch n := stmt.Node.(type) {
	case *pg_query.Node_CreateStmt:
		s.applyCreate(n.CreateStmt)
	case *pg_query.Node_AlterTableStmt:
		s.applyAlter(n.AlterTableStmt)
	case *pg_query.Node_IndexStmt:
		s.applyIndex(n.IndexStmt)
	case *pg_query.Node_DropStmt:
		s.applyDrop(n.DropStmt)
	}
}

func (s *Schema) applyCreate(stmt *pg_query.CreateStmt) {
	t := s.table(stmt.Relation.Relname)
	for _, elt := range stmt.TableElts {
		switch e := elt.Node.(type) {
		case *pg_query.Node_ColumnDef:
			addColumn(t, e.ColumnDef)
		case *pg_query.Node_Constraint:
			applyConstraint(t, e.Constraint)
		}
	}
}

func (s *Schema) applyAlter(stmt *pg_query.AlterTableStmt) {
	// ALTER INDEX, VIEW and SEQUENCE share the statement node.
	if stmt.Objtype != pg_query.ObjectType_OBJECT_TABLE || stmt.Relation == nil {
		return
	}
	t := s.table(stmt.Relation.Relname)
	for _, cmd := range stmt.Cmds {
		c, ok := cmd.Node.(*pg_query.Node_AlterTableCmd)
		if !ok {
			continue
		}
		switch c.AlterTableCmd.Subtype {
		case pg_query.AlterTableType_AT_AddColumn:
			if def, ok := c.AlterTableCmd.Def.GetNode().(*pg_query.Node_ColumnDef); ok {
				addColumn(t, def.ColumnDef)
			}
		case pg_query.AlterTableType_AT_AddConstraint:
			if def, ok := c.AlterTableCmd.Def.GetNode().(*pg_query.Node_Constraint); ok {
				applyConstraint(t, def.Constraint)
			}
		case pg_query.AlterTableType_AT_DropColumn:
			dropColumn(t, c.AlterTableCmd.Name)
		}
	}
}

func (s *Schema) applyIndex(stmt *pg_query.IndexStmt) {
	if stmt.Relation == nil || len(stmt.IndexParams) == 0 {
		return
	}
	elem, ok := stmt.IndexParams[0].Node.(*pg_query.Node_IndexElem)
	if !ok || elem.IndexElem.Name == "" {
		return
	}
	s.table(stmt.Relation.Relname).addIndexed(elem.IndexElem.Name)
}

func (s *Schema) applyDrop(stmt *pg_query.DropStmt) {
	if stmt.RemoveType != pg_query.ObjectType_OBJECT_TABLE {
		return
	}
	for _, obj := range stmt.Objects {
		list, ok := obj.Node.(*pg_query.Node_List)
		if !ok || len(list.List.Items) == 0 {
			continue
		}
		delete(s.Tables, stringOf(list.List.Items[len(list.List.Items)-1]))
	}
}

func addColumn(t *Table, def *pg_query.ColumnDef) {
	col := &Column{
		Name:     def.Colname,
		DataType: typeName(def.TypeName),
		Nullable: true,
	}
	if existing := t.Column(col.Name); existing == nil {
		t.Columns = append(t.Columns, col)
	} else {
		*existing = *col
		col = existing
	}

	for _, c := range def.Constraints {
		con, ok := c.Node.(*pg_query.Node_Constraint)
		if !ok {
			continue
		}
		switch con.Constraint.Contype {
		case pg_query.ConstrType_CONSTR_NOTNULL:
			col.Nullable = false
		case pg_query.ConstrType_CONSTR_PRIMARY:
			t.addPrimaryKey(col.Name)
		case pg_query.ConstrType_CONSTR_UNIQUE:
			col.IsUnique = true
			t.addIndexed(col.Name)
		}
	}
}

func applyConstraint(t *Table, con *pg_query.Constraint) {
	switch con.Contype {
	case pg_query.ConstrType_CONSTR_PRIMARY:
		for _, key := range con.Keys {
			t.addPrimaryKey(stringOf(key))
		}
	case pg_query.ConstrType_CONSTR_UNIQUE:
		if len(con.Keys) == 0 {
			return
		}
		first := stringOf(con.Keys[0])
		if len(con.Keys) == 1 {
			if c := t.Column(first); c != nil {
				c.IsUnique = true
			}
		}
		t.addIndexed(first)
	}
}

func dropColumn(t *Table, name string) {
	cols := t.Columns[:0]
	for _, c := range t.Columns {
		if c.Name != name {
			cols = append(cols, c)
		}
	}
	t.Columns = cols
	t.PrimaryKey = without(t.PrimaryKey, name)
	t.Indexed = without(t.Indexed, name)
}

func without(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func typeName(tn *pg_query.TypeName) string {
	if tn == nil || len(tn.Names) == 0 {
		return ""
	}
	return stringOf(tn.Names[len(tn.Names)-1])
}

func stringOf(n *pg_query.Node) string {
	if n == nil {
		return ""
	}
	if s, ok := n.Node.(*pg_query.Node_String_); ok {
		return s.String_.Sval
	}
	return ""
}
