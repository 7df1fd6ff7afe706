package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_CreateTable(t *testing.T) {
	schema, err := Build(`
		CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT
		);
	`)
	require.NoError(t, err)

	users := schema.Tables["users"]
	require.NotNil(t, users)
	require.Len(t, users.Columns, 3)
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	assert.Equal(t, []string{"email"}, users.Indexed)

	id := users.Column("id")
	require.NotNil(t, id)
	assert.True(t, id.IsPrimaryKey)
	assert.Equal(t, "int8", id.DataType)

	email := users.Column("email")
	require.NotNil(t, email)
	assert.False(t, email.Nullable)
	assert.True(t, email.IsUnique)

	assert.True(t, users.Column("name").Nullable)
}

func TestBuild_TableLevelConstraints(t *testing.T) {
	schema, err := Build(`
		CREATE TABLE order_items (
			order_id INT NOT NULL,
			line INT NOT NULL,
			sku TEXT,
			PRIMARY KEY (order_id, line),
			UNIQUE (sku)
		);
	`)
	require.NoError(t, err)

	items := schema.Tables["order_items"]
	assert.Equal(t, []string{"order_id", "line"}, items.PrimaryKey)
	assert.Equal(t, []string{"sku"}, items.Indexed)
	assert.True(t, items.Column("line").IsPrimaryKey)
}

func TestBuild_IndexesAndAlters(t *testing.T) {
	schema, err := Build(
		`CREATE TABLE events (payload TEXT, tenant_id INT);`,
		`CREATE INDEX idx_events_tenant ON events (tenant_id);
		 ALTER TABLE events ADD COLUMN id BIGINT;
		 ALTER TABLE events ADD CONSTRAINT events_pk PRIMARY KEY (id);`,
	)
	require.NoError(t, err)

	events := schema.Tables["events"]
	require.Len(t, events.Columns, 3)
	assert.Equal(t, []string{"tenant_id"}, events.Indexed)
	assert.Equal(t, []string{"id"}, events.PrimaryKey)
}

func TestBuild_DropTableAndColumn(t *testing.T) {
	schema, err := Build(
		`CREATE TABLE a (id INT PRIMARY KEY, note TEXT UNIQUE); CREATE TABLE b (id INT);`,
		`DROP TABLE b; ALTER TABLE a DROP COLUMN note;`,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, schema.TableNames())
	assert.Nil(t, schema.Tables["a"].Column("note"))
	assert.Empty(t, schema.Tables["a"].Indexed)
}

func TestBuild_AlterOnNonTableObjects(t *testing.T) {
	schema, err := Build(`
		CREATE TABLE orders (id INT PRIMARY KEY);
		CREATE INDEX orders_idx ON orders (id);
		ALTER INDEX orders_idx SET (fillfactor = 70);
		CREATE SEQUENCE order_numbers;
		ALTER SEQUENCE order_numbers OWNED BY orders.id;
		CREATE VIEW recent_orders AS SELECT id FROM orders;
		ALTER VIEW recent_orders SET (security_barrier = true);
	`)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, schema.TableNames())
	assert.Equal(t, []string{"id"}, schema.Tables["orders"].PrimaryKey)
}

func TestBuild_SkipsEmptyScripts(t *testing.T) {
	schema, err := Build("", "   ", "CREATE TABLE t (id INT)")
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, schema.TableNames())
}

func TestBuild_ParseError(t *testing.T) {
	_, err := Build("CREATE TABLE (")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		ddlOnly     bool
		destructive bool
	}{
		{name: "create table", script: "CREATE TABLE t (id INT)", ddlOnly: true},
		{name: "add column", script: "ALTER TABLE t ADD COLUMN x INT", ddlOnly: true},
		{name: "drop table", script: "DROP TABLE t", ddlOnly: true, destructive: true},
		{name: "drop column", script: "ALTER TABLE t DROP COLUMN x", ddlOnly: true, destructive: true},
		{name: "truncate", script: "TRUNCATE t", ddlOnly: true, destructive: true},
		{name: "drop index is not destructive", script: "DROP INDEX idx_t", ddlOnly: true},
		{name: "insert", script: "CREATE TABLE t (id INT); INSERT INTO t VALUES (1)", ddlOnly: false},
		{name: "select", script: "SELECT 1", ddlOnly: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Classify(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.ddlOnly, report.IsDDLOnly())
			assert.Equal(t, tt.destructive, report.IsDestructive())
		})
	}

	t.Run("counts statements", func(t *testing.T) {
		report, err := Classify("CREATE TABLE a (id INT); CREATE TABLE b (id INT);")
		require.NoError(t, err)
		assert.Equal(t, 2, report.Statements)
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := Classify("CREATE TABLE (")
		assert.Error(t, err)
	})
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, ReturnsRows("select * from t"))
	assert.True(t, ReturnsRows("  WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, ReturnsRows("(SELECT 1)"))
	assert.True(t, ReturnsRows("SHOW server_version"))
	assert.True(t, ReturnsRows("INSERT INTO t (id) VALUES (1) RETURNING id"))
	assert.True(t, ReturnsRows("DELETE FROM t\nRETURNING\n*"))

	assert.False(t, ReturnsRows("CREATE TABLE t (id INT)"))
	assert.False(t, ReturnsRows("INSERT INTO t (id) VALUES (1)"))
	assert.False(t, ReturnsRows("UPDATE selections SET x = 1"))
	assert.False(t, ReturnsRows("CREATE TABLE tablespaces (id INT)"))
}

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name        string
		script      string
		statements  int
		nonDDL      []string
		destructive []string
	}{
		{
			name:       "mysql create table",
			script:     "CREATE TABLE `t` (id INT AUTO_INCREMENT PRIMARY KEY) ENGINE=InnoDB;",
			statements: 1,
		},
		{
			name:       "sqlite create table",
			script:     "CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT); CREATE INDEX t_idx ON t (id);",
			statements: 2,
		},
		{
			name:       "semicolons in strings and comments",
			script:     "CREATE TABLE t (note TEXT DEFAULT 'a;b') COMMENT = \"x;y\"; -- trailing; comment\n/* block; */ CREATE TABLE u (id INT)",
			statements: 2,
		},
		{
			name:       "data statements",
			script:     "CREATE TABLE t (id INT); insert INTO t VALUES (1); REPLACE INTO t VALUES (2); select 1",
			statements: 4,
			nonDDL:     []string{"INSERT", "REPLACE", "SELECT"},
		},
		{
			name:        "drop table and truncate",
			script:      "DROP TABLE t; TRUNCATE TABLE u",
			statements:  2,
			destructive: []string{"DROP TABLE", "TRUNCATE"},
		},
		{
			name:        "drop columns",
			script:      "ALTER TABLE `orders` DROP COLUMN note, DROP total, DROP INDEX orders_idx",
			statements:  1,
			destructive: []string{"DROP COLUMN orders.note", "DROP COLUMN orders.total"},
		},
		{
			name:       "drop default and index are not destructive",
			script:     "ALTER TABLE t ALTER COLUMN x DROP DEFAULT; DROP INDEX t_idx ON t",
			statements: 2,
		},
		{
			name:   "comments only",
			script: "-- nothing here\n/* or here */",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ClassifyText(tt.script)
			assert.Equal(t, tt.statements, report.Statements)
			assert.Equal(t, tt.nonDDL, report.NonDDL)
			assert.Equal(t, tt.destructive, report.Destructive)
		})
	}
}
