package dialect

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type PostgresDialect struct{}

func (d *PostgresDialect) GetTablesQuery(schema string) string {
	// use $1 placeholder
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
}

func (d *PostgresDialect) GetColumnsQuery(schema string) string {
	// serial columns surface as nextval() defaults and are reported as identities.
	return `SELECT
    c.table_name,
    c.column_name,
    c.udt_name,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    c.is_nullable,
    CASE WHEN c.column_default LIKE 'nextval(%' THEN NULL ELSE c.column_default END,
    CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN 'YES' ELSE 'NO' END,
    c.identity_start,
    c.identity_increment
FROM information_schema.columns c
JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`
}

func (d *PostgresDialect) GetPrimaryKeysQuery(schema string) string {
	// Postgres has no clustered primary keys; NULL lets the analyzer pick the default.
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, NULL
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name
WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.table_name, kcu.ordinal_position`
}

func (d *PostgresDialect) GetUniqueConstraintsQuery(schema string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name
WHERE tc.table_schema = $1 AND tc.constraint_type = 'UNIQUE'
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) GetIndexesQuery(schema string) string {
	return `SELECT
    t.relname,
    i.relname,
    a.attname,
    CASE WHEN ix.indisunique THEN 'YES' ELSE 'NO' END,
    CASE WHEN ix.indisclustered THEN 'YES' ELSE 'NO' END
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1
    AND NOT ix.indisprimary
    AND NOT EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid)
ORDER BY t.relname, i.relname, k.ord`
}

func (d *PostgresDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT
    kcu.table_name,
    kcu.constraint_name,
    kcu.column_name,
    ref.table_schema,
    ref.table_name,
    ref.column_name,
    rc.delete_rule,
    rc.update_rule
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_schema = rc.constraint_schema AND kcu.constraint_name = rc.constraint_name
JOIN information_schema.key_column_usage ref
    ON ref.constraint_schema = rc.unique_constraint_schema
    AND ref.constraint_name = rc.unique_constraint_name
    AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE kcu.table_schema = $1
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

var postgresTypes = map[string]string{
	"int2":        "SMALLINT",
	"int4":        "INT",
	"int8":        "BIGINT",
	"float4":      "REAL",
	"float8":      "FLOAT",
	"bool":        "BIT",
	"bpchar":      "NCHAR",
	"varchar":     "NVARCHAR",
	"text":        "NVARCHAR",
	"citext":      "NVARCHAR",
	"json":        "NVARCHAR",
	"jsonb":       "NVARCHAR",
	"xml":         "XML",
	"numeric":     "DECIMAL",
	"money":       "MONEY",
	"uuid":        "UNIQUEIDENTIFIER",
	"bytea":       "VARBINARY",
	"date":        "DATE",
	"time":        "TIME",
	"timestamp":   "DATETIME2",
	"timestamptz": "DATETIMEOFFSET",
}

func (d *PostgresDialect) NormalizeType(sqlType string) string {
	return mapType(sqlType, postgresTypes)
}

func (d *PostgresDialect) GetSchemaName(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

// DatabaseName accepts both postgres:// URLs and key=value connection strings.
func (d *PostgresDialect) DatabaseName(dsn string) (string, error) {
	conninfo := dsn
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		var err error
		if conninfo, err = pq.ParseURL(dsn); err != nil {
			return "", fmt.Errorf("failed to parse postgres url: %w", err)
		}
	}
	for _, field := range strings.Fields(conninfo) {
		k, v, ok := strings.Cut(field, "=")
		if ok && k == "dbname" {
			return strings.Trim(v, "'"), nil
		}
	}
	return "", nil
}
