package dialect

import (
	"path"
	"strings"
)

// SQLiteDialect reads the main database through the pragma table functions.
// SQLite keeps no constraint names, so the queries derive the default ones.
type SQLiteDialect struct{}

func (d *SQLiteDialect) GetTablesQuery(schema string) string {
	// The schema argument is only bound to satisfy the shared signature.
	return `SELECT m.name FROM sqlite_master m WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL ORDER BY m.name`
}

func (d *SQLiteDialect) GetColumnsQuery(schema string) string {
	// Type arguments only exist in the declared type, e.g. DECIMAL(10,2).
	return `
WITH cols AS (
    SELECT
        m.name AS tbl,
        p.cid AS cid,
        p.name AS col,
        p.type AS typ,
        p."notnull" AS nn,
        p.dflt_value AS dflt,
        p.pk AS pk,
        m.sql AS ddl,
        CASE WHEN instr(p.type, '(') > 0
            THEN substr(p.type, instr(p.type, '(') + 1, instr(p.type, ')') - instr(p.type, '(') - 1)
        END AS args
    FROM sqlite_master m
    JOIN pragma_table_info(m.name) p
    WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
)
SELECT
    tbl,
    col,
    typ,
    CAST(args AS INTEGER),
    CAST(args AS INTEGER),
    CASE WHEN instr(args, ',') > 0 THEN CAST(substr(args, instr(args, ',') + 1) AS INTEGER) END,
    CASE WHEN nn = 0 THEN 'YES' ELSE 'NO' END,
    dflt,
    CASE WHEN pk = 1 AND upper(typ) = 'INTEGER' AND upper(ddl) LIKE '%AUTOINCREMENT%' THEN 'YES' ELSE 'NO' END,
    NULL,
    NULL
FROM cols
ORDER BY tbl, cid`
}

func (d *SQLiteDialect) GetPrimaryKeysQuery(schema string) string {
	return `
SELECT m.name, NULL, p.name, NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND p.pk > 0 AND ? IS NOT NULL
ORDER BY m.name, p.pk`
}

func (d *SQLiteDialect) GetUniqueConstraintsQuery(schema string) string {
	return `
SELECT
    m.name,
    'UQ_' || m.name || '_' || (SELECT group_concat(k.name, '_') FROM pragma_index_info(il.name) k),
    ii.name
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
JOIN pragma_index_info(il.name) ii
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND il.origin = 'u' AND ? IS NOT NULL
ORDER BY m.name, il.seq DESC, ii.seqno`
}

func (d *SQLiteDialect) GetIndexesQuery(schema string) string {
	return `
SELECT
    m.name,
    il.name,
    ii.name,
    CASE WHEN il."unique" = 1 THEN 'YES' ELSE 'NO' END,
    'NO'
FROM sqlite_master m
JOIN pragma_index_list(m.name) il
JOIN pragma_index_info(il.name) ii
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND il.origin = 'c' AND ? IS NOT NULL
ORDER BY m.name, il.seq DESC, ii.seqno`
}

func (d *SQLiteDialect) GetForeignKeysQuery(schema string) string {
	// Rows of one constraint share the id; the name comes from its first column.
	return `
SELECT
    m.name,
    'FK_' || m.name || '_' || (SELECT f."from" FROM pragma_foreign_key_list(m.name) f WHERE f.id = fk.id AND f.seq = 0),
    fk."from",
    NULL,
    fk."table",
    fk."to",
    fk.on_delete,
    fk.on_update
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) fk
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, fk.id, fk.seq`
}

var sqliteTypes = map[string]string{
	"integer":  "INT",
	"int":      "INT",
	"real":     "FLOAT",
	"double":   "FLOAT",
	"numeric":  "DECIMAL",
	"decimal":  "DECIMAL",
	"text":     "NVARCHAR",
	"clob":     "NVARCHAR",
	"blob":     "VARBINARY",
	"boolean":  "BIT",
	"datetime": "DATETIME2",
}

func (d *SQLiteDialect) NormalizeType(sqlType string) string {
	return mapType(sqlType, sqliteTypes)
}

func (d *SQLiteDialect) GetSchemaName(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

// DatabaseName derives a name from the database file, e.g. file:shop.db?mode=ro.
func (d *SQLiteDialect) DatabaseName(dsn string) (string, error) {
	p := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return "", nil
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base)), nil
}
