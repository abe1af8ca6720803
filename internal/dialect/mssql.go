package dialect

import (
	"fmt"

	"github.com/microsoft/go-mssqldb/msdsn"
)

type MSSQLDialect struct{}

// go-mssqldb binds positional parameters as @p1, @p2 ...

func (d *MSSQLDialect) GetTablesQuery(schema string) string {
	return `
		SELECT t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1 AND t.is_ms_shipped = 0
		ORDER BY t.object_id`
}

func (d *MSSQLDialect) GetColumnsQuery(schema string) string {
	// max_length is in bytes: -1 for (MAX), halved for the N-types.
	return `
		SELECT
			t.name,
			c.name,
			ty.name,
			CASE
				WHEN c.max_length = -1 THEN -1
				WHEN ty.name IN ('text', 'ntext', 'image') THEN -1
				WHEN ty.name IN ('nchar', 'nvarchar') THEN c.max_length / 2
				ELSE c.max_length
			END,
			c.precision,
			c.scale,
			CASE WHEN c.is_nullable = 1 THEN 'YES' ELSE 'NO' END,
			dc.definition,
			CASE WHEN c.is_identity = 1 THEN 'YES' ELSE 'NO' END,
			CAST(ic.seed_value AS BIGINT),
			CAST(ic.increment_value AS BIGINT)
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		LEFT JOIN sys.identity_columns ic ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		WHERE s.name = @p1 AND t.is_ms_shipped = 0
		ORDER BY t.object_id, c.column_id`
}

func (d *MSSQLDialect) GetPrimaryKeysQuery(schema string) string {
	return `
		SELECT
			t.name,
			kc.name,
			c.name,
			CASE WHEN i.type = 1 THEN 'YES' ELSE 'NO' END
		FROM sys.key_constraints kc
		JOIN sys.tables t ON t.object_id = kc.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.indexes i ON i.object_id = kc.parent_object_id AND i.index_id = kc.unique_index_id
		JOIN sys.index_columns icol ON icol.object_id = i.object_id AND icol.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = icol.object_id AND c.column_id = icol.column_id
		WHERE kc.type = 'PK' AND s.name = @p1
		ORDER BY t.object_id, icol.key_ordinal`
}

func (d *MSSQLDialect) GetUniqueConstraintsQuery(schema string) string {
	return `
		SELECT
			t.name,
			kc.name,
			c.name
		FROM sys.key_constraints kc
		JOIN sys.tables t ON t.object_id = kc.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns icol ON icol.object_id = kc.parent_object_id AND icol.index_id = kc.unique_index_id
		JOIN sys.columns c ON c.object_id = icol.object_id AND c.column_id = icol.column_id
		WHERE kc.type = 'UQ' AND s.name = @p1
		ORDER BY t.object_id, kc.object_id, icol.key_ordinal`
}

func (d *MSSQLDialect) GetIndexesQuery(schema string) string {
	// Constraint-backed indexes are reported by the key queries.
	return `
		SELECT
			t.name,
			i.name,
			c.name,
			CASE WHEN i.is_unique = 1 THEN 'YES' ELSE 'NO' END,
			CASE WHEN i.type = 1 THEN 'YES' ELSE 'NO' END
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns icol ON icol.object_id = i.object_id AND icol.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = icol.object_id AND c.column_id = icol.column_id
		WHERE s.name = @p1
			AND i.is_primary_key = 0
			AND i.is_unique_constraint = 0
			AND i.is_hypothetical = 0
			AND i.type IN (1, 2)
			AND icol.is_included_column = 0
		ORDER BY t.object_id, i.index_id, icol.key_ordinal`
}

func (d *MSSQLDialect) GetForeignKeysQuery(schema string) string {
	return `
		SELECT
			t.name,
			fk.name,
			c.name,
			rs.name,
			rt.name,
			rc.name,
			fk.delete_referential_action_desc,
			fk.update_referential_action_desc
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables t ON t.object_id = fk.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.columns c ON c.object_id = fkc.parent_object_id AND c.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE s.name = @p1
		ORDER BY t.object_id, fk.object_id, fkc.constraint_column_id`
}

var mssqlTypes = map[string]string{
	"sysname": "NVARCHAR",
	"text":    "VARCHAR",
	"ntext":   "NVARCHAR",
	"image":   "VARBINARY",
}

func (d *MSSQLDialect) NormalizeType(sqlType string) string {
	return mapType(sqlType, mssqlTypes)
}

func (d *MSSQLDialect) GetSchemaName(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

// DatabaseName reads the initial catalog from any connection string form the
// driver accepts (sqlserver:// URL, ADO or ODBC).
func (d *MSSQLDialect) DatabaseName(dsn string) (string, error) {
	cfg, err := msdsn.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse sqlserver dsn: %w", err)
	}
	return cfg.Database, nil
}
