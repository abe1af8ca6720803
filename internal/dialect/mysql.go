package dialect

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MysqlDialect treats the MySQL database as the schema being imported.
type MysqlDialect struct{}

func (d *MysqlDialect) GetTablesQuery(schema string) string {
	return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"
}

func (d *MysqlDialect) GetColumnsQuery(schema string) string {
	// MySQL has no identity seed; auto_increment maps to IDENTITY(1,1).
	return `SELECT
    TABLE_NAME,
    COLUMN_NAME,
    DATA_TYPE,
    CHARACTER_MAXIMUM_LENGTH,
    NUMERIC_PRECISION,
    NUMERIC_SCALE,
    IS_NULLABLE,
    COLUMN_DEFAULT,
    CASE WHEN EXTRA LIKE '%auto_increment%' THEN 'YES' ELSE 'NO' END,
    NULL,
    NULL
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetPrimaryKeysQuery(schema string) string {
	// Every MySQL primary key is named PRIMARY; NULL lets the analyzer name it.
	// InnoDB always clusters on the primary key.
	return `SELECT TABLE_NAME, NULL, COLUMN_NAME, 'YES'
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = ? AND CONSTRAINT_NAME = 'PRIMARY'
ORDER BY TABLE_NAME, ORDINAL_POSITION`
}

func (d *MysqlDialect) GetUniqueConstraintsQuery(schema string) string {
	return `SELECT kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
    ON kcu.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
    AND kcu.TABLE_NAME = tc.TABLE_NAME
    AND kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
WHERE tc.TABLE_SCHEMA = ? AND tc.CONSTRAINT_TYPE = 'UNIQUE'
ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
}

func (d *MysqlDialect) GetIndexesQuery(schema string) string {
	// Unique constraints are unique indexes in MySQL and come from the query above.
	return `SELECT s.TABLE_NAME, s.INDEX_NAME, s.COLUMN_NAME, 'NO', 'NO'
FROM INFORMATION_SCHEMA.STATISTICS s
WHERE s.TABLE_SCHEMA = ? AND s.INDEX_NAME <> 'PRIMARY' AND s.NON_UNIQUE = 1
ORDER BY s.TABLE_NAME, s.INDEX_NAME, s.SEQ_IN_INDEX`
}

func (d *MysqlDialect) GetForeignKeysQuery(schema string) string {
	return `SELECT
    kcu.TABLE_NAME,
    kcu.CONSTRAINT_NAME,
    kcu.COLUMN_NAME,
    kcu.REFERENCED_TABLE_SCHEMA,
    kcu.REFERENCED_TABLE_NAME,
    kcu.REFERENCED_COLUMN_NAME,
    rc.DELETE_RULE,
    rc.UPDATE_RULE
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
    ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
WHERE kcu.TABLE_SCHEMA = ? AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
}

var mysqlTypes = map[string]string{
	"tinyint":    "TINYINT",
	"smallint":   "SMALLINT",
	"mediumint":  "INT",
	"int":        "INT",
	"integer":    "INT",
	"bigint":     "BIGINT",
	"double":     "FLOAT",
	"float":      "REAL",
	"decimal":    "DECIMAL",
	"char":       "NCHAR",
	"varchar":    "NVARCHAR",
	"tinytext":   "NVARCHAR",
	"text":       "NVARCHAR",
	"mediumtext": "NVARCHAR",
	"longtext":   "NVARCHAR",
	"json":       "NVARCHAR",
	"enum":       "NVARCHAR",
	"set":        "NVARCHAR",
	"tinyblob":   "VARBINARY",
	"blob":       "VARBINARY",
	"mediumblob": "VARBINARY",
	"longblob":   "VARBINARY",
	"datetime":   "DATETIME2",
	"timestamp":  "DATETIME2",
	"year":       "SMALLINT",
}

func (d *MysqlDialect) NormalizeType(sqlType string) string {
	return mapType(sqlType, mysqlTypes)
}

func (d *MysqlDialect) GetSchemaName(input string) string {
	return DefaultGetSchemaName(input)
}

func (d *MysqlDialect) DatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	return cfg.DBName, nil
}
