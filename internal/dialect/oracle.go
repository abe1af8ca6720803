package dialect

import (
	"fmt"
	"net/url"
	"strings"
)

// OracleDialect reads the tables owned by the connected user. The schema
// argument only satisfies the shared bind signature.
type OracleDialect struct{}

func (d *OracleDialect) GetTablesQuery(schema string) string {
	// USER_TABLES lists tables owned by the current user.
	// We include a dummy clause to consume the schema argument if passed by standard callers.
	return `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL ORDER BY TABLE_NAME`
}

func (d *OracleDialect) GetColumnsQuery(schema string) string {
	// NUMBER without scale becomes an integer type sized by its precision.
	return `
SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) = 0 AND t.DATA_PRECISION IS NOT NULL AND t.DATA_PRECISION <= 9 THEN 'INTEGER'
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) = 0 AND t.DATA_PRECISION IS NOT NULL AND t.DATA_PRECISION <= 18 THEN 'BIGINT'
        ELSE t.DATA_TYPE
    END,
    CASE WHEN t.CHAR_USED IS NOT NULL THEN t.CHAR_LENGTH ELSE NULL END,
    t.DATA_PRECISION,
    t.DATA_SCALE,
    CASE WHEN t.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
    t.DATA_DEFAULT,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'YES' ELSE 'NO' END,
    NULL,
    NULL
FROM USER_TAB_COLUMNS t
JOIN USER_TABLES ut ON ut.TABLE_NAME = t.TABLE_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`
}

func (d *OracleDialect) GetPrimaryKeysQuery(schema string) string {
	// Index-organized tables are the Oracle counterpart of a clustered key.
	return `
SELECT
    cc.TABLE_NAME,
    uc.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    CASE WHEN ut.IOT_TYPE = 'IOT' THEN 'YES' ELSE 'NO' END
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
JOIN USER_TABLES ut ON ut.TABLE_NAME = cc.TABLE_NAME
WHERE uc.CONSTRAINT_TYPE = 'P' AND :1 IS NOT NULL
ORDER BY cc.TABLE_NAME, cc.POSITION`
}

func (d *OracleDialect) GetUniqueConstraintsQuery(schema string) string {
	return `
SELECT cc.TABLE_NAME, uc.CONSTRAINT_NAME, cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'U' AND :1 IS NOT NULL
ORDER BY cc.TABLE_NAME, uc.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) GetIndexesQuery(schema string) string {
	return `
SELECT
    i.TABLE_NAME,
    i.INDEX_NAME,
    ic.COLUMN_NAME,
    CASE WHEN i.UNIQUENESS = 'UNIQUE' THEN 'YES' ELSE 'NO' END,
    'NO'
FROM USER_INDEXES i
JOIN USER_IND_COLUMNS ic ON ic.INDEX_NAME = i.INDEX_NAME
WHERE i.INDEX_TYPE = 'NORMAL'
    AND NOT EXISTS (SELECT 1 FROM USER_CONSTRAINTS c WHERE c.INDEX_NAME = i.INDEX_NAME)
    AND :1 IS NOT NULL
ORDER BY i.TABLE_NAME, i.INDEX_NAME, ic.COLUMN_POSITION`
}

func (d *OracleDialect) GetForeignKeysQuery(schema string) string {
	// Oracle has no ON UPDATE actions.
	return `
SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    NULL,
    r.TABLE_NAME AS REF_TABLE,
    rcc.COLUMN_NAME AS REF_COLUMN,
    c.DELETE_RULE,
    NULL
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R'
AND :1 IS NOT NULL
ORDER BY c.TABLE_NAME, c.CONSTRAINT_NAME, cc.POSITION`
}

var oracleTypes = map[string]string{
	"integer":                        "INT",
	"number":                         "DECIMAL",
	"float":                          "FLOAT",
	"binary_float":                   "REAL",
	"binary_double":                  "FLOAT",
	"char":                           "CHAR",
	"nchar":                          "NCHAR",
	"varchar2":                       "VARCHAR",
	"nvarchar2":                      "NVARCHAR",
	"clob":                           "NVARCHAR",
	"nclob":                          "NVARCHAR",
	"long":                           "NVARCHAR",
	"blob":                           "VARBINARY",
	"raw":                            "VARBINARY",
	"date":                           "DATETIME2",
	"timestamp":                      "DATETIME2",
	"timestamp with time zone":       "DATETIMEOFFSET",
	"timestamp with local time zone": "DATETIMEOFFSET",
}

func (d *OracleDialect) NormalizeType(sqlType string) string {
	// TIMESTAMP(6) WITH TIME ZONE carries its precision in the middle.
	s := strings.ToLower(sqlType)
	if i := strings.IndexByte(s, '('); i >= 0 {
		if j := strings.IndexByte(s[i:], ')'); j >= 0 {
			s = s[:i] + s[i+j+1:]
		}
	}
	return mapType(s, oracleTypes)
}

func (d *OracleDialect) GetSchemaName(input string) string {
	return strings.ToUpper(input)
}

// DatabaseName returns the service name of an oracle:// URL.
func (d *OracleDialect) DatabaseName(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse oracle url: %w", err)
	}
	return strings.Trim(u.Path, "/"), nil
}
