package dialect

// Dialect abstracts the catalog of one database engine. Every query takes the
// schema (or database) being imported as its only bind parameter.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	//
	// Tables:       table_name
	// Columns:      table_name, column_name, data_type, char_length, precision, scale,
	//               is_nullable, column_default, is_identity, identity_seed, identity_increment
	// PrimaryKeys:  table_name, constraint_name, column_name, is_clustered
	// Uniques:      table_name, constraint_name, column_name
	// Indexes:      table_name, index_name, column_name, is_unique, is_clustered
	// ForeignKeys:  table_name, constraint_name, column_name, ref_schema, ref_table,
	//               ref_column, delete_rule, update_rule
	//
	// Flags come back as 'YES'/'NO'. Multi-column structures are ordered by
	// their key position.
	GetTablesQuery(schema string) string
	GetColumnsQuery(schema string) string
	GetPrimaryKeysQuery(schema string) string
	GetUniqueConstraintsQuery(schema string) string
	GetIndexesQuery(schema string) string
	GetForeignKeysQuery(schema string) string

	// Helpers
	NormalizeType(sqlType string) string // engine type -> T-SQL base type
	GetSchemaName(input string) string
	DatabaseName(dsn string) (string, error)
}
