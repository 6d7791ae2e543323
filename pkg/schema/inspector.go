package schema

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// Inspector reads the live column definitions of a table.
type Inspector interface {
	Columns(ctx context.Context, table string) ([]ColumnDescriptor, error)
}

type gormInspector struct {
	db *gorm.DB
}

func NewInspector(db *gorm.DB) Inspector {
	return &gormInspector{db: db}
}

const sqliteColumnsQuery = `SELECT name, "notnull", dflt_value, pk FROM pragma_table_info(?)`

const postgresColumnsQuery = `
SELECT
	c.column_name,
	c.is_nullable = 'NO' AS not_null,
	(c.column_default IS NOT NULL OR c.is_identity = 'YES' OR c.is_generated = 'ALWAYS') AS has_default,
	EXISTS (
		SELECT 1
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name
			AND k.table_schema = tc.table_schema
			AND k.table_name = tc.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	) AS is_pk
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = ?
ORDER BY c.ordinal_position`

// Columns returns no rows and no error when the table does not exist.
func (i *gormInspector) Columns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	switch dialect := i.db.Dialector.Name(); dialect {
	case "sqlite":
		return i.sqliteColumns(ctx, table)
	case "postgres":
		return i.postgresColumns(ctx, table)
	default:
		return nil, fmt.Errorf("column introspection is not supported for dialect %q", dialect)
	}
}

func (i *gormInspector) sqliteColumns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	rows, err := i.db.WithContext(ctx).Raw(sqliteColumnsQuery, table).Rows()
	if err != nil {
		return nil, fmt.Errorf("read sqlite table info for %q: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnDescriptor
	for rows.Next() {
		var (
			name    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&name, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan sqlite table info for %q: %w", table, err)
		}
		columns = append(columns, ColumnDescriptor{
			Name:         name,
			IsRequired:   notNull == 1 && !dflt.Valid,
			HasDefault:   dflt.Valid,
			IsPrimaryKey: pk > 0,
		})
	}

	return columns, rows.Err()
}

func (i *gormInspector) postgresColumns(ctx context.Context, table string) ([]ColumnDescriptor, error) {
	rows, err := i.db.WithContext(ctx).Raw(postgresColumnsQuery, table).Rows()
	if err != nil {
		return nil, fmt.Errorf("read postgres columns for %q: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnDescriptor
	for rows.Next() {
		var (
			name       string
			notNull    bool
			hasDefault bool
			isPK       bool
		)
		if err := rows.Scan(&name, &notNull, &hasDefault, &isPK); err != nil {
			return nil, fmt.Errorf("scan postgres columns for %q: %w", table, err)
		}
		columns = append(columns, ColumnDescriptor{
			Name:         name,
			IsRequired:   notNull && !hasDefault,
			HasDefault:   hasDefault,
			IsPrimaryKey: isPK,
		})
	}

	return columns, rows.Err()
}
