// Package schema decides how a waitlist signup can be written into a table whose
// shape is only known at runtime.
package schema

import (
	"fmt"
	"strings"
)

// EmailColumn is the only column every destination table must have.
const EmailColumn = "email"

// TimestampAliases lists the accepted names for the signup time column, highest
// priority first.
var TimestampAliases = []string{"subscribed_at", "created_at", "joined_at"}

// ColumnDescriptor is one column of the destination table as reported by the store.
type ColumnDescriptor struct {
	Name         string
	IsRequired   bool // NOT NULL without a default
	HasDefault   bool
	IsPrimaryKey bool
}

// InsertPlan is the minimal insert the table can accept.
type InsertPlan struct {
	Table           string
	EmailColumn     string
	TimestampColumn string // empty when the table has no accepted alias
}

// SelectPlan describes how to read subscribers back.
type SelectPlan struct {
	Table           string
	EmailColumn     string
	TimestampColumn string
}

// MismatchError reports that the live table cannot take the minimal insert.
type MismatchError struct {
	Table   string
	Message string
}

func (e *MismatchError) Error() string {
	return e.Message
}

func mismatch(table, format string, args ...any) *MismatchError {
	return &MismatchError{Table: table, Message: fmt.Sprintf(format, args...)}
}

type resolvedColumns struct {
	email     *ColumnDescriptor
	timestamp *ColumnDescriptor
}

func resolve(table string, columns []ColumnDescriptor) (resolvedColumns, error) {
	var out resolvedColumns

	if len(columns) == 0 {
		return out, mismatch(table, "Database schema not initialized: table %q does not exist", table)
	}

	byName := make(map[string]*ColumnDescriptor, len(columns))
	for i := range columns {
		key := strings.ToLower(strings.TrimSpace(columns[i].Name))
		if _, seen := byName[key]; !seen {
			byName[key] = &columns[i]
		}
	}

	email, ok := byName[EmailColumn]
	if !ok {
		return out, mismatch(table, "Database schema mismatch: table %q has no %q column", table, EmailColumn)
	}
	out.email = email

	for _, alias := range TimestampAliases {
		if col, ok := byName[alias]; ok {
			out.timestamp = col
			break
		}
	}

	return out, nil
}

// PlanInsert is the column decision table: it accepts the table only if every
// column the insert does not bind can be filled by the store on its own.
func PlanInsert(table string, columns []ColumnDescriptor) (*InsertPlan, error) {
	resolved, err := resolve(table, columns)
	if err != nil {
		return nil, err
	}

	plan := &InsertPlan{Table: table, EmailColumn: resolved.email.Name}
	if resolved.timestamp != nil {
		plan.TimestampColumn = resolved.timestamp.Name
	}

	var unfillable []string
	for _, col := range columns {
		if strings.EqualFold(col.Name, plan.EmailColumn) {
			continue
		}
		if plan.TimestampColumn != "" && strings.EqualFold(col.Name, plan.TimestampColumn) {
			continue
		}
		if col.IsRequired && !col.HasDefault && !col.IsPrimaryKey {
			unfillable = append(unfillable, col.Name)
		}
	}

	if len(unfillable) > 0 {
		return nil, mismatch(table, "Database schema mismatch: required column(s) %s on table %q have no default", strings.Join(unfillable, ", "), table)
	}

	return plan, nil
}

// PlanSelect resolves the columns used when listing subscribers.
func PlanSelect(table string, columns []ColumnDescriptor) (*SelectPlan, error) {
	resolved, err := resolve(table, columns)
	if err != nil {
		return nil, err
	}

	plan := &SelectPlan{Table: table, EmailColumn: resolved.email.Name}
	if resolved.timestamp != nil {
		plan.TimestampColumn = resolved.timestamp.Name
	}
	return plan, nil
}
