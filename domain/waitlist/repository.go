package waitlist

//go:generate mockgen -source=repository.go -destination=mock_repository_test.go -package=waitlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akeren/waitlist-edge/pkg/constants"
	apperrors "github.com/akeren/waitlist-edge/pkg/errors"
	"github.com/akeren/waitlist-edge/pkg/schema"
	"gorm.io/gorm"
)

type WaitlistRepository interface {
	// Columns reads the live column definitions of table. No columns and no
	// error means the table does not exist.
	Columns(ctx context.Context, table string) ([]schema.ColumnDescriptor, error)
	// Insert executes plan and classifies store failures it recognizes.
	// Unrecognized failures are returned as errors.
	Insert(ctx context.Context, plan *schema.InsertPlan, email string, at time.Time) (InsertOutcome, error)
	// List returns subscribers newest first, or by email when the table has
	// no timestamp column.
	List(ctx context.Context, plan *schema.SelectPlan) ([]Subscriber, error)
}

type waitlistRepository struct {
	db        *gorm.DB
	inspector schema.Inspector
}

// NewWaitlistRepository accepts a nil db; every call then fails with
// ErrStoreUnavailable.
func NewWaitlistRepository(db *gorm.DB) WaitlistRepository {
	repo := &waitlistRepository{db: db}
	if db != nil {
		repo.inspector = schema.NewInspector(db)
	}
	return repo
}

func (wr *waitlistRepository) Columns(ctx context.Context, table string) ([]schema.ColumnDescriptor, error) {
	if wr.db == nil {
		return nil, ErrStoreUnavailable
	}

	columns, err := wr.inspector.Columns(ctx, table)
	if err != nil {
		return nil, apperrors.NewDatabaseError("unable to read waitlist table columns", err)
	}

	return columns, nil
}

func (wr *waitlistRepository) Insert(ctx context.Context, plan *schema.InsertPlan, email string, at time.Time) (InsertOutcome, error) {
	if wr.db == nil {
		return nil, ErrStoreUnavailable
	}

	values := map[string]interface{}{plan.EmailColumn: email}
	if plan.TimestampColumn != "" {
		values[plan.TimestampColumn] = at.UTC()
	}

	err := wr.db.WithContext(ctx).Table(plan.Table).Create(values).Error
	if err == nil {
		return Inserted{}, nil
	}

	if outcome, ok := classifyWriteError(plan.Table, err); ok {
		return outcome, nil
	}

	return nil, apperrors.NewDatabaseError("unable to insert waitlist entry", err)
}

func (wr *waitlistRepository) List(ctx context.Context, plan *schema.SelectPlan) ([]Subscriber, error) {
	if wr.db == nil {
		return nil, ErrStoreUnavailable
	}

	query := fmt.Sprintf("SELECT %s FROM %s", wr.quote(plan.EmailColumn), wr.quote(plan.Table))
	if plan.TimestampColumn != "" {
		ts := wr.quote(plan.TimestampColumn)
		query = fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s DESC", wr.quote(plan.EmailColumn), ts, wr.quote(plan.Table), ts)
	} else {
		query += fmt.Sprintf(" ORDER BY %s ASC", wr.quote(plan.EmailColumn))
	}

	rows, err := wr.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, classifyReadError(plan.Table, err)
	}
	defer rows.Close()

	subscribers := make([]Subscriber, 0)
	for rows.Next() {
		var (
			email     sql.NullString
			timestamp any
		)

		dest := []any{&email}
		if plan.TimestampColumn != "" {
			dest = append(dest, &timestamp)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewDatabaseError(MessageListFailure, err)
		}

		subscribers = append(subscribers, Subscriber{
			Email:        email.String,
			SubscribedAt: formatTimestamp(timestamp),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError(MessageListFailure, err)
	}

	return subscribers, nil
}

func (wr *waitlistRepository) quote(name string) string {
	var b strings.Builder
	wr.db.Dialector.QuoteTo(&b, name)
	return b.String()
}

func formatTimestamp(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(constants.RFC3339DateTimeFormat)
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}

// classifyWriteError recognizes the failures a drifting schema or a
// concurrent signup produce.
func classifyWriteError(table string, err error) (InsertOutcome, bool) {
	switch {
	case isDuplicateKey(err):
		return Duplicate{}, true
	case apperrors.IsMissingTableError(err):
		return SchemaError{Message: fmt.Sprintf("Database schema not initialized: table %q does not exist", table)}, true
	case apperrors.IsMissingColumnError(err):
		return SchemaError{Message: fmt.Sprintf("Database schema mismatch: table %q is missing a column the insert uses", table)}, true
	case apperrors.IsNotNullViolationError(err):
		return SchemaError{Message: fmt.Sprintf("Database schema mismatch: a required column on table %q has no default", table)}, true
	default:
		return nil, false
	}
}

func classifyReadError(table string, err error) error {
	if outcome, ok := classifyWriteError(table, err); ok {
		if schemaErr, isSchema := outcome.(SchemaError); isSchema {
			return apperrors.NewSchemaMismatchError(schemaErr.Message, err)
		}
	}
	return apperrors.NewDatabaseError(MessageListFailure, err)
}
