package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/akeren/waitlist-edge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const canonicalTable = `CREATE TABLE waitlist (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	subscribed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestWaitlistRepository_InsertAndDuplicate(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(canonicalTable).Error)

	repo := NewWaitlistRepository(db)
	ctx := context.Background()

	columns, err := repo.Columns(ctx, "waitlist")
	require.NoError(t, err)
	plan, err := schema.PlanInsert("waitlist", columns)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	outcome, err := repo.Insert(ctx, plan, "user@example.com", at)
	require.NoError(t, err)
	assert.Equal(t, Inserted{}, outcome)

	outcome, err = repo.Insert(ctx, plan, "user@example.com", at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Duplicate{}, outcome)

	var count int64
	require.NoError(t, db.Table("waitlist").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWaitlistRepository_InsertWithoutTimestampColumn(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE waitlist (email TEXT PRIMARY KEY)`).Error)

	repo := NewWaitlistRepository(db)
	outcome, err := repo.Insert(context.Background(), &schema.InsertPlan{Table: "waitlist", EmailColumn: "email"}, "a@b.c", time.Now())

	require.NoError(t, err)
	assert.Equal(t, Inserted{}, outcome)
}

func TestWaitlistRepository_ClassifiesSchemaFailures(t *testing.T) {
	tests := []struct {
		name    string
		ddl     string
		plan    *schema.InsertPlan
		message string
	}{
		{
			name:    "missing table",
			plan:    &schema.InsertPlan{Table: "waitlist", EmailColumn: "email"},
			message: "Database schema not initialized",
		},
		{
			name:    "missing column",
			ddl:     `CREATE TABLE waitlist (email TEXT NOT NULL UNIQUE)`,
			plan:    &schema.InsertPlan{Table: "waitlist", EmailColumn: "email", TimestampColumn: "subscribed_at"},
			message: "is missing a column",
		},
		{
			name:    "not-null violation",
			ddl:     `CREATE TABLE waitlist (email TEXT NOT NULL UNIQUE, referrer TEXT NOT NULL)`,
			plan:    &schema.InsertPlan{Table: "waitlist", EmailColumn: "email"},
			message: "has no default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			if tt.ddl != "" {
				require.NoError(t, db.Exec(tt.ddl).Error)
			}

			outcome, err := NewWaitlistRepository(db).Insert(context.Background(), tt.plan, "a@b.c", time.Now())

			require.NoError(t, err)
			schemaErr, ok := outcome.(SchemaError)
			require.True(t, ok, "expected SchemaError, got %T", outcome)
			assert.Contains(t, schemaErr.Message, tt.message)
		})
	}
}

func TestWaitlistRepository_ListOrdersByTimestampDesc(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(canonicalTable).Error)

	repo := NewWaitlistRepository(db)
	plan := &schema.InsertPlan{Table: "waitlist", EmailColumn: "email", TimestampColumn: "subscribed_at"}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, email := range []string{"first@example.com", "second@example.com", "third@example.com"} {
		_, err := repo.Insert(context.Background(), plan, email, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	subscribers, err := repo.List(context.Background(), &schema.SelectPlan{Table: "waitlist", EmailColumn: "email", TimestampColumn: "subscribed_at"})
	require.NoError(t, err)
	require.Len(t, subscribers, 3)

	assert.Equal(t, "third@example.com", subscribers[0].Email)
	assert.Equal(t, "first@example.com", subscribers[2].Email)
	assert.NotEmpty(t, subscribers[0].SubscribedAt)
}

func TestWaitlistRepository_ListOrdersByEmailWithoutTimestamp(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE signups (Email TEXT PRIMARY KEY)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO signups (Email) VALUES ('zed@example.com'), ('amy@example.com')`).Error)

	subscribers, err := NewWaitlistRepository(db).List(context.Background(), &schema.SelectPlan{Table: "signups", EmailColumn: "Email"})
	require.NoError(t, err)

	assert.Equal(t, []Subscriber{{Email: "amy@example.com"}, {Email: "zed@example.com"}}, subscribers)
}

func TestWaitlistRepository_NilDatabase(t *testing.T) {
	repo := NewWaitlistRepository(nil)
	ctx := context.Background()

	_, err := repo.Columns(ctx, "waitlist")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = repo.Insert(ctx, &schema.InsertPlan{Table: "waitlist", EmailColumn: "email"}, "a@b.c", time.Now())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = repo.List(ctx, &schema.SelectPlan{Table: "waitlist", EmailColumn: "email"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", formatTimestamp(nil))
	assert.Equal(t, "2026-03-01T12:00:00Z", formatTimestamp(time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))))
	assert.Equal(t, "2026-03-01 12:00:00", formatTimestamp([]byte("2026-03-01 12:00:00")))
	assert.Equal(t, "2026-03-01 12:00:00", formatTimestamp("2026-03-01 12:00:00"))
}
