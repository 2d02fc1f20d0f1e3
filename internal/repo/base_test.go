package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type note struct {
	ID   uint   `gorm:"primaryKey"`
	Slug string `gorm:"uniqueIndex"`
}

func newTestBase(t *testing.T) Base {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&note{}))
	return NewBase(conn)
}

func count(t *testing.T, base Base) int64 {
	t.Helper()
	var n int64
	require.NoError(t, base.DB(context.Background()).Model(&note{}).Count(&n).Error)
	return n
}

func TestInTxCommits(t *testing.T) {
	base := newTestBase(t)
	err := base.InTx(context.Background(), func(ctx context.Context) error {
		return base.DB(ctx).Create(&note{Slug: "a"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, base))
}

func TestInTxRollsBackOnError(t *testing.T) {
	base := newTestBase(t)
	boom := errors.New("boom")
	err := base.InTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, base.DB(ctx).Create(&note{Slug: "a"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, count(t, base))
}

func TestNestedInTxJoinsOuter(t *testing.T) {
	base := newTestBase(t)
	err := base.InTx(context.Background(), func(outer context.Context) error {
		require.NoError(t, base.InTx(outer, func(inner context.Context) error {
			assert.Same(t, base.DB(outer), base.DB(inner))
			return base.DB(inner).Create(&note{Slug: "inner"}).Error
		}))
		return errors.New("abort outer")
	})
	require.Error(t, err)
	assert.Zero(t, count(t, base), "inner write should roll back with the outer transaction")
}

func TestDBBindsContext(t *testing.T) {
	base := newTestBase(t)
	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	assert.Equal(t, ctx, base.DB(ctx).Statement.Context)
	assert.Same(t, base.db, base.DB(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	base := newTestBase(t)
	ctx := context.Background()
	require.NoError(t, base.DB(ctx).Create(&note{Slug: "dup"}).Error)
	err := base.DB(ctx).Create(&note{Slug: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
}
