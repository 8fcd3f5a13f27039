package conn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsAffectedCount(t *testing.T) {
	ctx := context.Background()
	c, rec := openFake(t, nil)

	affected, err := c.Execute(ctx, "DELETE FROM t WHERE id = 1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, 1, rec.count("exec:DELETE FROM t WHERE id = 1"))
}

func TestExecuteWrapsDriverError(t *testing.T) {
	ctx := context.Background()
	c, _ := openFake(t, map[string]error{"exec:BROKEN": errors.New("syntax error")})

	_, err := c.Execute(ctx, "BROKEN STATEMENT")
	require.ErrorIs(t, err, ErrStatement)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestExecuteOnClosedConn(t *testing.T) {
	ctx := context.Background()
	c, _ := openFake(t, nil)
	require.NoError(t, c.Close())

	_, err := c.Execute(ctx, "SELECT 1")
	require.ErrorIs(t, err, ErrClosed)
}

func TestExecutePrepared(t *testing.T) {
	ctx := context.Background()
	c, rec := openFake(t, nil)

	counts, err := c.ExecutePrepared(ctx, "INSERT INTO t VALUES (?)", [][]any{{1}, {2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1}, counts)

	// Prepared once, executed per group, released once.
	assert.Equal(t, 1, rec.count("prepare:INSERT INTO t VALUES (?)"))
	assert.Equal(t, 3, rec.count("exec:INSERT INTO t VALUES (?)"))
	assert.Equal(t, 1, rec.count("stmt-close:INSERT INTO t VALUES (?)"))
}

func TestExecutePreparedReleasesStatementOnError(t *testing.T) {
	ctx := context.Background()
	c, rec := openFake(t, map[string]error{"exec:INSERT": errors.New("constraint violation")})

	_, err := c.ExecutePrepared(ctx, "INSERT INTO t VALUES (?)", [][]any{{1}})
	require.ErrorIs(t, err, ErrStatement)
	assert.Equal(t, 1, rec.count("stmt-close:INSERT INTO t VALUES (?)"))
}

func TestQueryEager(t *testing.T) {
	ctx := context.Background()
	c, rec := openFake(t, nil)

	res, err := c.Query(ctx, "SELECT id, name FROM t", nil)
	require.NoError(t, err)
	assert.False(t, res.Lazy())

	require.Len(t, res.Columns(), 2)
	assert.Equal(t, "id", res.Columns()[0].Name)
	assert.Equal(t, "name", res.Columns()[1].Name)

	require.Len(t, res.Data(), 2)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "alpha"}, res.Data()[0])
	assert.Equal(t, map[string]any{"id": int64(2), "name": "beta"}, res.Data()[1])

	// Handles are already released before the result is returned.
	assert.Equal(t, 1, rec.count("rows-close"))
	assert.Equal(t, 1, rec.count("stmt-close:SELECT id, name FROM t"))

	// Next still walks the materialized rows.
	row, ok, err := res.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), row["id"])
}

func TestQueryLazy(t *testing.T) {
	ctx := context.Background()
	c, rec := openFake(t, nil)

	res, err := c.Query(ctx, "SELECT id, name FROM t", nil, Lazy())
	require.NoError(t, err)
	assert.True(t, res.Lazy())
	assert.Nil(t, res.Data())

	// Handles stay open until the cursor is exhausted.
	assert.Equal(t, 0, rec.count("rows-close"))

	var names []string
	for {
		row, ok, err := res.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, row["name"].(string))
	}
	assert.Equal(t, []string{"alpha", "beta"}, names)

	// Exhaustion auto-released the handles; Close stays a no-op.
	assert.Equal(t, 1, rec.count("rows-close"))
	assert.Equal(t, 1, rec.count("stmt-close:SELECT id, name FROM t"))
	require.NoError(t, res.Close())
	assert.Equal(t, 1, rec.count("rows-close"))
}

func TestQueryLazyCloseEarly(t *testing.T) {
	ctx := context.Background()
	c, rec := openFake(t, nil)

	res, err := c.Query(ctx, "SELECT id, name FROM t", nil, Lazy())
	require.NoError(t, err)

	_, ok, err := res.Next()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, res.Close())
	assert.Equal(t, 1, rec.count("rows-close"))

	// After Close the cursor reports exhaustion.
	_, ok, err = res.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryWrapsDriverError(t *testing.T) {
	ctx := context.Background()
	c, _ := openFake(t, map[string]error{"query:": errors.New("permission denied")})

	_, err := c.Query(ctx, "SELECT secret FROM vault", nil)
	require.ErrorIs(t, err, ErrStatement)
}

func TestStatementErrorInsideTransactionKeepsKind(t *testing.T) {
	ctx := context.Background()
	c, _ := openFake(t, map[string]error{"exec:BAD": errors.New("relation does not exist")})

	err := RunInTransaction(ctx, c, func(ctx context.Context, c *Conn) error {
		_, execErr := c.Execute(ctx, "BAD QUERY")
		return execErr
	})
	require.ErrorIs(t, err, ErrStatement)
	assert.Contains(t, err.Error(), "relation does not exist")
}
