package conn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
	"github.com/ekaya-inc/dbconn/pkg/dialect"
	"github.com/ekaya-inc/dbconn/pkg/pool"
)

func TestOpenResolvesDialectAndPinsSession(t *testing.T) {
	rec, desc := newFakeBackend(t, nil)

	c, err := Open(context.Background(), desc, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	assert.NotEqual(t, "", c.ID().String())
	assert.Equal(t, desc.Subprotocol, c.Dialect().Name)
	assert.False(t, c.InTransaction())
	assert.Equal(t, []string{"open"}, rec.list())
}

func TestOpenAppliesIsolationExactlyOnce(t *testing.T) {
	rec, desc := newFakeBackend(t, nil)
	desc.Isolation = descriptor.IsolationSerializable

	c, err := Open(context.Background(), desc)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 1, rec.count("exec:SET ISOLATION serializable"))
}

func TestOpenSkipsIsolationWhenUnset(t *testing.T) {
	rec, desc := newFakeBackend(t, nil)

	c, err := Open(context.Background(), desc)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 0, rec.count("SET ISOLATION"))
}

func TestOpenUnknownSubprotocol(t *testing.T) {
	_, err := Open(context.Background(), descriptor.Descriptor{
		Subprotocol: "no-such-database",
		Host:        "h",
	})
	require.ErrorIs(t, err, dialect.ErrUnknown)
}

func TestOpenMalformedInput(t *testing.T) {
	_, err := Open(context.Background(), 42)
	require.ErrorIs(t, err, descriptor.ErrMalformed)
}

func TestOpenAcceptsURIString(t *testing.T) {
	_, desc := newFakeBackend(t, nil)

	c, err := Open(context.Background(), desc.Subprotocol+"://db.test/app")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "db.test", c.Descriptor().Host)
	assert.Equal(t, "app", c.Descriptor().Database)
}

func TestCloseIsIdempotent(t *testing.T) {
	rec, desc := newFakeBackend(t, nil)

	c, err := Open(context.Background(), desc)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, 1, rec.count("conn-close"))
}

func TestCloseAbortsOpenTransaction(t *testing.T) {
	ctx := context.Background()
	rec, desc := newFakeBackend(t, nil)

	c, err := Open(ctx, desc)
	require.NoError(t, err)

	// Leave a transaction open on purpose by closing from inside it.
	_ = RunInTransaction(ctx, c, func(ctx context.Context, c *Conn) error {
		require.NoError(t, c.Close())
		return nil
	})

	assert.Equal(t, 1, rec.count("rollback"))
	assert.Equal(t, 0, rec.count("commit"))
}

type prefixHostAdapter struct{}

func (prefixHostAdapter) Transform(d descriptor.Descriptor) (descriptor.Descriptor, error) {
	d.Host = "pooled." + d.Host
	return d, nil
}

func TestOpenResolvesPoolAdapterFromExtra(t *testing.T) {
	_, desc := newFakeBackend(t, nil)
	pool.Register("test-"+desc.Subprotocol, prefixHostAdapter{})

	extra := map[string]string{"pool": "test-" + desc.Subprotocol, "sslmode": "disable"}
	desc.Extra = extra

	c, err := Open(context.Background(), desc)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "pooled.db.test", c.Descriptor().Host)
	assert.NotContains(t, c.Descriptor().Extra, "pool")

	// The caller's map is left alone.
	assert.Equal(t, "test-"+desc.Subprotocol, extra["pool"])
}

func TestOpenUnknownPoolAdapter(t *testing.T) {
	_, desc := newFakeBackend(t, nil)
	desc.Extra = map[string]string{"pool": "nonexistent-adapter"}

	_, err := Open(context.Background(), desc)
	require.ErrorIs(t, err, pool.ErrUnknownAdapter)
}

func TestOpenExplicitPoolAdapterOption(t *testing.T) {
	_, desc := newFakeBackend(t, nil)

	c, err := Open(context.Background(), desc, WithPoolAdapter(prefixHostAdapter{}))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "pooled.db.test", c.Descriptor().Host)
}
