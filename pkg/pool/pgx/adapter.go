//go:build postgres || all_drivers

package pgx

import (
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
	"github.com/ekaya-inc/dbconn/pkg/dialect/postgres"
	"github.com/ekaya-inc/dbconn/pkg/pool"
)

const (
	defaultMaxConns = 10
	defaultMinConns = 1
)

// Adapter rewrites a descriptor with pgx pool parameters.
type Adapter struct {
	MaxConns int32
	MinConns int32
}

// Transform implements pool.Adapter. Existing pool_max_conns and
// pool_min_conns extras win over the adapter's own settings.
func (a Adapter) Transform(d descriptor.Descriptor) (descriptor.Descriptor, error) {
	maxConns := a.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	minConns := a.MinConns
	if minConns <= 0 {
		minConns = defaultMinConns
	}

	out := d
	out.Extra = make(map[string]string, len(d.Extra)+2)
	for k, v := range d.Extra {
		out.Extra[k] = v
	}
	if _, ok := out.Extra["pool_max_conns"]; !ok {
		out.Extra["pool_max_conns"] = strconv.Itoa(int(maxConns))
	}
	if _, ok := out.Extra["pool_min_conns"]; !ok {
		out.Extra["pool_min_conns"] = strconv.Itoa(int(minConns))
	}

	dsn, err := postgres.BuildDSN(out)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	if _, err := pgxpool.ParseConfig(dsn); err != nil {
		return descriptor.Descriptor{}, fmt.Errorf("%w: pgx pool config: %v", descriptor.ErrMalformed, err)
	}

	return out, nil
}

var _ pool.Adapter = Adapter{}

func init() {
	pool.Register("pgx", Adapter{})
}
