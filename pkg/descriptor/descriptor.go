// Package descriptor normalizes heterogeneous database connection
// descriptors into one canonical structured form. A descriptor may arrive
// as a canonical Descriptor, a generic map (e.g. decoded from JSON or
// YAML), or a URI string; Normalize accepts all of them and always
// produces the same canonical shape. Normalization is pure and
// idempotent: Normalize(Normalize(x)) == Normalize(x).
package descriptor

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed indicates an input that cannot be interpreted as a
// connection descriptor.
var ErrMalformed = errors.New("malformed descriptor")

// Isolation is a transaction isolation level requested at connect time.
// IsolationNone leaves the vendor default untouched.
type Isolation string

const (
	IsolationNone           Isolation = "none"
	IsolationReadCommitted  Isolation = "read-committed"
	IsolationRepeatableRead Isolation = "repeatable-read"
	IsolationSerializable   Isolation = "serializable"
)

// ParseIsolation validates a textual isolation level. The empty string is
// treated as IsolationNone.
func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(s) {
	case "", IsolationNone:
		return IsolationNone, nil
	case IsolationReadCommitted, IsolationRepeatableRead, IsolationSerializable:
		return Isolation(s), nil
	default:
		return IsolationNone, fmt.Errorf("%w: unknown isolation level %q", ErrMalformed, s)
	}
}

// Descriptor is the canonical connection descriptor. Every accepted input
// shape reduces to this struct.
type Descriptor struct {
	// DriverClass optionally pins the database/sql driver name. When
	// empty the driver is resolved from Subprotocol via the dialect
	// registry.
	DriverClass string

	// Subprotocol identifies the database flavor ("postgresql",
	// "sqlserver", ...). It doubles as the URI scheme.
	Subprotocol string

	Host     string
	Port     int
	Database string
	User     string
	Password string

	Isolation Isolation

	// Extra carries vendor-specific options (sslmode, application_name,
	// pool sizing, ...) passed through untouched.
	Extra map[string]string
}

// Subname renders the host/port/database triple in the classic
// "//host:port/database" form.
func (d Descriptor) Subname() string {
	s := "//" + d.Host
	if d.Port > 0 {
		s += ":" + strconv.Itoa(d.Port)
	}
	if d.Database != "" {
		s += "/" + d.Database
	}
	return s
}

// Normalize converts any accepted descriptor shape into canonical form.
//
// Accepted inputs:
//   - Descriptor / *Descriptor: returned as-is (canonicalized)
//   - string: parsed as a connection URI
//   - map[string]any / map[string]string: structured fields; a map that
//     only carries a "uri" key is treated as a URI-shaped object
//
// Anything else fails with ErrMalformed.
func Normalize(input any) (Descriptor, error) {
	switch v := input.(type) {
	case Descriptor:
		return canonicalize(v)
	case *Descriptor:
		if v == nil {
			return Descriptor{}, fmt.Errorf("%w: nil descriptor", ErrMalformed)
		}
		return canonicalize(*v)
	case string:
		return Parse(v)
	case map[string]any:
		return FromMap(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = val
		}
		return FromMap(m)
	default:
		return Descriptor{}, fmt.Errorf("%w: unsupported input type %T", ErrMalformed, input)
	}
}

// canonicalize fills defaulted fields so that repeated normalization is a
// fixed point.
func canonicalize(d Descriptor) (Descriptor, error) {
	iso, err := ParseIsolation(string(d.Isolation))
	if err != nil {
		return Descriptor{}, err
	}
	d.Isolation = iso

	if d.Subprotocol == "" {
		return Descriptor{}, fmt.Errorf("%w: subprotocol is required", ErrMalformed)
	}
	return d, nil
}

// FromMap builds a canonical Descriptor from a generic field map. Known
// fields are lifted into struct fields; everything else lands in Extra.
// A map whose only meaningful key is "uri" is parsed as a URI object.
func FromMap(m map[string]any) (Descriptor, error) {
	if uri, ok := m["uri"].(string); ok && uri != "" {
		return Parse(uri)
	}

	var d Descriptor

	for key, raw := range m {
		switch key {
		case "driver-class":
			d.DriverClass = stringField(raw)
		case "subprotocol":
			d.Subprotocol = stringField(raw)
		case "host":
			d.Host = stringField(raw)
		case "port":
			p, err := intField(raw)
			if err != nil {
				return Descriptor{}, fmt.Errorf("%w: port: %v", ErrMalformed, err)
			}
			d.Port = p
		case "database":
			d.Database = stringField(raw)
		case "user":
			d.User = stringField(raw)
		case "password":
			d.Password = stringField(raw)
		case "isolation", "isolation-level":
			iso, err := ParseIsolation(stringField(raw))
			if err != nil {
				return Descriptor{}, err
			}
			d.Isolation = iso
		case "subname":
			host, port, database, err := parseSubname(stringField(raw))
			if err != nil {
				return Descriptor{}, err
			}
			d.Host, d.Port, d.Database = host, port, database
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]string)
			}
			d.Extra[key] = stringField(raw)
		}
	}

	return canonicalize(d)
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func intField(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64: // JSON numbers decode as float64
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}
