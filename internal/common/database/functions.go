package database

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/tsbench/tsbench/internal/common/logging"
)

// CreateConnectionString renders a libpq keyword/value connection string. Keys are sorted so the
// result is stable.
func CreateConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(parts, " ")
}

// OpenPgxPool opens a pool and pings it, retrying a few times while the server comes up.
func OpenPgxPool(ctx context.Context, connection map[string]string) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry.Do(
		func() error {
			p, err := pgxpool.New(ctx, CreateConnectionString(connection))
			if err != nil {
				return err
			}
			if err := p.Ping(ctx); err != nil {
				p.Close()
				return err
			}
			pool = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.WithError(err).Warnf("Connecting to postgres failed (attempt %d)", n+1)
		}),
	)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not connect to postgres at %s", connection["host"])
	}
	return pool, nil
}
