// Package redis implements gate.Store over Redis so admission and
// in-flight state can be shared by multiple worker processes.
//
// Rate-limit entries live in a hash per worker kind (field = tenant,
// value = last admission in unix nanos); in-flight markers live in a set
// per kind. The admission check-and-set runs as a Lua script, keeping
// the no-double-admission property single-operation atomic across
// processes (gate.Admitter).
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/channelport/courier/gate"
)

// Compile-time interface checks.
var (
	_ gate.Store    = (*Store)(nil)
	_ gate.Admitter = (*Store)(nil)
)

const keyPrefix = "courier:"

// admitScript performs the read-check-write admission atomically.
// KEYS[1] = gate hash, ARGV[1] = tenant, ARGV[2] = now (unix nanos),
// ARGV[3] = min interval (nanos). Returns 1 on admission, 0 on refusal.
var admitScript = goredis.NewScript(`
local last = redis.call('HGET', KEYS[1], ARGV[1])
if last and (tonumber(ARGV[2]) - tonumber(last)) < tonumber(ARGV[3]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements gate.Store backed by Redis. The caller owns the
// client lifecycle.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a Redis-backed gate store.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func gateKey(kind string) string     { return keyPrefix + "gate:" + kind }
func inflightKey(kind string) string { return keyPrefix + "inflight:" + kind }

func tenantField(tenantID int64) string { return strconv.FormatInt(tenantID, 10) }

// TryAdmit implements gate.Admitter via the Lua script.
func (s *Store) TryAdmit(ctx context.Context, kind string, tenantID int64, minInterval time.Duration, now time.Time) (bool, error) {
	res, err := admitScript.Run(ctx, s.client,
		[]string{gateKey(kind)},
		tenantField(tenantID), now.UnixNano(), minInterval.Nanoseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("courier/redis: admit script: %w", err)
	}
	return res == 1, nil
}

// LastAdmitted returns the tenant's last admission time.
func (s *Store) LastAdmitted(ctx context.Context, kind string, tenantID int64) (time.Time, bool, error) {
	v, err := s.client.HGet(ctx, gateKey(kind), tenantField(tenantID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("courier/redis: last admitted: %w", err)
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("courier/redis: last admitted: bad value %q: %w", v, err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

// SetLastAdmitted records an admission time.
func (s *Store) SetLastAdmitted(ctx context.Context, kind string, tenantID int64, t time.Time) error {
	if err := s.client.HSet(ctx, gateKey(kind), tenantField(tenantID), t.UnixNano()).Err(); err != nil {
		return fmt.Errorf("courier/redis: set last admitted: %w", err)
	}
	return nil
}

// DeleteEntry removes the tenant's rate-limit entry.
func (s *Store) DeleteEntry(ctx context.Context, kind string, tenantID int64) error {
	if err := s.client.HDel(ctx, gateKey(kind), tenantField(tenantID)).Err(); err != nil {
		return fmt.Errorf("courier/redis: delete entry: %w", err)
	}
	return nil
}

// Entries lists all rate-limit entries for the kind.
func (s *Store) Entries(ctx context.Context, kind string) ([]gate.Entry, error) {
	fields, err := s.client.HGetAll(ctx, gateKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: entries: %w", err)
	}

	out := make([]gate.Entry, 0, len(fields))
	for f, v := range fields {
		tenantID, tErr := strconv.ParseInt(f, 10, 64)
		if tErr != nil {
			s.logger.Warn("skipping malformed gate field",
				slog.String("kind", kind),
				slog.String("field", f),
			)
			continue
		}
		nanos, nErr := strconv.ParseInt(v, 10, 64)
		if nErr != nil {
			continue
		}
		out = append(out, gate.Entry{TenantID: tenantID, LastAdmitted: time.Unix(0, nanos).UTC()})
	}
	return out, nil
}

// AddInFlight marks the tenant as currently processing.
func (s *Store) AddInFlight(ctx context.Context, kind string, tenantID int64) error {
	if err := s.client.SAdd(ctx, inflightKey(kind), tenantField(tenantID)).Err(); err != nil {
		return fmt.Errorf("courier/redis: add in-flight: %w", err)
	}
	return nil
}

// RemoveInFlight clears the tenant's in-flight marker.
func (s *Store) RemoveInFlight(ctx context.Context, kind string, tenantID int64) error {
	if err := s.client.SRem(ctx, inflightKey(kind), tenantField(tenantID)).Err(); err != nil {
		return fmt.Errorf("courier/redis: remove in-flight: %w", err)
	}
	return nil
}

// InFlight reports whether the tenant has a task executing.
func (s *Store) InFlight(ctx context.Context, kind string, tenantID int64) (bool, error) {
	ok, err := s.client.SIsMember(ctx, inflightKey(kind), tenantField(tenantID)).Result()
	if err != nil {
		return false, fmt.Errorf("courier/redis: in-flight check: %w", err)
	}
	return ok, nil
}
