package reference

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "claims:ref:"

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisRegistry resolves reference records stored as Redis hashes:
//
//	<prefix>member:<ID>        active=true|false
//	<prefix>procedure:<CODE>   avg_cost=<float>
//	<prefix>provider:<ID>      name=<string>
type RedisRegistry struct {
	rdb    hashReader
	prefix string
}

func NewRedisRegistry(rdb hashReader, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix}
}

// DialRedis parses a redis:// URL and verifies the server is reachable.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisRegistry) Member(ctx context.Context, id string) (*Member, error) {
	key := normalizeKey(id)
	fields, err := r.hash(ctx, "member", key)
	if err != nil {
		return nil, err
	}
	active, err := strconv.ParseBool(fields["active"])
	if err != nil {
		return nil, fmt.Errorf("member %s: malformed active flag %q", key, fields["active"])
	}
	return &Member{ID: key, Active: active}, nil
}

func (r *RedisRegistry) Procedure(ctx context.Context, code string) (*Procedure, error) {
	key := normalizeKey(code)
	fields, err := r.hash(ctx, "procedure", key)
	if err != nil {
		return nil, err
	}
	cost, err := strconv.ParseFloat(fields["avg_cost"], 64)
	if err != nil || cost < 0 {
		return nil, fmt.Errorf("procedure %s: malformed avg_cost %q", key, fields["avg_cost"])
	}
	return &Procedure{Code: key, AvgCost: cost}, nil
}

func (r *RedisRegistry) Provider(ctx context.Context, id string) (*Provider, error) {
	key := normalizeKey(id)
	fields, err := r.hash(ctx, "provider", key)
	if err != nil {
		return nil, err
	}
	return &Provider{ID: key, Name: fields["name"]}, nil
}

// hash fetches one record. Redis reports a missing key as an empty hash.
func (r *RedisRegistry) hash(ctx context.Context, kind, key string) (map[string]string, error) {
	fields, err := r.rdb.HGetAll(ctx, r.prefix+kind+":"+key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup %s %s: %w", kind, key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
	}
	return fields, nil
}
