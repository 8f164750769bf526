package pledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"bloodlink/internal/ledger/models"
	"bloodlink/pkg/platform/sentinel"
)

const (
	recordsKey     = "ledger:pledges"
	byTimeKey      = "ledger:by_time"
	donorKeyPrefix = "ledger:donor:"
	totalKey       = "ledger:total"
)

// insertScript claims the transaction id with HSETNX and, only on success, updates the
// indexes and running total. The whole script runs atomically on the server.
var insertScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
redis.call("INCRBY", KEYS[4], ARGV[4])
return 1
`)

// RedisStore keeps pledges in a hash keyed by transaction id, with sorted-set indexes
// scored by recording time.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) FindByTransactionID(ctx context.Context, transactionID string) (*models.PledgeRecord, error) {
	raw, err := s.client.HGet(ctx, recordsKey, transactionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pledge: %w", err)
	}
	return decode(raw)
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, rec *models.PledgeRecord) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode pledge: %w", err)
	}
	keys := []string{recordsKey, byTimeKey, donorKeyPrefix + rec.DonorEmail, totalKey}
	n, err := insertScript.Run(ctx, s.client, keys,
		rec.TransactionID, payload, rec.RecordedAt.UnixMilli(), rec.Amount).Int()
	if err != nil {
		return false, fmt.Errorf("insert pledge: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) ListByDonorEmail(ctx context.Context, donorEmail string) ([]*models.PledgeRecord, error) {
	return s.listIndex(ctx, donorKeyPrefix+donorEmail)
}

func (s *RedisStore) List(ctx context.Context) ([]*models.PledgeRecord, error) {
	return s.listIndex(ctx, byTimeKey)
}

func (s *RedisStore) Total(ctx context.Context) (int64, int, error) {
	pipe := s.client.Pipeline()
	totalCmd := pipe.Get(ctx, totalKey)
	countCmd := pipe.HLen(ctx, recordsKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("sum pledges: %w", err)
	}

	var total int64
	if raw, err := totalCmd.Result(); err == nil {
		total, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse pledge total: %w", err)
		}
	}
	return total, int(countCmd.Val()), nil
}

func (s *RedisStore) listIndex(ctx context.Context, key string) ([]*models.PledgeRecord, error) {
	ids, err := s.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pledge index: %w", err)
	}
	out := []*models.PledgeRecord{}
	if len(ids) == 0 {
		return out, nil
	}
	values, err := s.client.HMGet(ctx, recordsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load pledges: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func decode(raw string) (*models.PledgeRecord, error) {
	var rec models.PledgeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode pledge: %w", err)
	}
	return &rec, nil
}
