package entity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/benvon/todo-reset/internal/models"
	"github.com/redis/go-redis/v9"
)

// StatusKeyPrefix namespaces status hashes in Redis.
const StatusKeyPrefix = "todo_list:status:"

const maxTxRetries = 5

// RedisStore keeps one hash per entry so the server and the worker see the
// same state.
type RedisStore struct {
	client *redis.Client
}

// DialRedis connects to redisURL and verifies the connection.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func statusKey(entryID string) string {
	return StatusKeyPrefix + entryID
}

func (r *RedisStore) Load(ctx context.Context, entryID string) (*models.StatusSnapshot, error) {
	fields, err := r.client.HGetAll(ctx, statusKey(entryID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load status %s: %w", entryID, err)
	}
	if len(fields) == 0 {
		return nil, ErrStatusNotFound
	}
	return decodeSnapshot(fields), nil
}

// Update runs fn inside a WATCH transaction and retries when another writer
// touched the hash in between.
func (r *RedisStore) Update(ctx context.Context, entryID string, fn MutateFunc) (*models.StatusSnapshot, bool, error) {
	key := statusKey(entryID)
	var (
		result  *models.StatusSnapshot
		written bool
	)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current := decodeSnapshot(fields)
		next := cloneSnapshot(*current)
		if !fn(next) {
			result, written = current, false
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, encodeSnapshot(next))
			return nil
		})
		if err != nil {
			return err
		}
		result, written = next, true
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, false, fmt.Errorf("update status %s: %w", entryID, err)
	}
	return nil, false, fmt.Errorf("update status %s: too much contention", entryID)
}

func (r *RedisStore) Delete(ctx context.Context, entryID string) error {
	if err := r.client.Del(ctx, statusKey(entryID)).Err(); err != nil {
		return fmt.Errorf("delete status %s: %w", entryID, err)
	}
	return nil
}

func encodeSnapshot(s *models.StatusSnapshot) map[string]any {
	fields := map[string]any{
		"entry_id":         s.EntryID,
		"entity_id":        s.EntityID,
		"friendly_name":    s.FriendlyName,
		"state":            string(s.State),
		"source_entity_id": s.SourceEntityID,
		"reset_time":       s.ResetTime,
		"display_position": string(s.DisplayPosition),
		"display_hours":    s.DisplayHours,
		"last_reset_count": s.LastResetCount,
		"last_error":       s.LastError,
		"last_error_kind":  string(s.LastErrorKind),
		"reset_started_at": "",
		"updated_at":       s.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"last_reset":       "",
	}
	if s.LastReset != nil {
		fields["last_reset"] = s.LastReset.UTC().Format(time.RFC3339Nano)
	}
	if s.ResetStartedAt != nil {
		fields["reset_started_at"] = s.ResetStartedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func decodeSnapshot(fields map[string]string) *models.StatusSnapshot {
	s := &models.StatusSnapshot{
		EntryID:         fields["entry_id"],
		EntityID:        fields["entity_id"],
		FriendlyName:    fields["friendly_name"],
		State:           models.ResetStatus(fields["state"]),
		SourceEntityID:  fields["source_entity_id"],
		ResetTime:       fields["reset_time"],
		DisplayPosition: models.DisplayPosition(fields["display_position"]),
		LastError:       fields["last_error"],
		LastErrorKind:   models.ErrorKind(fields["last_error_kind"]),
	}
	s.DisplayHours, _ = strconv.Atoi(fields["display_hours"])
	s.LastResetCount, _ = strconv.Atoi(fields["last_reset_count"])
	if t, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		s.UpdatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["last_reset"]); err == nil {
		s.LastReset = &t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["reset_started_at"]); err == nil {
		s.ResetStartedAt = &t
	}
	return s
}
