package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imyme/imyme-ai/internal/providers"
	"github.com/imyme/imyme-ai/pkg/domain"
	"github.com/imyme/imyme-ai/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis-specific configuration
type Config struct {
	Addr      string `json:"addr"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"keyPrefix,omitempty"`
}

// Plugin implements PluginPersistence for Redis/KVRocks
type Plugin struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewPlugin creates a new Redis persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, fmt.Errorf("redis persistence config: %w", err)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "localhost:6379"
	}

	client := providers.NewRedisProvider(cfg.Addr, cfg.Password, cfg.DB)
	return NewWithClient(client, cfg.KeyPrefix, config.Clock()), nil
}

// NewWithClient wraps an existing client; prefix defaults to "imyme"
func NewWithClient(client *redis.Client, prefix string, now func() time.Time) *Plugin {
	if strings.TrimSpace(prefix) == "" {
		prefix = "imyme"
	}
	if now == nil {
		now = time.Now
	}
	return &Plugin{client: client, prefix: prefix, now: now}
}

// Client exposes the underlying connection so other components (rate limiting) can share it
func (p *Plugin) Client() *redis.Client {
	return p.client
}

// TaskStorage returns the task storage implementation
func (p *Plugin) TaskStorage() persistence.TaskStorage {
	return &taskStorage{plugin: p}
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}

func init() {
	persistence.RegisterProvider("redis", NewPlugin)
}

type taskStorage struct {
	plugin *Plugin
}

// HASH: field = id, value = record JSON
func (s *taskStorage) keyTasksHash() string { return s.plugin.prefix + ":tasks" }

// ZSET of terminal records only: member = id, score = updatedAt (epoch seconds)
func (s *taskStorage) keyTerminalIndex() string { return s.plugin.prefix + ":tasks:terminal" }

// SET per status, used for counts
func (s *taskStorage) keyStatusSet(st domain.TaskStatus) string {
	return fmt.Sprintf("%s:tasks:status:%s", s.plugin.prefix, strings.ToLower(string(st)))
}

func (s *taskStorage) Save(ctx context.Context, rec domain.TaskRecord) error {
	if err := persistence.Validate(rec); err != nil {
		return err
	}
	rec.UpdatedAt = s.plugin.now()
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	// single HSET of the whole JSON keeps readers from seeing a mixed record
	_, err = s.plugin.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.keyTasksHash(), rec.ID, string(b))
		if rec.Status.Terminal() {
			pipe.ZAdd(ctx, s.keyTerminalIndex(), &redis.Z{Score: float64(rec.UpdatedAt.Unix()), Member: rec.ID})
		} else {
			pipe.ZRem(ctx, s.keyTerminalIndex(), rec.ID)
		}
		for _, st := range domain.Statuses {
			if st != rec.Status {
				pipe.SRem(ctx, s.keyStatusSet(st), rec.ID)
			}
		}
		pipe.SAdd(ctx, s.keyStatusSet(rec.Status), rec.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save task: %w", err)
	}
	return nil
}

func (s *taskStorage) Get(ctx context.Context, id string) (*domain.TaskRecord, error) {
	js, err := s.plugin.client.HGet(ctx, s.keyTasksHash(), id).Result()
	if errors.Is(err, redis.Nil) || (err == nil && js == "") {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET task: %w", err)
	}
	var rec domain.TaskRecord
	if err := json.Unmarshal([]byte(js), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &rec, nil
}

func (s *taskStorage) Delete(ctx context.Context, id string) error {
	_, err := s.plugin.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.keyTasksHash(), id)
		pipe.ZRem(ctx, s.keyTerminalIndex(), id)
		for _, st := range domain.Statuses {
			pipe.SRem(ctx, s.keyStatusSet(st), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete task: %w", err)
	}
	return nil
}

func (s *taskStorage) CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error) {
	counts := make(map[domain.TaskStatus]int64, len(domain.Statuses))
	for _, st := range domain.Statuses {
		n, err := s.plugin.client.SCard(ctx, s.keyStatusSet(st)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis SCARD %s: %w", st, err)
		}
		counts[st] = n
	}
	return counts, nil
}

func (s *taskStorage) DeleteTerminalBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 1000
	}
	ids, err := s.plugin.client.ZRangeByScore(ctx, s.keyTerminalIndex(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ZRANGEBYSCORE terminal: %w", err)
	}
	removed := 0
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, persistence.ErrNotFound) {
			_ = s.plugin.client.ZRem(ctx, s.keyTerminalIndex(), id).Err()
			continue
		}
		if err != nil {
			return removed, err
		}
		if !rec.Status.Terminal() {
			_ = s.plugin.client.ZRem(ctx, s.keyTerminalIndex(), id).Err()
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
