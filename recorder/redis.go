package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeu5/maternal-rl/types"
)

type RedisConfig struct {
	Addr string
	// Key prefixes the list holding the episodes of a run, <Key>:<run id>
	Key string
	// MaxLen trims each list to its newest MaxLen episodes, 0 keeps everything
	MaxLen      int64
	DialTimeout time.Duration
}

// RedisRecorder pushes episodes onto a redis list per comparison run
type RedisRecorder struct {
	client *redis.Client
	config RedisConfig
}

var _ types.Recorder = &RedisRecorder{}

// NewRedisRecorder connects and pings the server
func NewRedisRecorder(ctx context.Context, config RedisConfig) (*RedisRecorder, error) {
	if config.Key == "" {
		config.Key = "maternal:episodes"
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		DialTimeout: config.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", config.Addr, err)
	}
	return &RedisRecorder{
		client: client,
		config: config,
	}, nil
}

// Key of the list holding the episodes of runID
func (r *RedisRecorder) Key(runID string) string {
	return r.config.Key + ":" + runID
}

func (r *RedisRecorder) Record(ctx context.Context, rec *types.EpisodeRecord) error {
	bs, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := r.Key(rec.RunID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, bs)
		if r.config.MaxLen > 0 {
			pipe.LTrim(ctx, key, -r.config.MaxLen, -1)
		}
		return nil
	})
	return err
}

// Episodes reads back every episode stored for runID
func (r *RedisRecorder) Episodes(ctx context.Context, runID string) ([]*types.EpisodeRecord, error) {
	vals, err := r.client.LRange(ctx, r.Key(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*types.EpisodeRecord, len(vals))
	for i, v := range vals {
		rec := &types.EpisodeRecord{}
		if err := json.Unmarshal([]byte(v), rec); err != nil {
			return nil, fmt.Errorf("decoding episode %d: %w", i, err)
		}
		out[i] = rec
	}
	return out, nil
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
