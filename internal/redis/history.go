package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

const (
	DefaultHistorySize = 200
	writeTimeout       = 2 * time.Second
)

// History is an event sink that keeps the newest events in a capped list.
type History struct {
	rdb  redis.Cmdable
	key  string
	size int64
	log  zerolog.Logger
}

func NewHistory(rdb redis.Cmdable, key string, size int, log zerolog.Logger) *History {
	if key == "" {
		key = DefaultHistoryKey
	}
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{rdb: rdb, key: key, size: int64(size), log: log}
}

// Publish appends e. Failures are logged; the event is not retried.
func (h *History) Publish(e model.Event) {
	data, err := json.Marshal(model.NewEnvelope(e))
	if err != nil {
		h.log.Error().Err(err).Str("type", string(e.Type())).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err = h.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, h.key, data)
		pipe.LTrim(ctx, h.key, 0, h.size-1)
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("type", string(e.Type())).Msg("failed to record event")
	}
}

// Recent returns up to n events, newest first. Data holds the raw event JSON.
func (h *History) Recent(ctx context.Context, n int) ([]model.Envelope, error) {
	if n <= 0 || int64(n) > h.size {
		n = int(h.size)
	}
	raw, err := h.rdb.LRange(ctx, h.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.Envelope, 0, len(raw))
	for _, item := range raw {
		var env struct {
			model.Envelope
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			h.log.Warn().Err(err).Msg("skipping unreadable event")
			continue
		}
		env.Envelope.Data = env.Data
		out = append(out, env.Envelope)
	}
	return out, nil
}
