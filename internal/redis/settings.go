package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/settings"
)

// SettingsStore keeps the settings document under a single key.
type SettingsStore struct {
	rdb redis.Cmdable
	key string
}

var _ settings.Repository = (*SettingsStore)(nil)

func NewSettingsStore(rdb redis.Cmdable, key string) *SettingsStore {
	if key == "" {
		key = DefaultSettingsKey
	}
	return &SettingsStore{rdb: rdb, key: key}
}

func (s *SettingsStore) Load(ctx context.Context) (model.PrayerSettings, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PrayerSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return model.PrayerSettings{}, fmt.Errorf("loading settings from %s: %w", s.key, err)
	}
	return model.DecodeSettings(data)
}

func (s *SettingsStore) Save(ctx context.Context, ps model.PrayerSettings) error {
	data, err := model.EncodeSettings(ps)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving settings to %s: %w", s.key, err)
	}
	return nil
}
