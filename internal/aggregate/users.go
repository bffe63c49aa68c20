package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"societyhub/internal/cache"
	"societyhub/internal/logger"
	"societyhub/internal/model"
	"societyhub/internal/repository"
)

// UserDirectoryStats summarizes the merged user directory.
type UserDirectoryStats struct {
	Total   int            `json:"total"`
	ByRole  map[string]int `json:"byRole"`
	ByHouse map[string]int `json:"byHouse"`
}

// UserDirectory merges the role partitions of user profiles.
type UserDirectory = Aggregator[model.UserProfile, UserDirectoryStats]

// DeriveUserStats counts users per partition and residents per house.
func DeriveUserStats(v View[*model.UserProfile]) UserDirectoryStats {
	stats := UserDirectoryStats{ByRole: map[string]int{}, ByHouse: map[string]int{}}
	v.Each(func(partition, _ string, u *model.UserProfile) {
		stats.Total++
		stats.ByRole[partition]++
		if partition == string(model.RoleResident) && u.HouseNo != "" {
			stats.ByHouse[u.HouseNo]++
		}
	})
	return stats
}

func profileKey(u *model.UserProfile) string { return u.ID.String() }

// NewUserDirectory subscribes to every role partition and merges them. Any
// subscription already opened is closed if a later one fails.
func NewUserDirectory(
	ctx context.Context,
	repos map[model.Role]repository.Repository[model.UserProfile],
	publisher Publisher[UserDirectoryStats],
	log *logger.Logger,
) (*UserDirectory, error) {
	parts := make([]Partition[model.UserProfile], 0, len(repos))
	for _, role := range model.Roles {
		repo, ok := repos[role]
		if !ok {
			continue
		}
		sub, err := repo.Subscribe(ctx, repository.Query{Order: "name ASC"})
		if err != nil {
			for _, p := range parts {
				p.Source.Close()
			}
			return nil, fmt.Errorf("subscribe %s: %w", role.Collection(), err)
		}
		parts = append(parts, Partition[model.UserProfile]{Name: string(role), Source: sub})
	}
	return New(ctx, profileKey, DeriveUserStats, publisher, log, parts...), nil
}

// CachePublisher keeps the latest derived statistics in redis under one key.
type CachePublisher[S any] struct {
	client *cache.Client
	key    string
	ttl    time.Duration
}

// NewCachePublisher creates a publisher writing to key.
func NewCachePublisher[S any](client *cache.Client, key string, ttl time.Duration) *CachePublisher[S] {
	return &CachePublisher[S]{client: client, key: key, ttl: ttl}
}

func (p *CachePublisher[S]) Publish(ctx context.Context, stats S) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return p.client.Set(ctx, p.key, raw, p.ttl)
}

// Latest returns the last published statistics, if any are cached.
func (p *CachePublisher[S]) Latest(ctx context.Context) (S, bool) {
	var stats S
	raw, _ := p.client.Get(ctx, p.key)
	if raw == nil {
		return stats, false
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return stats, false
	}
	return stats, true
}
