// Package parcelmatch собирает клиентское ядро маркетплейса доставки:
// кэш трекинга, жизненный цикл матчей и ранжирование перевозчиков.
// Ядро создаётся на время сессии пользователя и раздаётся потребителям
// явно, без амбиентных глобалов.
package parcelmatch

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/ParcelMatch/config"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/gateway/deliveryhttp"
	"github.com/BearBump/ParcelMatch/internal/services/matches"
	"github.com/BearBump/ParcelMatch/internal/services/tracking"
	"github.com/BearBump/ParcelMatch/internal/session"
	"github.com/BearBump/ParcelMatch/internal/store"
	"github.com/BearBump/ParcelMatch/internal/store/filestore"
	"github.com/BearBump/ParcelMatch/internal/store/redisstore"
	"github.com/pkg/errors"
)

// Core — единый владелец изменяемого состояния ядра. Слой представления
// читает снимки и шлёт интенты, но структуры внутри не трогает.
type Core struct {
	Session  *session.Memory
	Tracking *tracking.Service
	Matches  *matches.Service
	Syncer   *matches.Syncer
}

// New собирает ядро поверх готового шлюза и хранилища (основной путь
// для тестов и хостов со своими реализациями).
func New(gw gateway.Client, kv store.KV, syncInterval time.Duration) *Core {
	sess := session.NewMemory()
	trackingSvc := tracking.New(gw, sess, kv)
	matchesSvc := matches.New(gw)

	return &Core{
		Session:  sess,
		Tracking: trackingSvc,
		Matches:  matchesSvc,
		Syncer:   matches.NewSyncer(matchesSvc, syncInterval),
	}
}

// NewFromConfig собирает ядро с HTTP-шлюзом и хранилищем из конфига.
func NewFromConfig(cfg *config.Config) (*Core, error) {
	var kv store.KV
	switch cfg.ParcelMatch.StorageBackend {
	case "", "redis":
		kv = redisstore.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
	case "file":
		fs, err := filestore.New(cfg.ParcelMatch.StorageDir)
		if err != nil {
			return nil, err
		}
		kv = fs
	default:
		return nil, errors.Errorf("unknown storage backend: %q", cfg.ParcelMatch.StorageBackend)
	}

	sess := session.NewMemory()
	gw := deliveryhttp.New(
		cfg.Gateway.BaseURL,
		sess,
		time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second,
	)

	trackingSvc := tracking.New(gw, sess, kv)
	matchesSvc := matches.New(gw)
	interval := time.Duration(cfg.ParcelMatch.SyncIntervalSeconds) * time.Second

	return &Core{
		Session:  sess,
		Tracking: trackingSvc,
		Matches:  matchesSvc,
		Syncer:   matches.NewSyncer(matchesSvc, interval),
	}, nil
}

// Start гидратирует кэш из хранилища и запускает периодический синк.
// Блокируется до отмены ctx; остановка ядра — это отмена ctx хостом.
func (c *Core) Start(ctx context.Context) error {
	c.Tracking.Hydrate(ctx)
	return c.Syncer.Run(ctx)
}

// Logout сбрасывает сессию и чистит кэши пользователя на устройстве.
func (c *Core) Logout(ctx context.Context) {
	c.Session.Clear()
	c.Tracking.ClearAll(ctx)
}
