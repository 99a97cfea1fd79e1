package server

import (
	"context"
	"fmt"

	"github.com/sngm3741/form-intake/api/internal/config"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/bolt"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/mongo"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/redis"
)

// OpenStore connects the key-value backend selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (kv.Store, error) {
	var (
		store kv.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMongo:
		store, err = openMongo(ctx, cfg)
	case config.DriverRedis:
		store, err = openRedis(ctx, cfg)
	case config.DriverBolt:
		store, err = openBolt(cfg)
	case config.DriverMemory:
		store = kv.NewMemoryStore()
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Each opener returns a nil interface on failure.

func openMongo(ctx context.Context, cfg config.StoreConfig) (kv.Store, error) {
	store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Collection, cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openRedis(ctx context.Context, cfg config.StoreConfig) (kv.Store, error) {
	store, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openBolt(cfg config.StoreConfig) (kv.Store, error) {
	store, err := bolt.Open(cfg.BoltPath, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	return store, nil
}
