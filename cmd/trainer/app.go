package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/authoring"
	appcfg "github.com/park285/cheese-trainer/internal/config"
	"github.com/park285/cheese-trainer/internal/dataset"
	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/obslog"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/internal/remote"
	"github.com/park285/cheese-trainer/internal/stats"
	"github.com/park285/cheese-trainer/internal/trainer"
)

// app is the wired dependency graph shared by every subcommand.
type app struct {
	cfg     *appcfg.AppConfig
	logger  *zap.Logger
	oracle  oracle.Oracle
	catalog *msgcat.Catalog

	local    localstore.Store
	remote   *remote.Client
	merger   *exercise.Merger
	pipeline *authoring.Pipeline
	stats    stats.Store

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := appcfg.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, logger: obslog.L(), oracle: oracle.New()}

	a.catalog, err = msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	switch cfg.LocalStore {
	case appcfg.LocalStoreRedis:
		store, client, err := localstore.NewRedisFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.local, rdb = store, client
		a.closers = append(a.closers, client.Close)
	case appcfg.LocalStoreSQLite:
		store, err := localstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.local = store
		a.stats = stats.NewSQLite(store.DB())
		a.closers = append(a.closers, store.Close)
	default:
		a.local = localstore.NewMemory()
	}
	switch {
	case rdb != nil:
		a.stats = stats.NewRedis(rdb)
	case a.stats == nil:
		a.stats = stats.NewMemory()
	}

	// nil interfaces, not typed nils, when no remote is configured
	var lister exercise.RemoteLister
	var mirror authoring.Mirror
	mirrorTimeout := cfg.RemoteTimeout
	if cfg.RemoteBaseURL != "" {
		a.remote = remote.NewClient(cfg.RemoteBaseURL, remote.WithTimeout(cfg.RemoteTimeout))
		lister, mirror = a.remote, a.remote
		mirrorTimeout = a.remote.Timeout()
	}

	norm := exercise.NewNormalizer(a.oracle, a.logger)
	a.merger = exercise.NewMerger(dataset.NewStore(cfg.DatasetFile), a.local, lister, norm, a.logger)
	a.pipeline = authoring.New(a.oracle, a.local, mirror, a.catalog,
		authoring.WithMirrorTimeout(mirrorTimeout),
		authoring.WithLogger(a.logger),
	)

	a.logger.Debug("app_wired",
		zap.String("local_store", cfg.LocalStore),
		zap.Bool("remote", a.remote != nil),
		zap.String("dataset", cfg.DatasetFile),
	)
	return a, nil
}

func (a *app) device() string {
	if deviceFlag != "" {
		return deviceFlag
	}
	return a.cfg.Device
}

func (a *app) token() string {
	if tokenFlag != "" {
		return tokenFlag
	}
	return a.cfg.Token
}

func (a *app) deps() trainer.Deps {
	return trainer.Deps{
		Oracle:    a.oracle,
		Merger:    a.merger,
		Authoring: a.pipeline,
		Stats:     a.stats,
		Catalog:   a.catalog,
		Logger:    a.logger,
	}
}

func (a *app) options() trainer.Options {
	return trainer.Options{
		AutoPlayFullMoves: a.cfg.AutoPlayFullMoves,
		ReplyDelay:        a.cfg.OpponentReplyDelay,
		RefreshInterval:   a.cfg.RefreshInterval,
		RandomMode:        a.cfg.RandomMode,
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	obslog.Sync()
}
