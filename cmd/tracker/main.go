package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/balancednetwork/xcall-tracker/chainconn"
	"github.com/balancednetwork/xcall-tracker/chainconn/evm"
	"github.com/balancednetwork/xcall-tracker/chainconn/icon"
	"github.com/balancednetwork/xcall-tracker/config"
	"github.com/balancednetwork/xcall-tracker/db"
	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/orchestrator"
	"github.com/balancednetwork/xcall-tracker/presenter"
	"github.com/balancednetwork/xcall-tracker/scanner"
	"github.com/balancednetwork/xcall-tracker/storage"
	"github.com/balancednetwork/xcall-tracker/storage/postgres"
	"github.com/balancednetwork/xcall-tracker/storage/redis"
	"github.com/balancednetwork/xcall-tracker/timer"
	"github.com/balancednetwork/xcall-tracker/tracker"
)

// tableVersion is bumped on incompatible persisted layout changes; old
// tables are wiped on mismatch rather than migrated.
const tableVersion = 1

func main() {
	_ = godotenv.Load()
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel.Level())

	var store storage.Store
	switch cfg.Storage.Backend {
	case "redis":
		store = redis.NewStore(cfg.Storage.Redis)
	case "postgres":
		dbConn, err2 := db.ConnectToDBAndMigrate(cfg.Storage.Postgres)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't connect to database and apply migrations")
		}
		store = postgres.NewStore("kv_store", dbConn)
	default:
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	adapters := chainconn.NewRegistry()
	for _, chain := range cfg.Chains {
		switch chain.Family {
		case config.ChainFamilyEVM:
			a, err2 := evm.NewAdapter(chain, nil)
			if err2 != nil {
				logger.WithError(err2).WithField("chain_id", chain.ChainID).Fatal("can't dial evm rpc client")
			}
			adapters.Register(a)
		case config.ChainFamilyICON:
			adapters.Register(icon.NewAdapter(chain, nil))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	timers := timer.NewRegistry(logger)
	sc := scanner.New(ctx, adapters, timers, logger, cfg.PollInterval.Duration())
	tr := tracker.New(ctx, adapters, sc, timers,
		storage.NewBucket(store, "messages", tableVersion, logger), logger, cfg.PollInterval.Duration())
	orch := orchestrator.New(ctx, adapters, tr,
		storage.NewBucket(store, "transfers", tableVersion, logger), logger, cfg.HubChainID, cfg.BlockHeightMargin)

	if err := tr.Load(ctx); err != nil {
		logger.WithError(err).Fatal("can't load persisted messages")
	}
	if err := orch.Load(ctx); err != nil {
		logger.WithError(err).Fatal("can't load persisted transfers")
	}
	tr.Resume()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(":2112", nil)
		if err != nil {
			logger.WithError(err).Fatal("can't start listener for prometheus metrics")
		}
	}()

	if cfg.Presenter != nil && cfg.Presenter.Host != "" {
		pr := presenter.NewPresenter(logger, tr, orch, cfg.ChainNames())
		go func() {
			err := pr.Serve(cfg.Presenter.Host)
			if err != nil {
				logger.WithError(err).Fatal("can't serve presenter")
			}
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	for range c {
		logger.Warn("caught CTRL-C, gracefully terminating")
		cancel()
		timers.StopAll()
		return
	}
}
