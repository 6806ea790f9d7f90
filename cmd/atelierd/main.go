package main

import (
	"flag"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"atelier/config"
	"atelier/core/events"
	"atelier/core/state"
	"atelier/core/types"
	"atelier/native/marketplace"
	"atelier/observability"
	"atelier/observability/logging"
	"atelier/rpc"
	"atelier/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("atelierd", cfg.Environment)
	logger.Info("configuration loaded", "path", *configPath, "network", cfg.NetworkName)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open ledger database", "dataDir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := seedGenesis(manager, cfg); err != nil {
		logger.Error("failed to seed genesis accounts", "error", err)
		os.Exit(1)
	}

	eventLog := events.NewLog()
	engine := marketplace.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(eventLog)
	if owner, ok, err := cfg.Owner(); err != nil {
		logger.Error("invalid owner address", "error", err)
		os.Exit(1)
	} else if ok {
		engine.SetOwner(owner)
	} else {
		logger.Warn("no owner configured; fee-bearing purchases will be rejected")
	}

	// Touch the metrics registry so collectors exist before the first scrape.
	observability.MarketplaceMetrics()
	if addr := cfg.MetricsAddress; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics server", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	server := rpc.NewServer(engine, eventLog)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}

// seedGenesis credits configured balances to accounts that do not exist yet.
// Existing accounts are left untouched so restarts do not re-mint.
func seedGenesis(manager *state.Manager, cfg *config.Config) error {
	genesis, err := cfg.Genesis()
	if err != nil {
		return err
	}
	for addr, balance := range genesis {
		existing, err := manager.GetAccount(addr[:])
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		account := &types.Account{Balance: new(big.Int).Set(balance)}
		if err := manager.PutAccount(addr[:], account); err != nil {
			return err
		}
	}
	return nil
}
