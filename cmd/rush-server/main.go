// Package main is the entry point for the Resource Rush economy server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ResourceRush/server/internal/config"
	"github.com/MRamiBalles/ResourceRush/server/internal/domain/registry"
	"github.com/MRamiBalles/ResourceRush/server/internal/engine"
	"github.com/MRamiBalles/ResourceRush/server/internal/events"
	"github.com/MRamiBalles/ResourceRush/server/internal/infra/cache"
	"github.com/MRamiBalles/ResourceRush/server/internal/infra/storage"
	"github.com/MRamiBalles/ResourceRush/server/internal/network"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/clock"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/logger"
	"github.com/MRamiBalles/ResourceRush/server/internal/platform/metrics"
	"github.com/MRamiBalles/ResourceRush/server/internal/savegame"
)

const shutdownTimeout = 30 * time.Second

// ledgerPersisterAdapter translates ledger entries to storage records.
type ledgerPersisterAdapter struct {
	repo storage.LedgerRepository
}

func (a *ledgerPersisterAdapter) Append(entry events.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.repo.Append(ctx, storage.LedgerRecord{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		EntryType: string(entry.Type),
		UserID:    entry.UserID,
		Amount:    entry.Amount,
		Details:   entry.Details,
	})
}

// memoryLedgerView serves recaps from the in-memory ledger tail when no
// database is configured.
type memoryLedgerView struct {
	ledger *events.Ledger
}

func (m memoryLedgerView) Append(context.Context, storage.LedgerRecord) error { return nil }

func (m memoryLedgerView) GetByUser(_ context.Context, userID string) ([]storage.LedgerRecord, error) {
	return toRecords(m.ledger.GetByUser(userID)), nil
}

func (m memoryLedgerView) GetByType(_ context.Context, entryType string) ([]storage.LedgerRecord, error) {
	return toRecords(m.ledger.GetByType(events.EntryType(entryType))), nil
}

func toRecords(entries []events.Entry) []storage.LedgerRecord {
	recs := make([]storage.LedgerRecord, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, storage.LedgerRecord{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			EntryType: string(e.Type),
			UserID:    e.UserID,
			Amount:    e.Amount,
			Details:   e.Details,
		})
	}
	return recs
}

// openStore returns the save KV and the durable ledger for the configured driver.
// The ledger repository is nil for the memory driver.
func openStore(ctx context.Context, cfg config.Config, appLogger *logger.Logger) (storage.KV, storage.LedgerRepository, *sql.DB, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		appLogger.Info("Initializing SQLite database %q...", cfg.Store.SQLitePath)
		db, err := storage.InitSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewSQLiteKV(db), storage.NewSQLiteLedgerRepository(db), db, nil
	case config.DriverPostgres:
		appLogger.Info("Connecting to PostgreSQL...")
		db, err := storage.InitPostgres(ctx, cfg.Store.PostgresDSN, cfg.Tuning.DBMaxOpenConns, cfg.Tuning.DBMaxIdleConns)
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewPostgresKV(db), storage.NewPostgresLedgerRepository(db), db, nil
	default:
		appLogger.Warn("Using the in-memory store. Saves do not survive a restart.")
		return storage.NewMemoryKV(), nil, nil, nil
	}
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadFile(path)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	log.Println("[RUSH-SERVER] Initializing Resource Rush economy server...")
	appLogger := logger.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
	log.Println("[RUSH-SERVER] Shutdown complete.")
}

func run(cfg config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Loading definition registry...")
	reg, err := loadRegistry(cfg.Server.CatalogPath)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	appLogger.Info("Registry ready: %d generators, %d quests", reg.GeneratorCount(), reg.QuestCount())

	kv, ledgerRepo, db, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if db != nil {
		defer db.Close()
	}
	saveCache, err := cache.NewSaveCache(kv, cfg.Store.CacheSize)
	if err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	saves := savegame.NewRepository(saveCache, cfg.Economy.SaveVersion, clock.RealClock{})

	appLogger.Info("Bootstrapping economy ledger...")
	var persister events.Persister
	if ledgerRepo != nil {
		persister = &ledgerPersisterAdapter{repo: ledgerRepo}
	}
	ledger := events.NewLedger(persister, events.DefaultLedgerLimit, func(e events.Entry, err error) {
		appLogger.Error("Failed to persist ledger entry %s for %s: %v", e.Type, e.UserID, err)
	})
	if ledgerRepo == nil {
		ledgerRepo = memoryLedgerView{ledger: ledger}
	}
	recaps := storage.NewReconstructor(ledgerRepo)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger, cfg.Tuning)

	appLogger.Info("Bootstrapping Engine...")
	eng, err := engine.New(engine.Options{
		Registry: reg,
		Economy:  cfg.Economy,
		Saves:    saves,
		Notifier: hub,
		Ledger:   ledger,
		Logger:   appLogger,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	eng.Start(ctx)

	// Setup API Routes
	mux := http.NewServeMux()
	mux.Handle("/ws", network.NewServer(hub, eng, appLogger, cfg.Tuning))
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		snap, err := eng.Snapshot(r.URL.Query().Get("user"))
		if err != nil {
			http.Error(w, "no active session", http.StatusNotFound)
			return
		}
		writeJSON(w, snap)
	})
	mux.HandleFunc("/api/ledger", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			http.Error(w, "missing user", http.StatusBadRequest)
			return
		}
		var since time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "since must be RFC3339", http.StatusBadRequest)
				return
			}
			since = t
		}
		recap, err := recaps.GenerateRecap(r.Context(), userID, since)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		totals, err := recaps.Totals(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"totals": totals, "recap": recap})
	})
	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status":   "ok",
			"sessions": eng.Sessions().Len(),
			"clients":  hub.Count(),
		})
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("[RUSH-SERVER] HTTP API & WS Server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[RUSH-SERVER] Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("HTTP shutdown: %v", err)
		}
		// Every session gets its final save, and queued ledger rows their
		// write, before the store closes.
		err := eng.Shutdown(shutdownCtx)
		if cerr := ledger.Close(shutdownCtx); cerr != nil {
			appLogger.Warn("Ledger drain: %v", cerr)
		}
		return err
	})

	log.Println("[RUSH-SERVER] Server running. Press Ctrl+C to exit.")
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[RUSH-SERVER] write response: %v", err)
	}
}
