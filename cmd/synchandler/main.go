// Spins up the sync-handler cache: a record store with its cache index, served over the Redis protocol for
// sync clients and over HTTP for operators.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/DikiCook/wp-calypso/pkg/cacheindex"
	"github.com/DikiCook/wp-calypso/pkg/port"
	"github.com/DikiCook/wp-calypso/pkg/store"
	"github.com/DikiCook/wp-calypso/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	storeBackend = flag.String("store_backend", "file", "Record store backend: memory/file/postgres/rest.")
	dataDir      = flag.String("data_dir", "./data", "Directory holding record files (file backend).")
	postgresDSN  = flag.String("postgres_dsn", "", "Postgres connection string (postgres backend).")
	recordsURL   = flag.String("records_url", "", "Base URL of the remote record service (rest backend).")
)

// newStore builds the record store selected by --store_backend.
func newStore(ctx context.Context) (store.Store, error) {
	switch *storeBackend {
	case "memory":
		return store.NewMemory(), nil
	case "file":
		return store.NewFile(*dataDir)
	case "postgres":
		return store.OpenPostgres(ctx, *postgresDSN)
	case "rest":
		return store.NewREST(*recordsURL)
	default:
		return nil, fmt.Errorf("unknown store backend '%s'", *storeBackend)
	}
}

func main() {
	flag.Parse()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Sync handler build info.", "version", utils.Version, "commit", utils.Commit,
			"build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	recordStore, err := newStore(ctx)
	if err != nil {
		slog.Error("Failed to create the record store.", "err", err)
		os.Exit(1)
	}
	index, err := cacheindex.New(recordStore)
	if err != nil {
		slog.Error("Failed to create the cache index.", "err", err)
		os.Exit(1)
	}
	backend, err := port.NewSyncBackend(recordStore, index)
	if err != nil {
		slog.Error("Failed to create the sync backend.", "err", err)
		os.Exit(1)
	}

	// If either server fails, the shared context takes the other one down too.
	servers, ctx := errgroup.WithContext(ctx)
	servers.Go(func() error { return port.RunRedisServer(ctx, backend) })
	servers.Go(func() error { return port.RunAdminServer(ctx, backend) })
	if err := servers.Wait(); err != nil {
		slog.Error("Sync handler stopped.", "err", err)
		os.Exit(1)
	}
}
