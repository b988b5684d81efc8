// Command indexer runs the scheduler and HTTP control surface as a single
// long-lived process.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mafzaal/letstalk-index/internal/app"
	"github.com/mafzaal/letstalk-index/internal/app/config"
	"github.com/mafzaal/letstalk-index/internal/app/storage/postgres"
	"github.com/mafzaal/letstalk-index/internal/platform/database"
	"github.com/mafzaal/letstalk-index/internal/platform/migrations"
	"github.com/mafzaal/letstalk-index/pkg/logger"
	"github.com/mafzaal/letstalk-index/pkg/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a JSON config file overriding the defaults")
		databaseDSN = flag.String("database-dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN; empty uses the in-memory job/report store")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.FullVersion())
		return
	}

	log := logger.NewFromEnv("indexer")

	defaultConfig, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := []app.Option{app.WithDefaultConfig(defaultConfig)}

	var stores app.Stores
	var db *sql.DB
	if *databaseDSN != "" {
		db, err = database.Open(context.Background(), *databaseDSN)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := migrations.Apply(db); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
		store := postgres.New(db)
		stores = app.Stores{Jobs: store, Reports: store}
		log.Info("using postgres-backed job and report stores")
	} else {
		log.Info("no database-dsn supplied, using in-memory job and report stores")
	}

	application, err := app.New(stores, log, opts...)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	log.Infof("indexer %s started", version.Version)

	<-ctx.Done()
	log.Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil {
		log.Fatalf("stop application: %v", err)
	}
	log.Info("shutdown complete")
}
