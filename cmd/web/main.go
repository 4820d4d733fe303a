package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"oqas/internal/app"
	"oqas/internal/db"
)

func main() {
	cfg := app.LoadConfig()

	ctx := context.Background()
	conn, err := db.OpenPostgresWithConfig(ctx, cfg.DBDSN, db.PostgresConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.EnsureSchema(ctx, conn); err != nil {
		log.Printf("schema error: %v", err)
		os.Exit(1)
	}
	runID, err := db.RecordAppRun(ctx, conn)
	if err != nil {
		log.Printf("app run error: %v", err)
		os.Exit(1)
	}

	r := app.NewRouter(cfg, conn, runID)

	log.Printf("oqas web listening on %s (run %d)", cfg.HTTPAddr, runID)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
