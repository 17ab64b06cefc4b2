// Command terrain runs the profile and LOD HTTP server. Layers are uploaded
// over the API and indexed on first use; profile runs are persisted when a
// database path is given.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/terrain.profile/internal/api"
	"github.com/banshee-data/terrain.profile/internal/config"
	"github.com/banshee-data/terrain.profile/internal/layerdb"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbPath     = flag.String("db", "layers.db", "SQLite database path (empty disables persistence)")
	configPath = flag.String("config", "", "Engine config JSON path (optional)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.DefaultEngineConfig()
	if *configPath != "" {
		loaded, err := config.LoadEngineConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
		log.Printf("loaded engine config from %s", *configPath)
	}

	var db *layerdb.LayerDB
	if *dbPath != "" {
		var err error
		db, err = layerdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := api.NewServer(cfg, db).ServeMux()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("got request %q", r.URL.Path)
		mux.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:    *listen,
		Handler: h,
	}

	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
