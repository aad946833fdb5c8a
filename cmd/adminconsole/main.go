// Package main runs the local admin console gateway: a JSON surface over the
// review workflow engine, serving the dashboard, pending queues, marketplace
// management and session endpoints against the remote backend.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/refplatform/adminconsole/internal/apiclient"
	"github.com/refplatform/adminconsole/internal/config"
	"github.com/refplatform/adminconsole/internal/endpoint"
	"github.com/refplatform/adminconsole/internal/review"
	"github.com/refplatform/adminconsole/internal/session"
	"github.com/refplatform/adminconsole/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to console.yaml (optional)")
	flag.Parse()

	// Best-effort .env for local development.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}

	cfg := config.LoadConfigOrDefault(*configPath)

	engine, err := buildEngine(cfg)
	if err != nil {
		log.Fatalf("failed to initialize console: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(engine),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("admin console listening on http://%s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight cascade refreshes drain before exiting.
	engine.WaitCascades()
}

// buildEngine wires storage, endpoint resolution, the session and the request
// client into a review engine.
func buildEngine(cfg *config.Config) (*review.Engine, error) {
	state, err := storage.NewFileStore(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	resolver, err := endpoint.NewResolver(endpoint.Config{
		State:         state,
		Candidates:    cfg.Endpoints,
		ProbeInterval: cfg.ProbeInterval,
	})
	if err != nil {
		return nil, err
	}

	sess, err := session.NewStore(state)
	if err != nil {
		return nil, err
	}

	client, err := apiclient.New(apiclient.Config{
		Resolver: resolver,
		Session:  sess,
		Timeout:  cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	return review.NewEngine(client)
}
