package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/codeclub/liveclass/internal/api"
	"github.com/codeclub/liveclass/internal/config"
	"github.com/codeclub/liveclass/internal/editor"
	"github.com/codeclub/liveclass/internal/event"
	"github.com/codeclub/liveclass/internal/mock"
	"github.com/codeclub/liveclass/internal/roster"
	"github.com/codeclub/liveclass/internal/runner"
	"github.com/codeclub/liveclass/internal/session"
	"github.com/codeclub/liveclass/internal/stats"
	"github.com/codeclub/liveclass/internal/submission"
	"github.com/codeclub/liveclass/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Seed a demo roster and generate synthetic activity")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	var dir *roster.Roster
	if *mockMode {
		dir = mock.Seed()
	} else {
		dir, err = roster.LoadFile(cfg.Roster.Path)
		if err != nil {
			log.Fatalf("Failed to load roster %s: %v", cfg.Roster.Path, err)
		}
	}

	var eventLog event.Log
	var subs submission.Store
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		eventLog = event.NewPostgresLog(db)
		subs = submission.NewPostgresStore(db)
		log.Println("Using postgres event log and submission store")
	} else {
		eventLog = event.NewMemoryLog()
		subs = submission.NewMemoryStore()
		log.Println("Using in-memory event log and submission store")
	}

	broadcaster := ws.NewBroadcaster()
	tracker, err := stats.NewTracker(stats.NewStore(""))
	if err != nil {
		log.Fatalf("Failed to load stats: %v", err)
	}
	deriver := session.NewDeriver(eventLog, dir, subs, session.MultiPublisher{broadcaster, tracker})

	execClient := runner.NewClient(cfg.Execution.URL, cfg.Execution.Timeout)
	execSvc := runner.NewService(execClient, subs, dir, deriver, cfg.Execution.Timeout)
	deriver.SetExecutor(execSvc)

	registry := editor.NewRegistry()
	gateway := ws.NewGateway(registry, dir, broadcaster, cfg.Server.AuthToken, cfg.Server.AllowedOrigins)

	server := api.NewServer(&api.Options{
		Address:   fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Deriver:   deriver,
		Log:       eventLog,
		WSHandler: http.HandlerFunc(gateway.HandleWS),
		Stats:     tracker,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	if *mockMode {
		log.Println("Starting in mock mode")
		mock.NewGenerator(deriver).Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
