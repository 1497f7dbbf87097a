package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/racharron/abd/internal/api"
	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/render"
	"github.com/racharron/abd/internal/world"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ABD - CONTINUOUS COLLISION")
	log.Println("🎮 ================================")

	appConfig := config.Load()
	simCfg := appConfig.Sim
	sceneCfg := appConfig.Scene

	bodies, err := world.SceneFromConfig(sceneCfg, simCfg.Thickness/2)
	if err != nil {
		log.Fatalf("Failed to build scene: %v", err)
	}
	if sceneCfg.MeshPath != "" {
		log.Printf("📦 Mesh: %s", sceneCfg.MeshPath)
	}

	opts := world.OptionsFromConfig(appConfig)
	w := world.NewWorld(opts, bodies)
	opts = w.Options()
	log.Printf("🎮 Config: %d steps/s, step %.4g, thickness %.3g, barrier %.3g, %d particles",
		opts.TickRate, opts.Step, opts.Params.Thickness, opts.Params.BarrierThickness, sceneCfg.Particles)

	// Start event log
	if err := w.StartEventLog(appConfig.EventLog.Path); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if appConfig.EventLog.Path != "" {
		log.Printf("📝 Event log: %s", appConfig.EventLog.Path)
	}

	// Start debug server
	if err := api.StartDebugServer(api.ObservabilityFromConfig(appConfig.Debug)); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	w.OnStep = func(stats world.StepStats) {
		api.RecordStep(stats, opts.Step)
		events := w.EventLog()
		api.UpdateEventLogStats(events.GetTotalCount(), events.GetDroppedCount())
	}

	renderer := render.NewRenderer(appConfig.Render)
	server := api.NewServer(w, renderer, appConfig.Server)

	w.Start()

	addr := ":" + strconv.Itoa(appConfig.Server.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("📱 Stream: ws://localhost%s/ws", addr)
		if appConfig.Server.AdminToken == "" {
			log.Println("⚠️ ADMIN_TOKEN not set - control endpoints disabled")
		}

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ %v", err)
	}
	w.Stop()
	w.StopEventLog()
	log.Println("👋 Goodbye!")
}
