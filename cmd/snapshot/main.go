// Command snapshot runs the world headless for a fixed number of steps and
// writes PNG frames of it.
//
// USAGE:
//
//	go run ./cmd/snapshot -steps 300 -every 10 -out frames
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/render"
	"github.com/racharron/abd/internal/world"
)

func main() {
	steps := flag.Int("steps", 300, "number of world steps to run")
	every := flag.Int("every", 10, "write a frame every N steps")
	outDir := flag.String("out", "frames", "output directory for PNG frames")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	if err := run(config.Load(), *steps, *every, *outDir); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(cfg config.AppConfig, steps, every int, outDir string) error {
	if steps <= 0 || every <= 0 {
		return fmt.Errorf("steps and every must be positive (got %d, %d)", steps, every)
	}
	bodies, err := world.SceneFromConfig(cfg.Scene, cfg.Sim.Thickness/2)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	w := world.NewWorld(world.OptionsFromConfig(cfg), bodies)
	renderer := render.NewRenderer(cfg.Render)

	start := time.Now()
	var contacts, frames int
	var simulated float64
	for i := 1; i <= steps; i++ {
		stats := w.Step()
		contacts += stats.Contacts
		simulated = stats.Time

		if i%every != 0 {
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("frame_%05d.png", i))
		if err := writeFrame(renderer, w.GetSnapshot(), path); err != nil {
			return err
		}
		frames++
	}

	log.Printf("✅ %d steps (t=%.3f) in %v: %d contacts, %d frames in %s",
		steps, simulated, time.Since(start).Round(time.Millisecond), contacts, frames, outDir)
	return nil
}

func writeFrame(r *render.Renderer, snap *world.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if err := r.EncodePNG(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
