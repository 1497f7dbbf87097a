package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/racharron/abd/internal/config"
)

func TestRunRejectsFlags(t *testing.T) {
	tests := []struct {
		name         string
		steps, every int
	}{
		{"zero every", 10, 0},
		{"negative every", 10, -3},
		{"zero steps", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "frames")
			if err := run(config.AppConfig{}, tt.steps, tt.every, out); err == nil {
				t.Fatal("Expected an error")
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("Expected no output dir, got %v", err)
			}
		})
	}
}

func TestRunWritesFrames(t *testing.T) {
	t.Setenv("SCENE_PARTICLES", "10")
	t.Setenv("RENDER_WIDTH", "64")
	t.Setenv("RENDER_HEIGHT", "64")
	out := filepath.Join(t.TempDir(), "frames")

	if err := run(config.Load(), 4, 2, out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	frames, err := filepath.Glob(filepath.Join(out, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Errorf("Expected 2 frames, got %v", frames)
	}
}
