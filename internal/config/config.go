// Package config provides centralized configuration management.
// Every tunable of the simulation server is declared here with its default
// and the environment variable that overrides it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the stepping and narrow-phase settings.
type SimConfig struct {
	TickRate   int     // World steps per second of wall time
	Step       float64 // Simulated time per step
	Thickness  float64 // Contact thickness between two features
	Barrier    float64 // Distance at which an approach is accepted as contact
	Scale      float64 // Fraction of the gap an ACCD round halts at
	DeltaScale float64 // ACCD advancement factor, inside (0, 1)
	Workers    int     // Island workers (0 = NumCPU)
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:   30,
		Step:       1.0 / 30,
		Thickness:  1e-3,
		Barrier:    2e-3,
		Scale:      0.1,
		DeltaScale: 0.9,
		Workers:    0,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if r := getEnvInt("SIM_TICK_RATE", 0); r > 0 {
		cfg.TickRate = r
	}
	if s := getEnvFloat("SIM_STEP", 0); s > 0 {
		cfg.Step = s
	}
	if v := getEnvFloat("SIM_THICKNESS", 0); v > 0 {
		cfg.Thickness = v
	}
	if v := getEnvFloat("SIM_BARRIER", 0); v > 0 {
		cfg.Barrier = v
	}
	if v := getEnvFloat("SIM_SCALE", 0); v > 0 && v < 1 {
		cfg.Scale = v
	}
	if v := getEnvFloat("SIM_DELTA_SCALE", 0); v > 0 && v < 1 {
		cfg.DeltaScale = v
	}
	if w := getEnvInt("SIM_WORKERS", -1); w >= 0 {
		cfg.Workers = w
	}
	// The barrier must sit outside the thickness or no round ever accepts.
	if cfg.Barrier <= cfg.Thickness {
		cfg.Barrier = 2 * cfg.Thickness
	}

	return cfg
}

// TickInterval is the wall time between steps.
func (c SimConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// BROAD PHASE CONFIGURATION
// =============================================================================

const (
	BroadPhaseSAP  = "sap"
	BroadPhaseGrid = "grid"
)

// BroadPhaseConfig selects the candidate pair structure.
type BroadPhaseConfig struct {
	Kind      string  // "sap" or "grid"
	GridScale float64 // Cell edge length for the hash grid
}

// DefaultBroadPhase returns the default broad phase configuration.
func DefaultBroadPhase() BroadPhaseConfig {
	return BroadPhaseConfig{
		Kind:      BroadPhaseSAP,
		GridScale: 0.5,
	}
}

// BroadPhaseFromEnv returns broad phase configuration with environment variable overrides.
func BroadPhaseFromEnv() BroadPhaseConfig {
	cfg := DefaultBroadPhase()

	switch strings.ToLower(os.Getenv("BROADPHASE")) {
	case BroadPhaseGrid:
		cfg.Kind = BroadPhaseGrid
	case BroadPhaseSAP:
		cfg.Kind = BroadPhaseSAP
	}
	if s := getEnvFloat("GRID_SCALE", 0); s > 0 {
		cfg.GridScale = s
	}

	return cfg
}

// =============================================================================
// SCENE CONFIGURATION
// =============================================================================

// SceneConfig describes the initial population.
type SceneConfig struct {
	Particles int     // Free particles
	Extent    float64 // Half edge of the cubic arena
	Seed      int64   // Random seed for positions and velocities
	MeshPath  string  // Optional .gltf/.glb file for the mesh bodies
	Speed     float64 // Maximum initial body speed
}

// DefaultScene returns the default scene configuration.
func DefaultScene() SceneConfig {
	return SceneConfig{
		Particles: 200,
		Extent:    5,
		Seed:      342,
		MeshPath:  "",
		Speed:     1,
	}
}

// SceneFromEnv returns scene configuration with environment variable overrides.
func SceneFromEnv() SceneConfig {
	cfg := DefaultScene()

	if n := getEnvInt("SCENE_PARTICLES", -1); n >= 0 {
		cfg.Particles = n
	}
	if e := getEnvFloat("SCENE_EXTENT", 0); e > 0 {
		cfg.Extent = e
	}
	if s := getEnvInt("SCENE_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}
	cfg.MeshPath = getEnvString("SCENE_MESH", cfg.MeshPath)
	if v := getEnvFloat("SCENE_SPEED", 0); v > 0 {
		cfg.Speed = v
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // Bearer token for control endpoints; empty disables them
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := getEnvString("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	cfg.AdminToken = getEnvString("ADMIN_TOKEN", cfg.AdminToken)

	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds snapshot image settings.
type RenderConfig struct {
	Width  int     // Image width in pixels
	Height int     // Image height in pixels
	Scale  float64 // Pixels per world unit
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		Width:  800,
		Height: 800,
		Scale:  70,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()

	if w := getEnvInt("RENDER_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("RENDER_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if s := getEnvFloat("RENDER_SCALE", 0); s > 0 {
		cfg.Scale = s
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// DebugConfig controls the pprof/metrics server.
type DebugConfig struct {
	Enabled  bool
	Addr     string // Bind address, localhost only by default
	User     string // Basic auth user; empty disables auth
	Password string
}

// DefaultDebug returns the default debug server configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled: true,
		Addr:    "127.0.0.1:6060",
	}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()

	cfg.Enabled = getEnvBool("DEBUG_ENABLED", cfg.Enabled)
	cfg.Addr = getEnvString("DEBUG_ADDR", cfg.Addr)
	cfg.User = getEnvString("DEBUG_USER", cfg.User)
	cfg.Password = getEnvString("DEBUG_PASS", cfg.Password)

	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig controls the contact event log.
type EventLogConfig struct {
	Path string // JSONL output file; empty keeps events in memory only
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{Path: ""}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	return EventLogConfig{Path: getEnvString("EVENT_LOG_PATH", "")}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim        SimConfig
	BroadPhase BroadPhaseConfig
	Scene      SceneConfig
	Server     ServerConfig
	Render     RenderConfig
	Debug      DebugConfig
	EventLog   EventLogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:        SimFromEnv(),
		BroadPhase: BroadPhaseFromEnv(),
		Scene:      SceneFromEnv(),
		Server:     ServerFromEnv(),
		Render:     RenderFromEnv(),
		Debug:      DebugFromEnv(),
		EventLog:   EventLogFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
