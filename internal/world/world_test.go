package world

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"

	"github.com/racharron/abd/internal/accd"
	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/geom"
	"github.com/racharron/abd/internal/meshload"
)

const testHalfThickness = 5e-4

func testOptions(broadPhase string) Options {
	params := accd.DefaultParams()
	params.Thickness = 2 * testHalfThickness
	params.BarrierThickness = 4 * testHalfThickness
	return Options{
		TickRate:   30,
		Step:       1.0 / 30,
		Params:     params,
		BroadPhase: broadPhase,
		GridScale:  0.25,
		Workers:    4,
		Extent:     2,
		Seed:       342,
	}
}

func particle(pos, vel mgl64.Vec3) *Body {
	return &Body{Kind: BodyParticle, Position: pos, Velocity: vel, HalfThickness: testHalfThickness}
}

// TestFeatureInteractsWith checks which feature kinds reach the narrow phase
func TestFeatureInteractsWith(t *testing.T) {
	point := Feature{Kind: FeaturePoint}
	particlePoint := Feature{Kind: FeaturePoint, Particle: true}
	edge := Feature{Kind: FeatureEdge}
	face := Feature{Kind: FeatureFace}

	tests := []struct {
		name string
		a, b Feature
		want bool
	}{
		{"point-face", point, face, true},
		{"face-point", face, point, true},
		{"edge-edge", edge, edge, true},
		{"mesh point-point", point, point, false},
		{"particle point-point", particlePoint, point, true},
		{"mesh point-edge", point, edge, false},
		{"particle point-edge", particlePoint, edge, true},
		{"edge-particle point", edge, particlePoint, true},
		{"edge-face", edge, face, false},
		{"face-face", face, face, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.InteractsWith(tt.b, geom.UniformContext{StepSize: 1, Offset: testHalfThickness}); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestQueryKind checks the narrow-phase dispatch names
func TestQueryKind(t *testing.T) {
	tests := []struct {
		a, b FeatureKind
		want string
	}{
		{FeaturePoint, FeatureFace, QueryPointTriangle},
		{FeatureFace, FeaturePoint, QueryPointTriangle},
		{FeatureEdge, FeatureEdge, QuerySegmentSegment},
		{FeaturePoint, FeaturePoint, QueryPointPoint},
		{FeaturePoint, FeatureEdge, QueryPointSegment},
		{FeatureEdge, FeaturePoint, QueryPointSegment},
		{FeatureFace, FeatureFace, ""},
		{FeatureEdge, FeatureFace, ""},
	}

	for _, tt := range tests {
		if got := queryKind(tt.a, tt.b); got != tt.want {
			t.Errorf("Expected %q for %v-%v, got %q", tt.want, tt.a, tt.b, got)
		}
	}
}

// TestAppendFeatures checks body decomposition order and tags
func TestAppendFeatures(t *testing.T) {
	box := &Body{ID: 3, Kind: BodyMesh, Mesh: meshload.Box(mgl64.Vec3{1, 1, 1}), Position: mgl64.Vec3{5, 0, 0}}
	features := appendFeatures(nil, box)

	if len(features) != 8+18+12 {
		t.Fatalf("Expected 38 features, got %d", len(features))
	}
	counts := map[FeatureKind]int{}
	last := FeaturePoint
	for _, f := range features {
		if f.Collider != 3 {
			t.Errorf("Expected collider 3, got %d", f.Collider)
		}
		if f.Object.Kind < last {
			t.Errorf("Expected points, then edges, then faces; got %v after %v", f.Object.Kind, last)
		}
		last = f.Object.Kind
		counts[f.Object.Kind]++
	}
	if counts[FeaturePoint] != 8 || counts[FeatureEdge] != 18 || counts[FeatureFace] != 12 {
		t.Errorf("Expected 8/18/12 features, got %v", counts)
	}
	if p := features[0].Object.Verts[0].Position; p[0] < 3.9 || p[0] > 6.1 {
		t.Errorf("Expected vertices offset by the body position, got %v", p)
	}

	p := particle(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{})
	features = appendFeatures(features[:0], p)
	if len(features) != 1 || features[0].Object.Kind != FeaturePoint || !features[0].Object.Particle {
		t.Errorf("Expected a single particle point, got %+v", features)
	}
}

// TestHeadOnParticles checks that two particles stop short of each other and turn around
func TestHeadOnParticles(t *testing.T) {
	for _, bp := range []string{config.BroadPhaseSAP, config.BroadPhaseGrid} {
		t.Run(bp, func(t *testing.T) {
			opts := testOptions(bp)
			opts.Step = 1
			opts.Extent = 10
			w := NewWorld(opts, []*Body{
				particle(mgl64.Vec3{-0.5, 0, 0}, mgl64.Vec3{1, 0, 0}),
				particle(mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{-1, 0, 0}),
			})

			stats := w.Step()
			if !stats.Hit || stats.Contacts != 1 {
				t.Fatalf("Expected one contact, got %+v", stats)
			}
			if stats.Advanced <= 0.49 || stats.Advanced >= 0.5 {
				t.Errorf("Expected to advance just short of 0.5, got %v", stats.Advanced)
			}
			if stats.Queries[QueryPointPoint] != 1 {
				t.Errorf("Expected one point-point query, got %v", stats.Queries)
			}

			bodies := w.Bodies()
			gap := bodies[1].Position[0] - bodies[0].Position[0]
			if gap < 2*testHalfThickness {
				t.Errorf("Expected gap of at least the thickness, got %v", gap)
			}
			if bodies[0].Velocity[0] != -1 || bodies[1].Velocity[0] != 1 {
				t.Errorf("Expected reversed velocities, got %v and %v", bodies[0].Velocity, bodies[1].Velocity)
			}

			// Separating now: the resting pair must not stall the world.
			stats = w.Step()
			if stats.Contacts != 0 {
				t.Errorf("Expected no contact while separating, got %d", stats.Contacts)
			}
			if stats.Advanced != 1 {
				t.Errorf("Expected a full step, got %v", stats.Advanced)
			}
		})
	}
}

// TestWallReflection checks bodies bounce off the arena bounds
func TestWallReflection(t *testing.T) {
	opts := testOptions(config.BroadPhaseSAP)
	opts.Step = 0.1
	opts.Extent = 1
	w := NewWorld(opts, []*Body{particle(mgl64.Vec3{0.95, 0, 0}, mgl64.Vec3{1, 0, 0})})

	stats := w.Step()
	if stats.Bounces != 1 {
		t.Errorf("Expected 1 bounce, got %d", stats.Bounces)
	}
	b := w.Bodies()[0]
	if b.Velocity[0] != -1 {
		t.Errorf("Expected velocity -1 after bounce, got %v", b.Velocity[0])
	}
	if math.Abs(b.Position[0]-1.05) > 1e-12 {
		t.Errorf("Expected position 1.05, got %v", b.Position[0])
	}

	// Moving inwards again: no second bounce
	if stats = w.Step(); stats.Bounces != 0 {
		t.Errorf("Expected no bounce while returning, got %d", stats.Bounces)
	}
}

// minFeatureGap is the smallest distance between interacting features.
func minFeatureGap(w *World) float64 {
	ctx := w.context()
	best := math.Inf(1)
	for i := range w.features {
		for j := i + 1; j < len(w.features); j++ {
			a, b := w.features[i], w.features[j]
			if !a.InteractsWith(b, ctx) {
				continue
			}
			best = math.Min(best, featureDistanceSqr(a.Object, b.Object, 0))
		}
	}
	return math.Sqrt(best)
}

// TestStepKeepsBodiesSeparated runs a crowded scene and checks no two features
// ever come closer than the thickness
func TestStepKeepsBodiesSeparated(t *testing.T) {
	for _, bp := range []string{config.BroadPhaseSAP, config.BroadPhaseGrid} {
		t.Run(bp, func(t *testing.T) {
			opts := testOptions(bp)
			scene := config.SceneConfig{Particles: 30, Extent: opts.Extent, Seed: 342, Speed: 2}
			w := NewWorld(opts, NewScene(scene, testHalfThickness, nil))

			var stats StepStats
			for i := 0; i < 60; i++ {
				stats = w.Step()
				w.refreshFeatures()
				if gap := minFeatureGap(w); gap < 2*testHalfThickness*0.999 {
					t.Fatalf("Step %d: expected gap of at least %v, got %v", stats.Step, 2*testHalfThickness, gap)
				}
			}
			if stats.Time <= 0 {
				t.Errorf("Expected simulated time to advance, got %v", stats.Time)
			}
		})
	}
}

// TestSnapshotPublished checks a step publishes a readable snapshot
func TestSnapshotPublished(t *testing.T) {
	opts := testOptions(config.BroadPhaseSAP)
	scene := config.SceneConfig{Particles: 10, Extent: opts.Extent, Seed: 342, Speed: 1}
	w := NewWorld(opts, NewScene(scene, testHalfThickness, nil))

	if snap := w.GetSnapshot(); snap.Sequence != 0 {
		t.Errorf("Expected empty snapshot before the first step, got sequence %d", snap.Sequence)
	}

	stats := w.Step()
	snap := w.GetSnapshot()
	if snap.Sequence != 1 {
		t.Errorf("Expected sequence 1, got %d", snap.Sequence)
	}
	if len(snap.Bodies) != 12 {
		t.Errorf("Expected 12 bodies, got %d", len(snap.Bodies))
	}
	if snap.Stats.Step != stats.Step {
		t.Errorf("Expected stats of step %d, got %d", stats.Step, snap.Stats.Step)
	}
	total := 0
	for _, n := range snap.Islands {
		total += n
	}
	if total != stats.Features {
		t.Errorf("Expected islands to cover %d features, got %d", stats.Features, total)
	}
	if len(snap.Pairs) != min(stats.Pairs, DefaultSnapshotLimits.MaxPairs) {
		t.Errorf("Expected %d pairs, got %d", stats.Pairs, len(snap.Pairs))
	}
}

// TestSnapshotPoolLimits checks the caps and that each write gets a new snapshot
func TestSnapshotPoolLimits(t *testing.T) {
	limits := SnapshotLimits{MaxPairs: 2, MaxContacts: 1}
	pool := NewSnapshotPool(limits, 0)

	snap := pool.AcquireWrite()
	for i := 0; i < 5; i++ {
		snap.appendPair(limits, PairSnapshot{FeatureA: i})
		snap.appendContact(limits, ContactSnapshot{Time: float64(i)})
	}
	if len(snap.Pairs) != 2 || len(snap.Contacts) != 1 {
		t.Errorf("Expected 2 pairs and 1 contact, got %d and %d", len(snap.Pairs), len(snap.Contacts))
	}
	pool.PublishWrite(snap)

	if read := pool.AcquireRead(); read != snap {
		t.Error("Expected to read the published snapshot")
	}
	next := pool.AcquireWrite()
	if next == snap {
		t.Error("Expected writer to get a new snapshot")
	}
	if len(next.Pairs) != 0 || next.Sequence != 2 {
		t.Errorf("Expected empty snapshot with sequence 2, got %d pairs, sequence %d", len(next.Pairs), next.Sequence)
	}
	if len(snap.Pairs) != 2 || snap.Sequence != 1 {
		t.Errorf("Expected published snapshot untouched, got %d pairs, sequence %d", len(snap.Pairs), snap.Sequence)
	}
}

// TestSnapshotHeldAcrossSteps keeps a snapshot while the world moves on.
func TestSnapshotHeldAcrossSteps(t *testing.T) {
	opts := testOptions(config.BroadPhaseSAP)
	scene := config.SceneConfig{Particles: 10, Extent: opts.Extent, Seed: 342, Speed: 1}
	w := NewWorld(opts, NewScene(scene, testHalfThickness, nil))

	w.Step()
	held := w.GetSnapshot()
	seq, step := held.Sequence, held.Stats.Step
	positions := make([]mgl64.Vec3, len(held.Bodies))
	for i, b := range held.Bodies {
		positions[i] = b.Position
	}
	pairs := len(held.Pairs)

	for i := 0; i < 6; i++ {
		w.Step()
	}

	if latest := w.GetSnapshot(); latest == held || latest.Sequence != seq+6 {
		t.Errorf("Expected a newer snapshot with sequence %d, got %d", seq+6, latest.Sequence)
	}
	if held.Sequence != seq || held.Stats.Step != step {
		t.Errorf("Expected held snapshot at sequence %d step %d, got %d step %d",
			seq, step, held.Sequence, held.Stats.Step)
	}
	if len(held.Bodies) != len(positions) || len(held.Pairs) != pairs {
		t.Fatalf("Expected %d bodies and %d pairs, got %d and %d",
			len(positions), pairs, len(held.Bodies), len(held.Pairs))
	}
	for i, b := range held.Bodies {
		if b.Position != positions[i] {
			t.Errorf("Body %d: expected position %v, got %v", b.ID, positions[i], b.Position)
		}
	}
}

// TestEventLogWriter checks events reach the sink as JSON lines
func TestEventLogWriter(t *testing.T) {
	el := NewEventLog()
	if el.EmitSimple(EventTypeStep, 1, "", StepPayload{}) {
		t.Error("Expected Emit to fail before Start")
	}

	var buf bytes.Buffer
	if err := el.StartWriter(&buf); err != nil {
		t.Fatalf("StartWriter failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		el.EmitSimple(EventTypeContact, uint64(i), "", ContactPayload{BodyA: 0, BodyB: 1, Time: 0.5})
	}
	el.Stop()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("Expected JSON line, got error: %v", err)
	}
	if ev.Type != EventTypeContact || ev.Sequence != 1 {
		t.Errorf("Expected first contact event, got type %v sequence %d", ev.Type, ev.Sequence)
	}
	var payload ContactPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.BodyB != 1 {
		t.Errorf("Expected contact payload, got %+v (%v)", payload, err)
	}

	stats := el.GetStats()
	if stats["written"].(uint64) != 3 {
		t.Errorf("Expected 3 written, got %v", stats["written"])
	}
}

// TestEventLogConcurrentEmit emits from several goroutines while the writer
// drains the ring.
func TestEventLogConcurrentEmit(t *testing.T) {
	const producers, perProducer = 4, 200

	el := NewEventLog()
	var buf bytes.Buffer
	if err := el.StartWriter(&buf); err != nil {
		t.Fatalf("StartWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				el.EmitSimple(EventTypeStep, uint64(i), "", StepPayload{Seed: int64(p)})
				if i%50 == 0 {
					el.GetStats()
				}
			}
		}(p)
	}
	wg.Wait()
	el.Stop()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != producers*perProducer {
		t.Fatalf("Expected %d lines, got %d", producers*perProducer, len(lines))
	}
	seen := make(map[uint64]bool, len(lines))
	for _, line := range lines {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("Expected JSON line, got error: %v", err)
		}
		if ev.Type != EventTypeStep {
			t.Fatalf("Expected step event, got %v", ev.Type)
		}
		if seen[ev.Sequence] {
			t.Fatalf("Sequence %d written twice", ev.Sequence)
		}
		seen[ev.Sequence] = true
	}
	if el.GetDroppedCount() != 0 {
		t.Errorf("Expected no drops, got %d", el.GetDroppedCount())
	}
}

// TestEventLogDropsOldest overfills the ring without a writer.
func TestEventLogDropsOldest(t *testing.T) {
	const extra = 76

	el := NewEventLog()
	el.globalLimiter = rate.NewLimiter(rate.Inf, 0)
	el.running.Store(true)

	for i := 0; i < EventBufferSize+extra; i++ {
		el.EmitSimple(EventTypeStep, uint64(i), "", nil)
	}
	if got := el.GetDroppedCount(); got != extra {
		t.Errorf("Expected %d dropped, got %d", extra, got)
	}

	var all []Event
	for {
		batch := el.collectBatch(nil)
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
	}
	if len(all) != EventBufferSize {
		t.Fatalf("Expected %d buffered events, got %d", EventBufferSize, len(all))
	}
	if all[0].Sequence != extra+1 || all[len(all)-1].Sequence != EventBufferSize+extra {
		t.Errorf("Expected sequences %d..%d, got %d..%d",
			extra+1, EventBufferSize+extra, all[0].Sequence, all[len(all)-1].Sequence)
	}
}

// TestEventLogKeyLimit checks a single body pair cannot flood the log
func TestEventLogKeyLimit(t *testing.T) {
	el := NewEventLog()
	el.StartWriter(nil)
	defer el.Stop()

	accepted := 0
	for i := 0; i < 100; i++ {
		if el.EmitSimple(EventTypeContact, 1, "0-1", nil) {
			accepted++
		}
	}
	if accepted == 0 || accepted >= 10 {
		t.Errorf("Expected a handful of accepted events, got %d", accepted)
	}
	if el.GetDroppedCount() != uint64(100-accepted) {
		t.Errorf("Expected %d dropped, got %d", 100-accepted, el.GetDroppedCount())
	}

	// Other keys keep their own budget
	if !el.EmitSimple(EventTypeContact, 1, "2-3", nil) {
		t.Error("Expected a fresh key to be accepted")
	}
}

// TestWorldStartStop verifies the loop starts and stops without panics
func TestWorldStartStop(t *testing.T) {
	opts := testOptions(config.BroadPhaseSAP)
	w := NewWorld(opts, NewScene(config.SceneConfig{Particles: 5, Extent: 2, Seed: 1, Speed: 1}, testHalfThickness, nil))

	steps := make(chan StepStats, 100)
	w.OnStep = func(s StepStats) {
		select {
		case steps <- s:
		default:
		}
	}

	w.Start()
	select {
	case s := <-steps:
		if s.Step == 0 {
			t.Error("Expected a numbered step")
		}
	case <-time.After(2 * time.Second):
		t.Error("Expected a step within 2s")
	}
	w.Stop()

	// Should not panic on double stop
	w.Stop()
}

// TestNewScene checks scene layout
func TestNewScene(t *testing.T) {
	cfg := config.SceneConfig{Particles: 50, Extent: 4, Seed: 342, Speed: 1}
	bodies := NewScene(cfg, testHalfThickness, nil)

	if len(bodies) != 52 {
		t.Fatalf("Expected 52 bodies, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b.ID != i {
			t.Errorf("Expected ID %d, got %d", i, b.ID)
		}
		if b.HalfThickness != testHalfThickness {
			t.Errorf("Expected half thickness %v, got %v", testHalfThickness, b.HalfThickness)
		}
	}
	if bodies[0].Kind != BodyMesh || bodies[1].Kind != BodyMesh {
		t.Error("Expected the first two bodies to be meshes")
	}
	for _, p := range bodies[2:] {
		for _, m := range bodies[:2] {
			lo, hi := m.Bounds()
			if p.Position[0] > lo[0] && p.Position[0] < hi[0] &&
				p.Position[1] > lo[1] && p.Position[1] < hi[1] &&
				p.Position[2] > lo[2] && p.Position[2] < hi[2] {
				t.Errorf("Particle %d placed inside mesh body %d", p.ID, m.ID)
			}
		}
	}

	// Same seed, same scene
	again := NewScene(cfg, testHalfThickness, nil)
	if again[10].Position != bodies[10].Position {
		t.Error("Expected a deterministic scene for a fixed seed")
	}
}

// TestFitMesh checks a loaded mesh is centered and scaled
func TestFitMesh(t *testing.T) {
	m := &meshload.Mesh{
		Vertices: []mgl64.Vec3{{10, 10, 10}, {14, 12, 10}, {10, 10, 11}},
		Faces:    [][3]int{{0, 1, 2}},
	}
	fit := fitMesh(m, 1)
	lo, hi := fit.Bounds()
	if math.Abs(hi[0]-1) > 1e-12 || math.Abs(lo[0]+1) > 1e-12 {
		t.Errorf("Expected x in [-1, 1], got [%v, %v]", lo[0], hi[0])
	}
	if math.Abs(hi[1]-0.5) > 1e-12 {
		t.Errorf("Expected y max 0.5, got %v", hi[1])
	}
	if m.Vertices[0] != (mgl64.Vec3{10, 10, 10}) {
		t.Error("Expected the source mesh to be left untouched")
	}
}

// TestOptionsFromConfig checks config mapping
func TestOptionsFromConfig(t *testing.T) {
	cfg := config.AppConfig{
		Sim:        config.DefaultSim(),
		BroadPhase: config.DefaultBroadPhase(),
		Scene:      config.DefaultScene(),
	}
	opts := OptionsFromConfig(cfg)
	if opts.Step != cfg.Sim.Step || opts.Params.TimeStep != cfg.Sim.Step {
		t.Errorf("Expected step %v, got %v / %v", cfg.Sim.Step, opts.Step, opts.Params.TimeStep)
	}
	if opts.Params.BarrierThickness != cfg.Sim.Barrier {
		t.Errorf("Expected barrier %v, got %v", cfg.Sim.Barrier, opts.Params.BarrierThickness)
	}
	if opts.BroadPhase != config.BroadPhaseSAP {
		t.Errorf("Expected sap, got %q", opts.BroadPhase)
	}
}

// TestPairParams checks the barrier always sits outside the pair thickness
func TestPairParams(t *testing.T) {
	opts := testOptions(config.BroadPhaseSAP)
	opts.Params.BarrierThickness = 1e-4
	w := NewWorld(opts, nil)

	p := w.pairParams(Feature{HalfThickness: 1e-3}, Feature{HalfThickness: 2e-3})
	if math.Abs(p.Thickness-3e-3) > 1e-15 {
		t.Errorf("Expected thickness 3e-3, got %v", p.Thickness)
	}
	if p.BarrierThickness <= p.Thickness {
		t.Errorf("Expected barrier above thickness, got %v <= %v", p.BarrierThickness, p.Thickness)
	}
}

// -----------------------------------------------------------------------------
// Benchmarks
// -----------------------------------------------------------------------------

func benchmarkStep(b *testing.B, bp string) {
	opts := testOptions(bp)
	opts.Extent = 5
	w := NewWorld(opts, NewScene(config.SceneConfig{Particles: 200, Extent: 5, Seed: 342, Speed: 1}, testHalfThickness, nil))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step()
	}
}

func BenchmarkStepSAP(b *testing.B) {
	benchmarkStep(b, config.BroadPhaseSAP)
}

func BenchmarkStepGrid(b *testing.B) {
	benchmarkStep(b, config.BroadPhaseGrid)
}
