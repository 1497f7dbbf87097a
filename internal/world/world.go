// Package world steps a population of rigidly moving bodies forward in time
// without ever letting two of them come closer than their thickness.
//
// Every step runs the full pipeline: features are bounded by a broad phase,
// candidate pairs are grouped into islands, each island is handed to ACCD in
// parallel, and the world advances to the earliest time of impact.
package world

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/accd"
	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/geom"
	"github.com/racharron/abd/internal/island"
	"github.com/racharron/abd/internal/spatial"
)

// contactSlack widens the contact window around the advanced time.
const contactSlack = 1e-6

// Options configures a World.
type Options struct {
	TickRate   int         // Steps per second of wall time for Start
	Step       float64     // Simulated time per step
	Params     accd.Params // Thickness is replaced per pair by the sum of half thicknesses
	BroadPhase string      // config.BroadPhaseSAP or config.BroadPhaseGrid
	GridScale  float64     // Cell edge for the grid broad phase
	Workers    int         // Island workers (0 = NumCPU)
	Extent     float64     // Half edge of the arena
	Seed       int64       // Scene seed, recorded in step events
}

// OptionsFromConfig maps the application configuration onto world options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	params := accd.DefaultParams()
	params.Thickness = cfg.Sim.Thickness
	params.BarrierThickness = cfg.Sim.Barrier
	params.Scale = cfg.Sim.Scale
	params.DeltaScale = cfg.Sim.DeltaScale
	params.TimeStep = cfg.Sim.Step

	return Options{
		TickRate:   cfg.Sim.TickRate,
		Step:       cfg.Sim.Step,
		Params:     params,
		BroadPhase: cfg.BroadPhase.Kind,
		GridScale:  cfg.BroadPhase.GridScale,
		Workers:    cfg.Sim.Workers,
		Extent:     cfg.Scene.Extent,
		Seed:       cfg.Scene.Seed,
	}
}

// StepStats summarizes one step.
type StepStats struct {
	Step        uint64         `json:"step"`
	Time        float64        `json:"time"`
	Bodies      int            `json:"bodies"`
	Features    int            `json:"features"`
	Pairs       int            `json:"pairs"`
	Islands     int            `json:"islands"`
	Interacting int            `json:"interacting"`
	Contacts    int            `json:"contacts"`
	MinTOI      float64        `json:"minToi"`
	Hit         bool           `json:"hit"`
	Advanced    float64        `json:"advanced"`
	Bounces     int            `json:"bounces"`
	BroadPhase  string         `json:"broadPhase"`
	Duration    time.Duration  `json:"durationNs"`
	Queries     map[string]int `json:"queries"`
}

// World owns the bodies and runs the step pipeline.
type World struct {
	mu     sync.RWMutex
	opts   Options
	bodies []*Body

	// Rebuilt in place every step; body order and topology never change, so
	// its length and order are stable and sweep handles stay valid.
	features []Tagged
	sap      *spatial.SweepPrune[handle, mgl64.Vec3, handleContext]

	stepNum uint64
	time    float64

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	// Snapshot system for lock-free readers
	snapshotPool *SnapshotPool

	// Contact log for replay and debugging
	eventLog *EventLog

	// OnStep is called after every step, outside the world lock.
	// Set it before Start.
	OnStep func(StepStats)
}

// pairHit is a narrow-phase result in feature positions.
type pairHit struct {
	pair island.Pair
	toi  float64
}

// islandResult collects what one island worker found.
type islandResult struct {
	hits    []pairHit
	queries [4]int // Indexed like queryKinds
}

var queryKinds = [...]string{QueryPointTriangle, QuerySegmentSegment, QueryPointPoint, QueryPointSegment}

func queryIndex(kind string) int {
	for i, k := range queryKinds {
		if k == kind {
			return i
		}
	}
	return -1
}

// NewWorld creates a world over bodies. Body IDs are reassigned to their
// positions.
func NewWorld(opts Options, bodies []*Body) *World {
	if opts.TickRate <= 0 {
		opts.TickRate = 30
	}
	if opts.Step <= 0 {
		opts.Step = 1 / float64(opts.TickRate)
	}
	if opts.BroadPhase != config.BroadPhaseGrid {
		opts.BroadPhase = config.BroadPhaseSAP
	}
	if opts.GridScale <= 0 {
		opts.GridScale = 0.5
	}

	for i, b := range bodies {
		b.ID = i
	}

	w := &World{
		opts:         opts,
		bodies:       bodies,
		stopChan:     make(chan struct{}),
		snapshotPool: NewSnapshotPool(DefaultSnapshotLimits, len(bodies)),
		eventLog:     NewEventLog(),
	}
	w.refreshFeatures()
	return w
}

// Start begins the step loop
func (w *World) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ticker = time.NewTicker(time.Second / time.Duration(w.opts.TickRate))
	ticker := w.ticker
	w.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				w.Step()
			case <-w.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 World started at %d steps/s (%s broad phase, %d bodies)",
		w.opts.TickRate, w.opts.BroadPhase, len(w.bodies))
}

// Stop stops the step loop
func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.running = false
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopChan)
	log.Println("🛑 World stopped")
}

// Step advances the world once and returns its statistics.
func (w *World) Step() StepStats {
	w.mu.Lock()
	stats := w.step()
	w.mu.Unlock()

	if w.OnStep != nil {
		w.OnStep(stats)
	}
	return stats
}

func (w *World) step() StepStats {
	start := time.Now()
	step := w.opts.Step

	w.refreshFeatures()
	ctx := w.context()

	islands := w.broadPhase(ctx)
	interacting := island.Interacting(islands)

	results := make([]islandResult, len(interacting))
	err := island.Dispatch(context.Background(), interacting, w.opts.Workers,
		func(ctx context.Context, k int, is island.Island) error {
			return w.narrowPhase(ctx, is, &results[k])
		})
	if err != nil {
		log.Printf("⚠️ Narrow phase failed at step %d: %v", w.stepNum+1, err)
	}

	stats := StepStats{
		Bodies:      len(w.bodies),
		Features:    len(w.features),
		Islands:     len(islands),
		Interacting: len(interacting),
		MinTOI:      math.Inf(1),
		BroadPhase:  w.opts.BroadPhase,
		Queries:     make(map[string]int, len(queryKinds)),
	}
	for _, is := range interacting {
		stats.Pairs += len(is.Pairs)
	}

	var hits []pairHit
	for k := range results {
		hits = append(hits, results[k].hits...)
		for q, n := range results[k].queries {
			if n > 0 {
				stats.Queries[queryKinds[q]] += n
			}
		}
	}
	for _, h := range hits {
		stats.MinTOI = math.Min(stats.MinTOI, h.toi)
		stats.Hit = true
	}

	dt := step
	if stats.Hit {
		dt = math.Min(step, stats.MinTOI)
	}

	// Pairs that reach contact within the advanced interval
	cutoff := dt*(1+contactSlack) + 1e-12
	var contacts []pairHit
	for _, h := range hits {
		if h.toi <= cutoff {
			contacts = append(contacts, h)
		}
	}

	for _, b := range w.bodies {
		b.Advance(dt)
	}

	// Bodies in contact turn around, each at most once per step.
	reversed := make(map[int]bool)
	for _, c := range contacts {
		for _, id := range [2]int{w.features[c.pair.A].Collider, w.features[c.pair.B].Collider} {
			if !reversed[id] {
				reversed[id] = true
				w.bodies[id].Velocity = w.bodies[id].Velocity.Mul(-1)
			}
		}
	}

	var bounced []*Body
	for _, b := range w.bodies {
		if b.reflect(w.opts.Extent) {
			bounced = append(bounced, b)
		}
	}

	w.stepNum++
	w.time += dt

	stats.Step = w.stepNum
	stats.Time = w.time
	stats.Contacts = len(contacts)
	stats.Advanced = dt
	stats.Bounces = len(bounced)
	if !stats.Hit {
		stats.MinTOI = 0
	}
	stats.Duration = time.Since(start)

	w.emitEvents(stats, contacts, bounced)
	w.publish(stats, interacting, islands, contacts)
	return stats
}

// refreshFeatures rebuilds the feature slice from the current body state.
func (w *World) refreshFeatures() {
	w.features = w.features[:0]
	for _, b := range w.bodies {
		w.features = appendFeatures(w.features, b)
	}
}

// context bounds motion over one step, inflated so that any two features
// closer than the barrier share a candidate pair.
func (w *World) context() geom.UniformContext {
	offset := w.opts.Params.BarrierThickness / 2
	for _, b := range w.bodies {
		offset = math.Max(offset, b.HalfThickness)
	}
	return geom.UniformContext{StepSize: w.opts.Step, Offset: offset}
}

// broadPhase groups the features into islands. Island members and pairs are
// positions in w.features.
func (w *World) broadPhase(ctx geom.UniformContext) []island.Island {
	if w.opts.BroadPhase == config.BroadPhaseGrid {
		grid := spatial.NewTransientHashGrid[Tagged, mgl64.Vec3, geom.UniformContext](w.opts.GridScale)
		grid.AddAll(ctx, w.features)
		return island.Build[Tagged, geom.UniformContext](grid, ctx)
	}

	hctx := handleContext{Context: ctx, Collection: w.features}
	if w.sap == nil || w.sap.Len() != len(w.features) {
		handles := spatial.IndexAll[mgl64.Vec3, geom.UniformContext, Tagged](len(w.features))
		w.sap = spatial.NewSweepPrune[handle, mgl64.Vec3, handleContext](hctx, handles)
	} else {
		w.sap.Update(hctx)
	}
	return island.Build[handle, handleContext](w.sap, hctx)
}

// narrowPhase runs ACCD over every pair of an island.
func (w *World) narrowPhase(ctx context.Context, is island.Island, out *islandResult) error {
	for _, p := range is.Pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, b := w.features[p.A].Object, w.features[p.B].Object
		kind := queryKind(a.Kind, b.Kind)
		if kind == "" {
			continue
		}
		out.queries[queryIndex(kind)]++

		toi, hit := featureTOI(a, b, w.pairParams(a, b))
		if !hit {
			continue
		}
		// Resting contacts that are already separating must not stall the world.
		if toi == 0 && !approaching(a, b, w.opts.Step) {
			continue
		}
		out.hits = append(out.hits, pairHit{pair: p, toi: toi})
	}
	return nil
}

// pairParams specializes the configured ACCD parameters to a feature pair.
func (w *World) pairParams(a, b Feature) accd.Params {
	p := w.opts.Params
	p.Thickness = a.HalfThickness + b.HalfThickness
	if p.BarrierThickness <= p.Thickness {
		p.BarrierThickness = 2 * p.Thickness
	}
	p.TimeStep = w.opts.Step
	return p
}

func (w *World) emitEvents(stats StepStats, contacts []pairHit, bounced []*Body) {
	w.eventLog.EmitSimple(EventTypeStep, stats.Step, "", StepPayload{
		Seed:         w.opts.Seed,
		FeatureCount: stats.Features,
		StepSize:     w.opts.Step,
		Advanced:     stats.Advanced,
	})

	for _, c := range contacts {
		fa, fb := w.features[c.pair.A], w.features[c.pair.B]
		w.eventLog.EmitSimple(EventTypeContact, stats.Step, bodyPairKey(fa.Collider, fb.Collider), ContactPayload{
			FeatureA: c.pair.A,
			FeatureB: c.pair.B,
			BodyA:    fa.Collider,
			BodyB:    fb.Collider,
			Time:     c.toi,
			KindA:    fa.Object.Kind.String(),
			KindB:    fb.Object.Kind.String(),
		})
	}

	for _, b := range bounced {
		w.eventLog.EmitSimple(EventTypeWallBounce, stats.Step, fmt.Sprintf("wall-%d", b.ID), WallBouncePayload{
			BodyID:   b.ID,
			Velocity: [3]float64{b.Velocity[0], b.Velocity[1], b.Velocity[2]},
		})
	}
}

func bodyPairKey(a, b int) string {
	return fmt.Sprintf("%d-%d", min(a, b), max(a, b))
}

func (w *World) publish(stats StepStats, interacting, islands []island.Island, contacts []pairHit) {
	snap := w.snapshotPool.AcquireWrite()
	limits := w.snapshotPool.GetLimits()

	snap.Extent = w.opts.Extent
	for _, b := range w.bodies {
		snap.Bodies = append(snap.Bodies, BodySnapshot{
			ID:       b.ID,
			Kind:     b.Kind,
			Mesh:     b.Mesh,
			Position: b.Position,
			Velocity: b.Velocity,
		})
	}
	for _, is := range interacting {
		for _, p := range is.Pairs {
			snap.appendPair(limits, w.pairSnapshot(p))
		}
	}
	for _, c := range contacts {
		snap.appendContact(limits, ContactSnapshot{
			PairSnapshot: w.pairSnapshot(c.pair),
			Time:         c.toi,
			KindA:        w.features[c.pair.A].Object.Kind,
			KindB:        w.features[c.pair.B].Object.Kind,
		})
	}
	for _, is := range islands {
		snap.Islands = append(snap.Islands, len(is.Members))
	}
	snap.Stats = stats

	w.snapshotPool.PublishWrite(snap)
}

func (w *World) pairSnapshot(p island.Pair) PairSnapshot {
	return PairSnapshot{
		FeatureA: p.A,
		FeatureB: p.B,
		BodyA:    w.features[p.A].Collider,
		BodyB:    w.features[p.B].Collider,
	}
}

// GetSnapshot returns the latest published snapshot (lock-free)
func (w *World) GetSnapshot() *Snapshot {
	return w.snapshotPool.AcquireRead()
}

// Bodies returns copies of the current bodies.
func (w *World) Bodies() []Body {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Body, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = *b
	}
	return out
}

// Options returns the options the world runs with.
func (w *World) Options() Options {
	return w.opts
}

// StartEventLog starts the contact event log writing to path (empty keeps
// events in memory only).
func (w *World) StartEventLog(path string) error {
	return w.eventLog.Start(path)
}

// StopEventLog flushes and stops the event log.
func (w *World) StopEventLog() {
	w.eventLog.Stop()
}

// EventLog exposes the world's event log.
func (w *World) EventLog() *EventLog {
	return w.eventLog
}

// GetEventLogStats returns event log counters.
func (w *World) GetEventLogStats() map[string]interface{} {
	return w.eventLog.GetStats()
}
