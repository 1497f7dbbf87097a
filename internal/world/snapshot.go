package world

import (
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/meshload"
)

// SnapshotLimits caps the per-snapshot slices so a crowded step cannot grow
// them without bound.
type SnapshotLimits struct {
	MaxPairs    int
	MaxContacts int
}

// DefaultSnapshotLimits provides the default caps
var DefaultSnapshotLimits = SnapshotLimits{
	MaxPairs:    4096,
	MaxContacts: 512,
}

// BodySnapshot is an immutable copy of a body's state.
type BodySnapshot struct {
	ID       int            `json:"id"`
	Kind     BodyKind       `json:"kind"`
	Mesh     *meshload.Mesh `json:"-"` // Shared, read-only
	Position mgl64.Vec3     `json:"position"`
	Velocity mgl64.Vec3     `json:"velocity"`
}

// PairSnapshot is a broad-phase candidate pair of features.
type PairSnapshot struct {
	FeatureA int `json:"featureA"`
	FeatureB int `json:"featureB"`
	BodyA    int `json:"bodyA"`
	BodyB    int `json:"bodyB"`
}

// ContactSnapshot is a narrow-phase contact reported during the step.
type ContactSnapshot struct {
	PairSnapshot
	Time  float64     `json:"time"`
	KindA FeatureKind `json:"kindA"`
	KindB FeatureKind `json:"kindB"`
}

// Snapshot is a complete world state for readers. It is never modified
// after publication.
type Snapshot struct {
	Sequence  uint64    // Monotonic sequence for ordering
	Timestamp time.Time // When the snapshot was created
	Extent    float64

	Bodies   []BodySnapshot
	Pairs    []PairSnapshot
	Contacts []ContactSnapshot
	Islands  []int // Island sizes

	Stats StepStats
}

// SnapshotPool hands out fresh snapshots to the producer and publishes them
// to readers through an atomic pointer. A published snapshot stays valid for
// as long as a reader holds it.
type SnapshotPool struct {
	latest   atomic.Pointer[Snapshot]
	limits   SnapshotLimits
	bodies   int
	sequence uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool whose first read is an empty snapshot
func NewSnapshotPool(limits SnapshotLimits, bodies int) *SnapshotPool {
	pool := &SnapshotPool{limits: limits, bodies: bodies}
	pool.latest.Store(&Snapshot{})
	return pool
}

// AcquireWrite returns a new snapshot for the producer to fill
func (p *SnapshotPool) AcquireWrite() *Snapshot {
	prev := p.latest.Load()
	return &Snapshot{
		Sequence:  atomic.AddUint64(&p.sequence, 1),
		Timestamp: time.Now(),
		Bodies:    make([]BodySnapshot, 0, p.bodies),
		Pairs:     make([]PairSnapshot, 0, min(len(prev.Pairs), p.limits.MaxPairs)),
		Contacts:  make([]ContactSnapshot, 0, min(len(prev.Contacts), p.limits.MaxContacts)),
		Islands:   make([]int, 0, len(prev.Islands)),
	}
}

// PublishWrite makes snap the latest snapshot. The producer must not touch
// snap afterwards.
func (p *SnapshotPool) PublishWrite(snap *Snapshot) {
	p.latest.Store(snap)
}

// AcquireRead gets the latest complete snapshot
// Before the first publish it returns an empty snapshot with Sequence 0
func (p *SnapshotPool) AcquireRead() *Snapshot {
	return p.latest.Load()
}

// GetLimits returns the snapshot limits
func (p *SnapshotPool) GetLimits() SnapshotLimits {
	return p.limits
}

// appendPair adds a pair unless the cap is reached.
func (s *Snapshot) appendPair(limits SnapshotLimits, p PairSnapshot) {
	if len(s.Pairs) < limits.MaxPairs {
		s.Pairs = append(s.Pairs, p)
	}
}

// appendContact adds a contact unless the cap is reached.
func (s *Snapshot) appendContact(limits SnapshotLimits, c ContactSnapshot) {
	if len(s.Contacts) < limits.MaxContacts {
		s.Contacts = append(s.Contacts, c)
	}
}
