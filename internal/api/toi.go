package api

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/accd"
	"github.com/racharron/abd/internal/world"
)

// ErrInvalidQuery marks malformed TOI requests.
var ErrInvalidQuery = errors.New("invalid toi query")

const (
	// MaxQueryRounds caps the restart limit a client may ask for.
	MaxQueryRounds = 4096
	// MaxQueryTimeStep caps the search horizon of a query.
	MaxQueryTimeStep = 1e3
	// MaxQueryMagnitude caps the absolute value of every coordinate and
	// velocity component.
	MaxQueryMagnitude = 1e6
)

// TOIRequest is a stateless time of impact query. Every vertex is
// [x, y, z, vx, vy, vz].
type TOIRequest struct {
	Kind   string      `json:"kind"`
	A      [][]float64 `json:"a"`
	B      [][]float64 `json:"b"`
	Params *TOIParams  `json:"params,omitempty"`
}

// TOIParams overrides accd.DefaultParams field by field.
type TOIParams struct {
	Thickness  *float64 `json:"thickness,omitempty"`
	Barrier    *float64 `json:"barrier,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
	TimeStep   *float64 `json:"timeStep,omitempty"`
	DeltaScale *float64 `json:"deltaScale,omitempty"`
	MaxRounds  *int     `json:"maxRounds,omitempty"`
}

// TOIResponse reports the first contact time; Time is null without a hit.
type TOIResponse struct {
	Hit  bool     `json:"hit"`
	Time *float64 `json:"time"`
}

// vertex counts of the two operands per query kind
var queryShapes = map[string][2]int{
	world.QueryPointTriangle:  {1, 3},
	world.QuerySegmentSegment: {2, 2},
	world.QueryPointPoint:     {1, 1},
	world.QueryPointSegment:   {1, 2},
}

// RunTOI validates req and runs the matching ACCD query. Validation failures
// wrap ErrInvalidQuery.
func RunTOI(req TOIRequest) (TOIResponse, error) {
	shape, ok := queryShapes[req.Kind]
	if !ok {
		return TOIResponse{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidQuery, req.Kind)
	}
	a, err := parseVertices("a", req.A, shape[0])
	if err != nil {
		return TOIResponse{}, err
	}
	b, err := parseVertices("b", req.B, shape[1])
	if err != nil {
		return TOIResponse{}, err
	}
	params, err := req.Params.resolve()
	if err != nil {
		return TOIResponse{}, err
	}

	var t float64
	var hit bool
	switch req.Kind {
	case world.QueryPointTriangle:
		t, hit = accd.PointTriangle(a[0], accd.Triangle3{A: b[0], B: b[1], C: b[2]}, params)
	case world.QuerySegmentSegment:
		t, hit = accd.SegmentSegment(accd.Segment3{A: a[0], B: a[1]}, accd.Segment3{A: b[0], B: b[1]}, params)
	case world.QueryPointPoint:
		t, hit = accd.PointPoint(a[0], b[0], params)
	case world.QueryPointSegment:
		t, hit = accd.PointSegment(a[0], accd.Segment3{A: b[0], B: b[1]}, params)
	}

	if !hit {
		return TOIResponse{}, nil
	}
	return TOIResponse{Hit: true, Time: &t}, nil
}

func parseVertices(name string, raw [][]float64, want int) ([]accd.Vertex3, error) {
	if len(raw) != want {
		return nil, fmt.Errorf("%w: %s needs %d vertices, got %d", ErrInvalidQuery, name, want, len(raw))
	}
	out := make([]accd.Vertex3, want)
	for i, v := range raw {
		if len(v) != 6 {
			return nil, fmt.Errorf("%w: %s[%d] must be [x,y,z,vx,vy,vz]", ErrInvalidQuery, name, i)
		}
		for _, c := range v {
			if math.IsNaN(c) || math.Abs(c) > MaxQueryMagnitude {
				return nil, fmt.Errorf("%w: %s[%d] components must be finite and within ±%g", ErrInvalidQuery, name, i, MaxQueryMagnitude)
			}
		}
		out[i] = accd.Vertex3{
			Position: mgl64.Vec3{v[0], v[1], v[2]},
			Velocity: mgl64.Vec3{v[3], v[4], v[5]},
		}
	}
	return out, nil
}

// resolve applies the overrides to the defaults and checks the result.
func (p *TOIParams) resolve() (accd.Params, error) {
	params := accd.DefaultParams()
	if p != nil {
		if p.Thickness != nil {
			params.Thickness = *p.Thickness
		}
		if p.Barrier != nil {
			params.BarrierThickness = *p.Barrier
		}
		if p.Scale != nil {
			params.Scale = *p.Scale
		}
		if p.TimeStep != nil {
			params.TimeStep = *p.TimeStep
		}
		if p.DeltaScale != nil {
			params.DeltaScale = *p.DeltaScale
		}
		if p.MaxRounds != nil {
			params.MaxRounds = *p.MaxRounds
		}
	}

	switch {
	case params.Thickness < 0:
		return params, fmt.Errorf("%w: thickness must not be negative", ErrInvalidQuery)
	case params.BarrierThickness <= params.Thickness:
		return params, fmt.Errorf("%w: barrier must exceed thickness", ErrInvalidQuery)
	case params.Scale <= 0 || params.Scale >= 1:
		return params, fmt.Errorf("%w: scale must be inside (0, 1)", ErrInvalidQuery)
	case params.TimeStep <= 0 || params.TimeStep > MaxQueryTimeStep:
		return params, fmt.Errorf("%w: timeStep must be within (0, %g]", ErrInvalidQuery, MaxQueryTimeStep)
	case params.DeltaScale <= 0 || params.DeltaScale >= 1:
		return params, fmt.Errorf("%w: deltaScale must be inside (0, 1)", ErrInvalidQuery)
	case params.MaxRounds < 0 || params.MaxRounds > MaxQueryRounds:
		return params, fmt.Errorf("%w: maxRounds must be within [0, %d]", ErrInvalidQuery, MaxQueryRounds)
	}
	return params, nil
}
