// Package meshload reads triangle meshes from glTF 2.0 files into the vertex,
// edge and face lists the world decomposes into collision features.
package meshload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrNoTriangles is returned when a document has no triangle primitives.
var ErrNoTriangles = errors.New("meshload: no triangle primitives")

// ErrBadAccessor is returned when a primitive names an accessor the document
// does not have.
var ErrBadAccessor = errors.New("meshload: accessor out of range")

// Mesh is an indexed triangle mesh. Edges are unique and undirected with the
// lower vertex index first.
type Mesh struct {
	Vertices []mgl64.Vec3
	Edges    [][2]int
	Faces    [][3]int
}

// Load decodes the .gltf or .glb file at path.
func Load(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh %s: %w", path, err)
	}
	m, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mesh %s: %w", path, err)
	}
	return m, nil
}

// Decode reads a glTF document from r and merges all triangle primitives of
// all meshes into one Mesh. Node transforms are not applied.
func Decode(r io.Reader) (*Mesh, error) {
	doc := gltf.NewDocument()
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("gltf: %w", err)
	}

	b := newBuilder()
	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				log.Printf("⚠️ Skipping mesh %d primitive %d: mode %v is not triangles", mi, pi, prim.Mode)
				continue
			}
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				return nil, fmt.Errorf("mesh %d primitive %d: missing POSITION", mi, pi)
			}
			if posIdx < 0 || posIdx >= len(doc.Accessors) {
				return nil, fmt.Errorf("mesh %d primitive %d: POSITION accessor %d of %d: %w",
					mi, pi, posIdx, len(doc.Accessors), ErrBadAccessor)
			}
			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d positions: %w", mi, pi, err)
			}

			var indices []uint32
			if prim.Indices != nil {
				if *prim.Indices < 0 || *prim.Indices >= len(doc.Accessors) {
					return nil, fmt.Errorf("mesh %d primitive %d: indices accessor %d of %d: %w",
						mi, pi, *prim.Indices, len(doc.Accessors), ErrBadAccessor)
				}
				indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
				if err != nil {
					return nil, fmt.Errorf("mesh %d primitive %d indices: %w", mi, pi, err)
				}
			} else {
				indices = make([]uint32, len(positions))
				for i := range indices {
					indices[i] = uint32(i)
				}
			}
			if err := b.addPrimitive(positions, indices); err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
		}
	}

	if len(b.mesh.Faces) == 0 {
		return nil, ErrNoTriangles
	}
	return b.mesh, nil
}

type builder struct {
	mesh  *Mesh
	edges map[[2]int]bool
}

func newBuilder() *builder {
	return &builder{
		mesh:  &Mesh{},
		edges: make(map[[2]int]bool),
	}
}

func (b *builder) addPrimitive(positions [][3]float32, indices []uint32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%d indices is not a whole number of triangles", len(indices))
	}
	base := len(b.mesh.Vertices)
	for _, p := range positions {
		b.mesh.Vertices = append(b.mesh.Vertices, mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
	}
	for i := 0; i < len(indices); i += 3 {
		var f [3]int
		for k := 0; k < 3; k++ {
			idx := int(indices[i+k])
			if idx >= len(positions) {
				return fmt.Errorf("index %d out of range for %d vertices", idx, len(positions))
			}
			f[k] = base + idx
		}
		b.addFace(f)
	}
	return nil
}

func (b *builder) addFace(f [3]int) {
	b.mesh.Faces = append(b.mesh.Faces, f)
	b.addEdge(f[0], f[1])
	b.addEdge(f[1], f[2])
	b.addEdge(f[2], f[0])
}

func (b *builder) addEdge(i, j int) {
	e := [2]int{min(i, j), max(i, j)}
	if b.edges[e] {
		return
	}
	b.edges[e] = true
	b.mesh.Edges = append(b.mesh.Edges, e)
}

// Box returns a closed axis-aligned box mesh centered on the origin.
func Box(half mgl64.Vec3) *Mesh {
	b := newBuilder()
	for i := 0; i < 8; i++ {
		v := half
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) == 0 {
				v[axis] = -v[axis]
			}
		}
		b.mesh.Vertices = append(b.mesh.Vertices, v)
	}
	// Corner i has bit k set when it sits on the positive side of axis k.
	quads := [][4]int{
		{0, 2, 6, 4}, // -x
		{1, 5, 7, 3}, // +x
		{0, 4, 5, 1}, // -y
		{2, 3, 7, 6}, // +y
		{0, 1, 3, 2}, // -z
		{4, 6, 7, 5}, // +z
	}
	for _, q := range quads {
		b.addFace([3]int{q[0], q[1], q[2]})
		b.addFace([3]int{q[0], q[2], q[3]})
	}
	return b.mesh
}

// Bounds returns the (min, max) box of the vertices.
func (m *Mesh) Bounds() (mgl64.Vec3, mgl64.Vec3) {
	if len(m.Vertices) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	lo, hi := m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for axis := 0; axis < 3; axis++ {
			lo[axis] = min(lo[axis], v[axis])
			hi[axis] = max(hi[axis], v[axis])
		}
	}
	return lo, hi
}
