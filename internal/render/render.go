// Package render draws world snapshots as orthographic XY projections.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/world"
)

// Body palette, cycled by body ID
var palette = []string{"#4fc3f7", "#81c784", "#ffb74d", "#ba68c8", "#f06292", "#4db6ac", "#dce775"}

var (
	backgroundColor = color.RGBA{12, 12, 28, 255}
	gridColor       = color.RGBA{30, 30, 45, 255}
	arenaColor      = color.RGBA{90, 90, 120, 255}
	pairColor       = color.RGBA{255, 255, 255, 40}
	contactColor    = color.RGBA{255, 62, 62, 255}
	textColor       = color.RGBA{220, 220, 230, 255}
)

// Renderer draws snapshots into a reused canvas.
type Renderer struct {
	cfg config.RenderConfig
	mu  sync.Mutex
	dc  *gg.Context
}

// NewRenderer creates a renderer with a canvas of the configured size.
func NewRenderer(cfg config.RenderConfig) *Renderer {
	return &Renderer{
		cfg: cfg,
		dc:  gg.NewContext(cfg.Width, cfg.Height),
	}
}

// Render draws snap and returns a copy of the frame.
func (r *Renderer) Render(snap *world.Snapshot) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	src := r.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.(*image.RGBA).Pix)
	return dst
}

// EncodePNG draws snap and writes it to w as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *world.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draw(snap)
	if err := r.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (r *Renderer) draw(snap *world.Snapshot) {
	dc := r.dc
	r.drawBackground(dc, snap.Extent)

	positions := make(map[int]mgl64.Vec3, len(snap.Bodies))
	for _, b := range snap.Bodies {
		positions[b.ID] = b.Position
	}

	// Candidate pairs link the bodies they belong to
	dc.SetColor(pairColor)
	dc.SetLineWidth(1)
	for _, p := range snap.Pairs {
		a, b := positions[p.BodyA], positions[p.BodyB]
		ax, ay := r.project(a)
		bx, by := r.project(b)
		dc.DrawLine(ax, ay, bx, by)
		dc.Stroke()
	}

	for _, b := range snap.Bodies {
		if b.Kind == world.BodyMesh && b.Mesh != nil {
			r.drawMesh(dc, b)
		} else {
			r.drawParticle(dc, b)
		}
	}

	// Contacts ring both bodies
	dc.SetColor(contactColor)
	dc.SetLineWidth(2)
	for _, c := range snap.Contacts {
		for _, id := range [2]int{c.BodyA, c.BodyB} {
			x, y := r.project(positions[id])
			dc.DrawCircle(x, y, 6)
			dc.Stroke()
		}
	}

	r.drawUI(dc, snap)
}

// project maps world XY onto the canvas, Y up.
func (r *Renderer) project(p mgl64.Vec3) (float64, float64) {
	return float64(r.cfg.Width)/2 + p[0]*r.cfg.Scale,
		float64(r.cfg.Height)/2 - p[1]*r.cfg.Scale
}

func (r *Renderer) drawBackground(dc *gg.Context, extent float64) {
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, float64(r.cfg.Width), float64(r.cfg.Height))
	dc.Fill()

	// One line per world unit
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	cx, cy := float64(r.cfg.Width)/2, float64(r.cfg.Height)/2
	if r.cfg.Scale >= 4 {
		for x := cx; x < float64(r.cfg.Width); x += r.cfg.Scale {
			dc.DrawLine(x, 0, x, float64(r.cfg.Height))
			dc.DrawLine(2*cx-x, 0, 2*cx-x, float64(r.cfg.Height))
		}
		for y := cy; y < float64(r.cfg.Height); y += r.cfg.Scale {
			dc.DrawLine(0, y, float64(r.cfg.Width), y)
			dc.DrawLine(0, 2*cy-y, float64(r.cfg.Width), 2*cy-y)
		}
		dc.Stroke()
	}

	if extent > 0 {
		dc.SetColor(arenaColor)
		dc.SetLineWidth(2)
		half := extent * r.cfg.Scale
		dc.DrawRectangle(cx-half, cy-half, 2*half, 2*half)
		dc.Stroke()
	}
}

func (r *Renderer) drawMesh(dc *gg.Context, b world.BodySnapshot) {
	c := bodyColor(b.ID)
	vertex := func(i int) (float64, float64) {
		return r.project(b.Position.Add(b.Mesh.Vertices[i]))
	}

	fill := c
	fill.A = 60
	dc.SetColor(fill)
	for _, f := range b.Mesh.Faces {
		x0, y0 := vertex(f[0])
		x1, y1 := vertex(f[1])
		x2, y2 := vertex(f[2])
		dc.MoveTo(x0, y0)
		dc.LineTo(x1, y1)
		dc.LineTo(x2, y2)
		dc.ClosePath()
		dc.Fill()
	}

	dc.SetColor(c)
	dc.SetLineWidth(1.5)
	for _, e := range b.Mesh.Edges {
		x0, y0 := vertex(e[0])
		x1, y1 := vertex(e[1])
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}

	dc.SetColor(color.White)
	for i := range b.Mesh.Vertices {
		x, y := vertex(i)
		dc.DrawCircle(x, y, 2)
		dc.Fill()
	}
}

func (r *Renderer) drawParticle(dc *gg.Context, b world.BodySnapshot) {
	x, y := r.project(b.Position)
	dc.SetColor(bodyColor(b.ID))
	dc.DrawCircle(x, y, 3)
	dc.Fill()
}

func (r *Renderer) drawUI(dc *gg.Context, snap *world.Snapshot) {
	s := snap.Stats
	dc.SetColor(textColor)
	dc.DrawString(fmt.Sprintf("step %d  t=%.3f  dt=%.4f", s.Step, s.Time, s.Advanced), 10, 20)
	dc.DrawString(fmt.Sprintf("%s  pairs %d  islands %d  contacts %d", s.BroadPhase, s.Pairs, s.Interacting, s.Contacts), 10, 36)
}

func bodyColor(id int) color.RGBA {
	return parseHexColor(palette[id%len(palette)])
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.RGBA{r, g, b, 255}
}
