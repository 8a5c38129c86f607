package tilestage

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// RenderCommand is a single draw instruction emitted during tree traversal.
type RenderCommand struct {
	Image     *ebiten.Image
	Transform [6]float64
	Color     Color
}

// renderer collects and submits draw commands for the world tree.
type renderer struct {
	commands []RenderCommand
	op       ebiten.DrawImageOptions

	// cullBounds is the screen rectangle; sprites entirely outside it are
	// skipped.
	cullBounds Rect
	cullActive bool
}

// traverse walks the tree depth-first in painter order and emits a command
// for every visible sprite. World transforms must be current.
func (r *renderer) traverse(n *Node) {
	if !n.Visible || n.worldAlpha <= 0 {
		return
	}
	if n.Type == NodeTypeSprite && n.Image != nil {
		if !r.cullActive || !shouldCull(n, r.cullBounds) {
			c := n.Color
			c.A *= n.worldAlpha
			r.commands = append(r.commands, RenderCommand{
				Image:     n.Image,
				Transform: n.worldTransform,
				Color:     c,
			})
		}
	}
	for _, child := range n.paintOrder() {
		r.traverse(child)
	}
}

// draw traverses root and submits every command to screen.
func (r *renderer) draw(screen *ebiten.Image, root *Node) {
	r.commands = r.commands[:0]
	b := screen.Bounds()
	r.cullBounds = Rect{X: float64(b.Min.X), Y: float64(b.Min.Y), Width: float64(b.Dx()), Height: float64(b.Dy())}
	r.cullActive = true
	r.traverse(root)
	for i := range r.commands {
		r.submit(screen, &r.commands[i])
	}
}

func (r *renderer) submit(screen *ebiten.Image, cmd *RenderCommand) {
	r.op.GeoM.Reset()
	t := cmd.Transform
	r.op.GeoM.SetElement(0, 0, t[0])
	r.op.GeoM.SetElement(1, 0, t[1])
	r.op.GeoM.SetElement(0, 1, t[2])
	r.op.GeoM.SetElement(1, 1, t[3])
	r.op.GeoM.SetElement(0, 2, t[4])
	r.op.GeoM.SetElement(1, 2, t[5])

	r.op.ColorScale.Reset()
	c := cmd.Color
	if c != ColorWhite {
		r.op.ColorScale.Scale(float32(c.R*c.A), float32(c.G*c.A), float32(c.B*c.A), float32(c.A))
	}
	screen.DrawImage(cmd.Image, &r.op)
}

// worldAABB computes the axis-aligned bounding box of a (w, h) rectangle
// transformed by the given affine matrix.
func worldAABB(transform [6]float64, w, h float64) Rect {
	a, b, cc, d, tx, ty := transform[0], transform[2], transform[1], transform[3], transform[4], transform[5]

	x0, y0 := tx, ty
	x1, y1 := a*w+tx, cc*w+ty
	x2, y2 := a*w+b*h+tx, cc*w+d*h+ty
	x3, y3 := b*h+tx, d*h+ty

	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// shouldCull reports whether a sprite lies entirely outside bounds.
func shouldCull(n *Node, bounds Rect) bool {
	ib := n.Image.Bounds()
	w, h := float64(ib.Dx()), float64(ib.Dy())
	if w == 0 && h == 0 {
		return false
	}
	return !worldAABB(n.worldTransform, w, h).Intersects(bounds)
}
