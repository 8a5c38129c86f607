package tilestage

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// DefaultSmoothing is the per-tick follow factor used when none is configured.
const DefaultSmoothing = 0.1

// scrollAnim holds active scroll-to tweens for the camera offset.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// Camera is the offset of the world container: a world point p is drawn at
// screen position p + (X, Y).
type Camera struct {
	// X and Y are the world container offset in screen pixels.
	X, Y float64
	// Viewport is the screen-space rectangle the world is drawn into.
	Viewport Rect
	// Smoothing is the fraction of the remaining distance covered per tick
	// while following. 1 snaps.
	Smoothing float64

	following bool
	target    uint32

	// BoundsEnabled clamps the offset so the visible area stays within Bounds.
	BoundsEnabled bool
	// Bounds is the world-space rectangle the view is clamped to.
	Bounds Rect

	scrollTween *scrollAnim
}

// newCamera creates a Camera for the given viewport.
func newCamera(viewport Rect, smoothing float64) *Camera {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = DefaultSmoothing
	}
	return &Camera{Viewport: viewport, Smoothing: smoothing}
}

// SetFollowTarget makes the camera track the entity with the given id.
// Any running scroll is cancelled.
func (c *Camera) SetFollowTarget(id uint32) {
	c.following = true
	c.target = id
	c.scrollTween = nil
}

// ClearFollowTarget stops tracking. The offset is left where it is.
func (c *Camera) ClearFollowTarget() {
	c.following = false
	c.target = 0
}

// FollowTarget returns the followed entity id.
func (c *Camera) FollowTarget() (uint32, bool) {
	return c.target, c.following
}

// SetPosition sets the offset directly, for drivers such as cutscenes or
// free-look. It does not clear the follow target.
func (c *Camera) SetPosition(x, y float64) {
	c.X, c.Y = x, y
	c.ClampToBounds()
}

// CenterOn sets the offset so the world point (wx, wy) is at the viewport
// center.
func (c *Camera) CenterOn(wx, wy float64) {
	c.SetPosition(c.offsetFor(wx, wy))
}

// ScrollTo animates the view to center the world point (wx, wy) over
// duration seconds. Ignored while following an entity.
func (c *Camera) ScrollTo(wx, wy float64, duration float32, easeFn ease.TweenFunc) {
	if c.following {
		return
	}
	if easeFn == nil {
		easeFn = ease.InOutQuad
	}
	tx, ty := c.offsetFor(wx, wy)
	c.scrollTween = &scrollAnim{
		tweenX: gween.New(float32(c.X), float32(tx), duration, easeFn),
		tweenY: gween.New(float32(c.Y), float32(ty), duration, easeFn),
	}
}

// ScrollToTile scrolls to the center of the given map tile.
func (c *Camera) ScrollToTile(tileX, tileY int, tileW, tileH float64, duration float32, easeFn ease.TweenFunc) {
	c.ScrollTo(float64(tileX)*tileW+tileW/2, float64(tileY)*tileH+tileH/2, duration, easeFn)
}

// Scrolling reports whether a ScrollTo animation is running.
func (c *Camera) Scrolling() bool {
	return c.scrollTween != nil
}

// SetBounds enables bounds clamping.
func (c *Camera) SetBounds(bounds Rect) {
	c.BoundsEnabled = true
	c.Bounds = bounds
}

// ClearBounds disables bounds clamping.
func (c *Camera) ClearBounds() {
	c.BoundsEnabled = false
}

// ClampToBounds immediately clamps the offset. No-op if BoundsEnabled is false.
func (c *Camera) ClampToBounds() {
	if c.BoundsEnabled {
		c.clampToBounds()
	}
}

// offsetFor returns the offset that puts (wx, wy) at the viewport center.
func (c *Camera) offsetFor(wx, wy float64) (float64, float64) {
	cx := c.Viewport.X + c.Viewport.Width/2
	cy := c.Viewport.Y + c.Viewport.Height/2
	return -(wx - cx), -(wy - cy)
}

// update moves the offset toward the followed entity, or advances a running
// scroll. targetPos resolves the followed entity's world position; a false
// result (entity gone or hidden) leaves the camera untouched.
func (c *Camera) update(dt float32, targetPos func(id uint32) (Vec2, bool)) {
	switch {
	case c.following:
		pos, ok := targetPos(c.target)
		if !ok {
			return
		}
		tx, ty := c.offsetFor(pos.X, pos.Y)
		c.X += (tx - c.X) * c.Smoothing
		c.Y += (ty - c.Y) * c.Smoothing
	case c.scrollTween != nil:
		if !c.scrollTween.doneX {
			val, done := c.scrollTween.tweenX.Update(dt)
			c.X = float64(val)
			c.scrollTween.doneX = done
		}
		if !c.scrollTween.doneY {
			val, done := c.scrollTween.tweenY.Update(dt)
			c.Y = float64(val)
			c.scrollTween.doneY = done
		}
		if c.scrollTween.doneX && c.scrollTween.doneY {
			c.scrollTween = nil
		}
	default:
		return
	}
	c.ClampToBounds()
}

// clampToBounds restricts the offset so the visible area stays within
// Bounds. Bounds smaller than the viewport are centered.
func (c *Camera) clampToBounds() {
	// Visible world left edge is Viewport.X - X.
	minLeft := c.Bounds.X
	maxLeft := c.Bounds.X + c.Bounds.Width - c.Viewport.Width
	minTop := c.Bounds.Y
	maxTop := c.Bounds.Y + c.Bounds.Height - c.Viewport.Height

	left := c.Viewport.X - c.X
	top := c.Viewport.Y - c.Y
	if minLeft > maxLeft {
		left = c.Bounds.X + (c.Bounds.Width-c.Viewport.Width)/2
	} else {
		left = math.Max(minLeft, math.Min(left, maxLeft))
	}
	if minTop > maxTop {
		top = c.Bounds.Y + (c.Bounds.Height-c.Viewport.Height)/2
	} else {
		top = math.Max(minTop, math.Min(top, maxTop))
	}
	c.X = c.Viewport.X - left
	c.Y = c.Viewport.Y - top
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	return wx + c.X, wy + c.Y
}

// ScreenToWorld converts screen coordinates to world coordinates by
// subtracting the current offset.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	return sx - c.X, sy - c.Y
}

// VisibleBounds returns the world-space rectangle covered by the viewport.
func (c *Camera) VisibleBounds() Rect {
	x, y := c.ScreenToWorld(c.Viewport.X, c.Viewport.Y)
	return Rect{X: x, Y: y, Width: c.Viewport.Width, Height: c.Viewport.Height}
}
