package tilestage

import (
	"fmt"
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

// EntitySpec is what a collaborator supplies when an entity becomes visible.
type EntitySpec struct {
	X, Y float64
	// Texture is the sprite sheet path. Empty means placeholder.
	Texture   string
	Animation string
	Direction Direction
	Hidden    bool
	// HitBox narrows the clickable area, in frame pixels. Nil uses the
	// whole frame.
	HitBox *HitRect
}

// entitySprite is the render-side record of one entity.
type entitySprite struct {
	id      uint32
	node    *Node
	state   AnimationState
	def     *AnimationDef
	texture string
	sheet   *ebiten.Image
	// placeholder is set once the sheet failed to load.
	placeholder bool

	path  []Vec2
	speed float64
}

// SpriteController owns one AnimationState per visible entity and advances
// it every tick. All methods run on the update goroutine.
type SpriteController struct {
	catalog  *Catalog
	layer    *Node
	reg      *TilesetRegistry
	entities map[uint32]*entitySprite

	placeholders map[image.Point]*ebiten.Image

	// ensureTexture asks for a sheet that is not yet known to the registry.
	ensureTexture func(path string)

	log *logrus.Entry
}

// NewSpriteController creates a controller that adds entity sprites to layer.
func NewSpriteController(catalog *Catalog, layer *Node, reg *TilesetRegistry) *SpriteController {
	return &SpriteController{
		catalog:      catalog,
		layer:        layer,
		reg:          reg,
		entities:     make(map[uint32]*entitySprite),
		placeholders: make(map[image.Point]*ebiten.Image),
		log:          reg.log.Logger.WithField("component", "sprites"),
	}
}

// AddEntity creates the sprite and animation state for id. Adding an id that
// already exists replaces it.
func (c *SpriteController) AddEntity(id uint32, spec EntitySpec) {
	if _, ok := c.entities[id]; ok {
		c.RemoveEntity(id)
	}
	def, known := c.catalog.Resolve(spec.Animation)
	if !known && spec.Animation != "" {
		c.log.WithFields(logrus.Fields{"entity": id, "animation": spec.Animation}).Warn("unknown animation, using idle")
	}

	n := NewSprite(fmt.Sprintf("entity:%d", id), nil)
	n.EntityID = id
	n.isEntity = true
	n.Interactable = true
	n.Visible = !spec.Hidden
	if spec.HitBox != nil {
		n.HitShape = *spec.HitBox
	}

	e := &entitySprite{
		id:      id,
		node:    n,
		def:     def,
		texture: spec.Texture,
		state:   AnimationState{Animation: def.Name, Direction: spec.Direction},
	}
	c.entities[id] = e
	c.place(e, spec.X, spec.Y)
	c.layer.AddChild(n)
	c.attachSheet(e)
}

// RemoveEntity detaches the entity's sprite and drops its state.
func (c *SpriteController) RemoveEntity(id uint32) bool {
	e, ok := c.entities[id]
	if !ok {
		return false
	}
	e.node.Dispose()
	delete(c.entities, id)
	return true
}

// Len returns the number of entities.
func (c *SpriteController) Len() int {
	return len(c.entities)
}

// State returns a copy of the entity's animation state.
func (c *SpriteController) State(id uint32) (AnimationState, bool) {
	e, ok := c.entities[id]
	if !ok {
		return AnimationState{}, false
	}
	return e.state, true
}

// Position returns the entity's world position (its feet).
func (c *SpriteController) Position(id uint32) (Vec2, bool) {
	e, ok := c.entities[id]
	if !ok {
		return Vec2{}, false
	}
	return Vec2{X: e.node.X, Y: e.node.Y}, true
}

// Node returns the entity's sprite node.
func (c *SpriteController) Node(id uint32) (*Node, bool) {
	e, ok := c.entities[id]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// SetEntityPosition moves the entity. Depth follows Y so lower entities draw
// in front.
func (c *SpriteController) SetEntityPosition(id uint32, x, y float64) error {
	e, ok := c.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	c.place(e, x, y)
	return nil
}

// SetEntityVisible shows or hides the entity. Hidden entities keep their
// animation state and are not hit-testable.
func (c *SpriteController) SetEntityVisible(id uint32, visible bool) error {
	e, ok := c.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	e.node.Visible = visible
	return nil
}

func (c *SpriteController) place(e *entitySprite, x, y float64) {
	e.node.SetPosition(x, y)
	e.node.SetZIndex(int(math.Floor(y)))
}

// UpdateCharacterAnimation switches the entity to the named animation.
// Unknown names fall back to idle and are logged. Switching to a different
// animation restarts it from frame 0; requesting the current one is a no-op.
func (c *SpriteController) UpdateCharacterAnimation(id uint32, action string) error {
	e, ok := c.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	def, known := c.catalog.Resolve(action)
	if !known {
		c.log.WithFields(logrus.Fields{"entity": id, "animation": action}).Warn("unknown animation, using idle")
	}
	if def.Name == e.state.Animation {
		return nil
	}
	e.def = def
	e.state.Animation = def.Name
	e.state.Frame = 0
	e.state.Elapsed = 0
	c.refreshRegion(e)
	return nil
}

// SyncCharacterDirection turns the entity to dir if its current animation
// defines that facing. Direction-agnostic animations ignore the request.
func (c *SpriteController) SyncCharacterDirection(id uint32, dir Direction) error {
	e, ok := c.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if e.state.Direction == dir || !e.def.HasDirection(dir) {
		return nil
	}
	e.state.Direction = dir
	c.refreshRegion(e)
	return nil
}

// FollowPath makes the entity walk through waypoints at speed pixels per
// second. The walk animation plays while moving, facing the dominant axis of
// travel, and idle resumes at the last waypoint. An empty path stops the
// entity where it is.
func (c *SpriteController) FollowPath(id uint32, waypoints []Vec2, speed float64) error {
	e, ok := c.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if len(waypoints) == 0 || speed <= 0 {
		if len(e.path) > 0 {
			e.path = nil
			_ = c.UpdateCharacterAnimation(id, AnimIdle)
		}
		return nil
	}
	e.path = append(e.path[:0], waypoints...)
	e.speed = speed
	return c.UpdateCharacterAnimation(id, AnimWalk)
}

// Moving reports whether the entity still has waypoints to reach.
func (c *SpriteController) Moving(id uint32) bool {
	e, ok := c.entities[id]
	return ok && len(e.path) > 0
}

// advancePaths moves every walking entity along its waypoints.
func (c *SpriteController) advancePaths(dt float64) {
	for id, e := range c.entities {
		if len(e.path) == 0 {
			continue
		}
		budget := e.speed * dt
		x, y := e.node.X, e.node.Y
		for budget > 0 && len(e.path) > 0 {
			wp := e.path[0]
			dx, dy := wp.X-x, wp.Y-y
			dist := math.Hypot(dx, dy)
			if dist > 0 {
				_ = c.SyncCharacterDirection(id, facing(dx, dy))
			}
			if dist <= budget {
				x, y = wp.X, wp.Y
				budget -= dist
				e.path = e.path[1:]
				continue
			}
			x += dx / dist * budget
			y += dy / dist * budget
			budget = 0
		}
		c.place(e, x, y)
		if len(e.path) == 0 {
			e.path = nil
			_ = c.UpdateCharacterAnimation(id, AnimIdle)
		}
	}
}

// facing picks the direction of the dominant movement axis. Ties go to the
// horizontal axis.
func facing(dx, dy float64) Direction {
	if math.Abs(dx) >= math.Abs(dy) {
		if dx < 0 {
			return DirLeft
		}
		return DirRight
	}
	if dy < 0 {
		return DirUp
	}
	return DirDown
}

// UpdateAll advances every entity's animation by dt seconds and updates the
// drawn region of entities whose frame changed.
func (c *SpriteController) UpdateAll(dt float64) {
	for _, e := range c.entities {
		if e.state.advance(e.def, dt) {
			c.refreshRegion(e)
		}
	}
}

// textureReady applies a finished sheet load to every entity using path.
func (c *SpriteController) textureReady(path string) {
	for _, e := range c.entities {
		if e.texture == path && e.sheet == nil {
			c.attachSheet(e)
		}
	}
}

// attachSheet resolves the entity's sheet from the registry. Missing sheets
// are requested; failed or absent ones get a placeholder silhouette.
func (c *SpriteController) attachSheet(e *entitySprite) {
	if e.texture == "" {
		c.usePlaceholder(e)
		return
	}
	img, state, known := c.reg.lookupTexture(e.texture)
	switch {
	case !known:
		if c.ensureTexture != nil {
			c.ensureTexture(e.texture)
		}
	case state == textureReady:
		e.sheet = img
		e.placeholder = false
		c.refreshRegion(e)
	case state == textureFailed:
		c.usePlaceholder(e)
	}
}

// refreshRegion points the sprite at the current frame of the sheet.
func (c *SpriteController) refreshRegion(e *entitySprite) {
	w, h := e.def.FrameWidth, e.def.FrameHeight
	e.node.SetPivot(float64(w)/2, float64(h))
	if e.placeholder {
		e.node.SetImage(c.placeholder(w, h))
		return
	}
	if e.sheet == nil {
		return
	}
	rect := e.def.FrameRect(e.state.Direction, e.state.Frame)
	if !rect.In(e.sheet.Bounds()) {
		c.log.WithFields(logrus.Fields{"entity": e.id, "animation": e.def.Name, "frame": e.state.Frame}).
			Debug("frame outside sheet, using placeholder")
		e.node.SetImage(c.placeholder(w, h))
		return
	}
	e.node.SetImage(e.sheet.SubImage(rect).(*ebiten.Image))
}

func (c *SpriteController) usePlaceholder(e *entitySprite) {
	e.placeholder = true
	c.refreshRegion(e)
}

// placeholderColor is the flat silhouette tint.
var placeholderColor = Color{R: 0.15, G: 0.15, B: 0.2, A: 0.85}

// placeholder returns a flat silhouette (head over body) of the given frame
// size, shared by every entity of that size.
func (c *SpriteController) placeholder(w, h int) *ebiten.Image {
	key := image.Pt(w, h)
	if img, ok := c.placeholders[key]; ok {
		return img
	}
	img := ebiten.NewImage(w, h)
	col := placeholderColor.toRGBA()
	head := w / 3
	hx := (w - head) / 2
	hy := h / 4
	img.SubImage(image.Rect(hx, hy, hx+head, hy+head)).(*ebiten.Image).Fill(col)
	img.SubImage(image.Rect(w/5, hy+head+2, w-w/5, h)).(*ebiten.Image).Fill(col)
	c.placeholders[key] = img
	return img
}
