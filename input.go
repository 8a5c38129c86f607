package tilestage

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"
)

// CategoryRoom is the object category of non-interactive room areas. Hits on
// such objects fall through to a ground click.
const CategoryRoom = "room"

// ClickableObject is a named, typed rectangle from the map's object layer.
// Read-only; used only for hit-testing.
type ClickableObject struct {
	ID       int
	Name     string
	Category string
	X, Y     float64
	Width    float64
	Height   float64
	// Properties carries the object's custom map properties as strings.
	Properties map[string]string
}

// Contains reports whether the world point (x, y) is inside the object.
func (o ClickableObject) Contains(x, y float64) bool {
	return Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}.Contains(x, y)
}

// PointerEvent is a screen-space pointer press.
type PointerEvent struct {
	X, Y float64
	// Pointer is 0 for the mouse and 1.. for touches.
	Pointer int
}

// OutcomeKind classifies what a pointer press resolved to.
type OutcomeKind uint8

const (
	// OutcomeGround is a click on empty ground: a move-to request.
	OutcomeGround OutcomeKind = iota
	// OutcomeObject is a click on an interactive map object.
	OutcomeObject
	// OutcomeCharacter is a click on an entity sprite.
	OutcomeCharacter
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeGround:
		return "ground"
	case OutcomeObject:
		return "object"
	case OutcomeCharacter:
		return "character"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", k)
	}
}

// Outcome is an interaction result handed to the collaborator that owns
// the action and movement queues.
type Outcome struct {
	Kind OutcomeKind
	// Screen is the raw pointer position.
	Screen Vec2
	// World is the pointer position in world space. For ground clicks it is
	// snapped to the center of the clicked tile.
	World Vec2
	// Object is set for OutcomeObject.
	Object *ClickableObject
	// EntityID is set for OutcomeCharacter.
	EntityID uint32
	// CancelQueuedAction is set on ground clicks: the receiver should drop
	// any queued non-movement action. The router only signals it.
	CancelQueuedAction bool
}

// OutcomeHandler receives interaction outcomes. It is called on the update
// goroutine during the tick that drained the pointer event.
type OutcomeHandler interface {
	HandleOutcome(Outcome)
}

// OutcomeHandlerFunc adapts a function to OutcomeHandler.
type OutcomeHandlerFunc func(Outcome)

// HandleOutcome calls f(o).
func (f OutcomeHandlerFunc) HandleOutcome(o Outcome) { f(o) }

// InputRouter turns pointer presses into outcomes. Presses are queued and
// resolved once per tick, after world transforms are current.
type InputRouter struct {
	handler  OutcomeHandler
	camera   *Camera
	entities *Node
	tileSize float64

	objects []ClickableObject
	queue   []PointerEvent
	hitBuf  []*Node

	// Live enables polling ebiten's mouse and touch state each tick.
	Live bool

	log *logrus.Entry
}

// newInputRouter creates a router resolving entities below the entities
// container and snapping ground clicks to tileSize.
func newInputRouter(handler OutcomeHandler, camera *Camera, entities *Node, tileSize int, log *logrus.Logger) *InputRouter {
	return &InputRouter{
		handler:  handler,
		camera:   camera,
		entities: entities,
		tileSize: float64(tileSize),
		Live:     true,
		log:      log.WithField("component", "input"),
	}
}

// SetHandler replaces the outcome handler. A nil handler drops outcomes.
func (r *InputRouter) SetHandler(h OutcomeHandler) {
	r.handler = h
}

// SetObjects replaces the clickable objects. Order is the hit-test priority.
func (r *InputRouter) SetObjects(objects []ClickableObject) {
	r.objects = append(r.objects[:0], objects...)
}

// Objects returns the clickable objects in priority order.
func (r *InputRouter) Objects() []ClickableObject {
	return r.objects
}

// PushPointer queues a press at screen position (x, y) for the next tick.
func (r *InputRouter) PushPointer(ev PointerEvent) {
	r.queue = append(r.queue, ev)
}

// Pending returns the number of queued presses.
func (r *InputRouter) Pending() int {
	return len(r.queue)
}

// poll queues presses that started this tick.
func (r *InputRouter) poll() {
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		mx, my := ebiten.CursorPosition()
		r.PushPointer(PointerEvent{X: float64(mx), Y: float64(my)})
	}
	for i, tid := range inpututil.AppendJustPressedTouchIDs(nil) {
		tx, ty := ebiten.TouchPosition(tid)
		r.PushPointer(PointerEvent{X: float64(tx), Y: float64(ty), Pointer: i + 1})
	}
}

// drain resolves every queued press in order.
func (r *InputRouter) drain() {
	for _, ev := range r.queue {
		o := r.Resolve(ev.X, ev.Y)
		r.log.WithFields(logrus.Fields{"kind": o.Kind, "x": ev.X, "y": ev.Y}).Debug("pointer resolved")
		if r.handler != nil {
			r.handler.HandleOutcome(o)
		}
	}
	r.queue = r.queue[:0]
}

// Resolve classifies a press at screen position (sx, sy): the topmost
// entity sprite wins, then the first interactive object in layer order,
// otherwise it is a ground click.
func (r *InputRouter) Resolve(sx, sy float64) Outcome {
	wx, wy := r.screenToWorld(sx, sy)
	screen := Vec2{X: sx, Y: sy}

	if n := r.hitEntity(sx, sy); n != nil {
		return Outcome{Kind: OutcomeCharacter, Screen: screen, World: Vec2{X: wx, Y: wy}, EntityID: n.EntityID}
	}
	for i := range r.objects {
		obj := &r.objects[i]
		if !obj.Contains(wx, wy) {
			continue
		}
		if obj.Category != CategoryRoom {
			return Outcome{Kind: OutcomeObject, Screen: screen, World: Vec2{X: wx, Y: wy}, Object: obj}
		}
		break
	}
	return Outcome{
		Kind:               OutcomeGround,
		Screen:             screen,
		World:              SnapToTile(wx, wy, r.tileSize),
		CancelQueuedAction: true,
	}
}

// screenToWorld subtracts the world container's offset as last applied to
// the tree, which is also what entity hits see. Without a world container
// the camera offset is used.
func (r *InputRouter) screenToWorld(sx, sy float64) (float64, float64) {
	if r.entities != nil && r.entities.Parent != nil {
		return r.entities.Parent.WorldToLocal(sx, sy)
	}
	return r.camera.ScreenToWorld(sx, sy)
}

// SnapToTile returns the center of the tile containing (x, y).
func SnapToTile(x, y, tileSize float64) Vec2 {
	return Vec2{
		X: math.Floor(x/tileSize)*tileSize + tileSize/2,
		Y: math.Floor(y/tileSize)*tileSize + tileSize/2,
	}
}

// hitEntity finds the topmost visible entity sprite at screen position
// (sx, sy). Entity world transforms already include the camera offset.
func (r *InputRouter) hitEntity(sx, sy float64) *Node {
	if r.entities == nil || !r.entities.Visible {
		return nil
	}
	r.hitBuf = collectInteractable(r.entities, r.hitBuf[:0])
	for i := len(r.hitBuf) - 1; i >= 0; i-- {
		n := r.hitBuf[i]
		if !n.isEntity {
			continue
		}
		lx, ly := n.WorldToLocal(sx, sy)
		if nodeContainsLocal(n, lx, ly) {
			return n
		}
	}
	return nil
}

// nodeContainsLocal tests whether (lx, ly) falls inside a node's hit region.
// Uses HitShape if set; otherwise the bounds of the node's image.
func nodeContainsLocal(n *Node, lx, ly float64) bool {
	if n.HitShape != nil {
		return n.HitShape.Contains(lx, ly)
	}
	if n.Image == nil {
		return false
	}
	b := n.Image.Bounds()
	return lx >= 0 && lx <= float64(b.Dx()) && ly >= 0 && ly <= float64(b.Dy())
}

// collectInteractable walks the tree in painter order, appending
// interactable nodes to buf. Hidden nodes are skipped with their subtrees.
func collectInteractable(n *Node, buf []*Node) []*Node {
	if !n.Visible {
		return buf
	}
	if n.Interactable {
		buf = append(buf, n)
	}
	for _, child := range n.paintOrder() {
		buf = collectInteractable(child, buf)
	}
	return buf
}
