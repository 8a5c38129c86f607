package tilestage

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

type inputFixture struct {
	root     *Node
	world    *Node
	entities *Node
	camera   *Camera
	router   *InputRouter
	got      []Outcome
}

func newInputFixture(t *testing.T, offsetX, offsetY float64) *inputFixture {
	t.Helper()
	f := &inputFixture{
		root:     NewContainer("root"),
		world:    NewContainer("world"),
		entities: NewContainer("entities"),
		camera:   newCamera(Rect{Width: 800, Height: 600}, 1),
	}
	f.root.AddChild(f.world)
	f.world.AddChild(f.entities)
	f.camera.SetPosition(offsetX, offsetY)
	f.world.SetPosition(offsetX, offsetY)
	f.router = newInputRouter(OutcomeHandlerFunc(func(o Outcome) { f.got = append(f.got, o) }),
		f.camera, f.entities, 48, discardLogger())
	return f
}

// addEntity places a 48x96 entity sprite with its feet at (x, y).
func (f *inputFixture) addEntity(id uint32, x, y float64) *Node {
	n := NewSprite("entity", ebiten.NewImage(48, 96))
	n.EntityID = id
	n.isEntity = true
	n.Interactable = true
	n.SetPivot(24, 96)
	n.SetPosition(x, y)
	n.SetZIndex(int(y))
	f.entities.AddChild(n)
	return n
}

func (f *inputFixture) refresh() {
	updateWorldTransform(f.root, identityTransform, 1, false)
}

func TestSnapToTile(t *testing.T) {
	tests := []struct {
		x, y float64
		want Vec2
	}{
		{130, 97, Vec2{X: 144, Y: 120}},
		{0, 0, Vec2{X: 24, Y: 24}},
		{47.9, 48, Vec2{X: 24, Y: 72}},
		{-1, -49, Vec2{X: -24, Y: -72}},
	}
	for _, tt := range tests {
		if got := SnapToTile(tt.x, tt.y, 48); got != tt.want {
			t.Errorf("SnapToTile(%v,%v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestResolveGroundClickSnapsAndCancels(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.refresh()
	o := f.router.Resolve(130, 97)
	if o.Kind != OutcomeGround {
		t.Fatalf("Kind = %v, want ground", o.Kind)
	}
	if o.World != (Vec2{X: 144, Y: 120}) {
		t.Errorf("World = %v, want (144,120)", o.World)
	}
	if !o.CancelQueuedAction {
		t.Error("ground click must cancel queued actions")
	}
	if o.Screen != (Vec2{X: 130, Y: 97}) {
		t.Errorf("Screen = %v", o.Screen)
	}
}

func TestResolveGroundClickAccountsForCamera(t *testing.T) {
	f := newInputFixture(t, -480, -240)
	f.refresh()
	o := f.router.Resolve(130, 97)
	// world = (610, 337) -> tile (12, 7)
	if o.World != (Vec2{X: 12*48 + 24, Y: 7*48 + 24}) {
		t.Errorf("World = %v", o.World)
	}
}

func TestResolveEntityBeatsObject(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.addEntity(5, 200, 300)
	f.router.SetObjects([]ClickableObject{{ID: 1, Name: "desk", Category: "furniture", X: 150, Y: 150, Width: 200, Height: 200}})
	f.refresh()

	o := f.router.Resolve(200, 250)
	if o.Kind != OutcomeCharacter || o.EntityID != 5 {
		t.Errorf("outcome = %v/%d, want character 5", o.Kind, o.EntityID)
	}
	if o.CancelQueuedAction {
		t.Error("character click cancelled queued action")
	}

	// Outside the sprite but inside the desk.
	o = f.router.Resolve(340, 160)
	if o.Kind != OutcomeObject || o.Object.Name != "desk" {
		t.Errorf("outcome = %v, want object desk", o.Kind)
	}
}

func TestResolveEntityWithCameraOffset(t *testing.T) {
	f := newInputFixture(t, -1000, -500)
	f.addEntity(9, 1200, 800)
	f.refresh()
	// Feet at world (1200,800) are on screen at (200,300).
	o := f.router.Resolve(200, 280)
	if o.Kind != OutcomeCharacter || o.EntityID != 9 {
		t.Errorf("outcome = %v/%d, want character 9", o.Kind, o.EntityID)
	}
	o = f.router.Resolve(1200, 780)
	if o.Kind == OutcomeCharacter {
		t.Error("hit the entity at its world coordinates instead of screen")
	}
}

func TestResolveTopmostEntityWins(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.addEntity(1, 100, 200)
	f.addEntity(2, 110, 220) // lower on screen, drawn in front
	f.refresh()
	o := f.router.Resolve(105, 190)
	if o.EntityID != 2 {
		t.Errorf("EntityID = %d, want 2", o.EntityID)
	}
}

func TestResolveSkipsHiddenEntity(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	n := f.addEntity(1, 100, 200)
	n.Visible = false
	f.refresh()
	if o := f.router.Resolve(100, 150); o.Kind != OutcomeGround {
		t.Errorf("Kind = %v, want ground", o.Kind)
	}
}

func TestResolveRoomFallsThroughToGround(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.router.SetObjects([]ClickableObject{
		{ID: 1, Name: "lobby", Category: CategoryRoom, X: 0, Y: 0, Width: 500, Height: 500},
		{ID: 2, Name: "plant", Category: "decor", X: 0, Y: 0, Width: 500, Height: 500},
	})
	f.refresh()
	o := f.router.Resolve(100, 100)
	if o.Kind != OutcomeGround {
		t.Errorf("Kind = %v, want ground (room stops the object scan)", o.Kind)
	}
}

func TestResolveFirstObjectWins(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.router.SetObjects([]ClickableObject{
		{ID: 1, Name: "first", Category: "door", X: 0, Y: 0, Width: 100, Height: 100},
		{ID: 2, Name: "second", Category: "door", X: 50, Y: 50, Width: 100, Height: 100},
	})
	f.refresh()
	o := f.router.Resolve(75, 75)
	if o.Kind != OutcomeObject || o.Object.ID != 1 {
		t.Errorf("outcome = %v, want first object", o.Kind)
	}
	o = f.router.Resolve(120, 120)
	if o.Kind != OutcomeObject || o.Object.ID != 2 {
		t.Errorf("outcome = %v, want second object", o.Kind)
	}
}

func TestDrainDeliversInOrder(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.addEntity(4, 300, 300)
	f.refresh()
	f.router.PushPointer(PointerEvent{X: 10, Y: 10})
	f.router.PushPointer(PointerEvent{X: 300, Y: 250})
	if f.router.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", f.router.Pending())
	}
	f.router.drain()
	if f.router.Pending() != 0 {
		t.Errorf("Pending after drain = %d", f.router.Pending())
	}
	if len(f.got) != 2 || f.got[0].Kind != OutcomeGround || f.got[1].Kind != OutcomeCharacter {
		t.Errorf("outcomes = %+v", f.got)
	}
}

func TestDrainWithoutHandler(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.router.SetHandler(nil)
	f.router.PushPointer(PointerEvent{X: 1, Y: 1})
	f.router.drain() // must not panic
	if f.router.Pending() != 0 {
		t.Error("queue not drained")
	}
}

func TestOutcomeKindString(t *testing.T) {
	if OutcomeGround.String() != "ground" || OutcomeCharacter.String() != "character" {
		t.Error("unexpected names")
	}
	if got := OutcomeKind(42).String(); got != "OutcomeKind(42)" {
		t.Errorf("String = %q", got)
	}
}

func TestRouterLogsToComponent(t *testing.T) {
	log := logrus.New()
	r := newInputRouter(nil, newCamera(Rect{}, 1), nil, 32, log)
	if r.log.Data["component"] != "input" {
		t.Errorf("component = %v", r.log.Data["component"])
	}
	if o := r.Resolve(40, 40); o.World != (Vec2{X: 48, Y: 48}) {
		t.Errorf("World = %v, want (48,48)", o.World)
	}
}

func TestResolveUsesHitShape(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	n := f.addEntity(3, 100, 200)
	n.HitShape = HitRect{X: 12, Y: 40, Width: 24, Height: 56}
	f.refresh()
	// Frame spans x 76..124, y 104..200; the body box x 88..112, y 144..200.
	if o := f.router.Resolve(80, 180); o.Kind != OutcomeGround {
		t.Errorf("frame edge = %v, want ground", o.Kind)
	}
	if o := f.router.Resolve(100, 120); o.Kind != OutcomeGround {
		t.Errorf("above body = %v, want ground", o.Kind)
	}
	if o := f.router.Resolve(100, 180); o.Kind != OutcomeCharacter {
		t.Errorf("body = %v, want character", o.Kind)
	}
}

// Between ticks the camera may move before the world container follows; a
// press must resolve against what is on screen.
func TestResolveUsesWorldContainerOffset(t *testing.T) {
	f := newInputFixture(t, -480, -240)
	f.addEntity(4, 600, 400)
	f.refresh()
	f.camera.SetPosition(0, 0)

	if o := f.router.Resolve(120, 140); o.Kind != OutcomeCharacter || o.EntityID != 4 {
		t.Errorf("outcome = %v/%d, want character 4", o.Kind, o.EntityID)
	}
	o := f.router.Resolve(130, 97)
	// world = (610, 337) -> tile (12, 7)
	if o.Kind != OutcomeGround || o.World != (Vec2{X: 12*48 + 24, Y: 7*48 + 24}) {
		t.Errorf("ground = %+v, want tile (12,7) center", o.World)
	}
}

func TestResolveEntityZero(t *testing.T) {
	f := newInputFixture(t, 0, 0)
	f.addEntity(0, 168, 48)
	f.router.SetObjects([]ClickableObject{{ID: 1, Name: "desk", Category: "furniture", X: 144, Y: 0, Width: 48, Height: 48}})
	f.refresh()
	o := f.router.Resolve(168, 20)
	if o.Kind != OutcomeCharacter || o.EntityID != 0 {
		t.Errorf("outcome = %v/%d, want character 0", o.Kind, o.EntityID)
	}
}
