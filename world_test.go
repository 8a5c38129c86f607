package tilestage

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/hajimehoshi/ebiten/v2"
)

func testMap() *Map {
	cells := make([]uint32, 16)
	for i := range cells {
		cells[i] = uint32(i%4) + 1
	}
	return &Map{
		Width: 4, Height: 4, TileWidth: 48, TileHeight: 48,
		Tilesets: []TilesetDef{{Name: "town", FirstGID: 1, TileWidth: 48, TileHeight: 48, Columns: 2, TileCount: 4, ImagePath: "town.png"}},
		Layers: []TileLayer{
			{Info: LayerInfo{Name: "ground"}, Chunks: []Chunk{{X: 0, Y: 0, Width: 4, Height: 4, Cells: cells}}},
			{Info: LayerInfo{Name: "collision", Collision: true}, Chunks: []Chunk{{X: 0, Y: 0, Width: 4, Height: 4, Cells: cells}}},
		},
		Objects: []ClickableObject{
			{ID: 1, Name: "desk", Category: "furniture", X: 144, Y: 0, Width: 48, Height: 48},
			{ID: 2, Name: "lobby", Category: CategoryRoom, X: 0, Y: 144, Width: 192, Height: 48},
		},
	}
}

type recorder struct{ outcomes []Outcome }

func (r *recorder) HandleOutcome(o Outcome) { r.outcomes = append(r.outcomes, o) }

func newTestWorld(t *testing.T, cfg Config, h OutcomeHandler) *World {
	t.Helper()
	fsys := fstest.MapFS{"town.png": {Data: pngBytes(t, 96, 96)}}
	w, err := NewWorld(cfg, fsys, nil, h)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	w.Input().Live = false
	return w
}

// settle ticks until every requested texture has been applied.
func settle(t *testing.T, w *World) {
	t.Helper()
	for i := 0; i < 20; i++ {
		if err := w.Tick(1.0 / 60); err != nil {
			t.Fatal(err)
		}
		if err := w.loader.Wait(); err != nil {
			t.Fatal(err)
		}
		if !w.loader.Busy() && w.chunks.Pending() == 0 {
			return
		}
	}
	t.Fatal("textures never settled")
}

func loadedWorld(t *testing.T, h OutcomeHandler) *World {
	t.Helper()
	w := newTestWorld(t, DefaultConfig(), h)
	if err := w.LoadMap(testMap()); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	settle(t, w)
	return w
}

func TestWorldBeforeLoadMap(t *testing.T) {
	w := newTestWorld(t, DefaultConfig(), nil)
	if err := w.Tick(1.0 / 60); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Tick err = %v, want ErrNotInitialized", err)
	}
	if err := w.Update(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Update err = %v, want ErrNotInitialized", err)
	}
	if err := w.AddEntity(1, EntitySpec{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("AddEntity err = %v, want ErrNotInitialized", err)
	}
	if w.Status().Initialized {
		t.Error("Status reports initialized")
	}

	defer func() {
		if recover() == nil {
			t.Error("Draw before LoadMap did not panic")
		}
	}()
	w.Draw(ebiten.NewImage(16, 16))
}

func TestNewWorldRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Camera.Smoothing = 0
	if _, err := NewWorld(cfg, fstest.MapFS{}, nil, nil); err == nil {
		t.Error("NewWorld accepted invalid config")
	}
}

func TestLoadMapRejectsBadMaps(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Map)
	}{
		{"no tile size", func(m *Map) { m.TileWidth = 0 }},
		{"duplicate layer", func(m *Map) { m.Layers[1].Info.Name = "ground" }},
		{"unnamed layer", func(m *Map) { m.Layers[0].Info.Name = "" }},
		{"bad tileset", func(m *Map) { m.Tilesets[0].Columns = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, DefaultConfig(), nil)
			m := testMap()
			tt.edit(m)
			if err := w.LoadMap(m); err == nil {
				t.Error("LoadMap succeeded")
			}
			if w.Initialized() {
				t.Error("world initialized after failed load")
			}
		})
	}
}

func TestLoadMapMaterializesFiniteMap(t *testing.T) {
	w := loadedWorld(t, nil)
	st := w.Status()
	if !st.Initialized || st.ChunkCount != 1 || st.PendingChunks != 0 {
		t.Errorf("status = %+v, want one built chunk", st)
	}
	if st.CachedTextures != 1 || st.LoadingAssets {
		t.Errorf("textures = %d loading = %v", st.CachedTextures, st.LoadingAssets)
	}
	g, ok := w.Chunks().Group(ChunkKey{Layer: "ground"})
	if !ok || g.NumChildren() != 16 {
		t.Errorf("ground group missing or wrong size")
	}
	if _, ok := w.Chunks().Group(ChunkKey{Layer: "collision"}); ok {
		t.Error("collision layer materialized")
	}
}

func TestStatusCanvas(t *testing.T) {
	w := loadedWorld(t, nil)
	st := w.Status()
	if st.CanvasWidth != 960 || st.CanvasHeight != 540 {
		t.Errorf("canvas = %dx%d", st.CanvasWidth, st.CanvasHeight)
	}
	if !approxEqual(st.AspectRatio, 960.0/540.0, 1e-9) {
		t.Errorf("aspect = %v", st.AspectRatio)
	}
	if lw, lh := w.Layout(1, 1); lw != 960 || lh != 540 {
		t.Errorf("Layout = %dx%d", lw, lh)
	}
}

func TestInjectClickResolvesNextTick(t *testing.T) {
	rec := &recorder{}
	w := loadedWorld(t, rec)

	sx, sy := w.Camera().WorldToScreen(60, 60)
	w.InjectClick(sx, sy)
	w.InjectClick(sx, sy)
	if len(rec.outcomes) != 0 {
		t.Fatal("outcome before tick")
	}
	if err := w.Tick(1.0 / 60); err != nil {
		t.Fatal(err)
	}
	if len(rec.outcomes) != 1 {
		t.Fatalf("outcomes after one tick = %d, want 1", len(rec.outcomes))
	}
	o := rec.outcomes[0]
	if o.Kind != OutcomeGround || o.World != (Vec2{X: 72, Y: 72}) || !o.CancelQueuedAction {
		t.Errorf("outcome = %+v", o)
	}
	_ = w.Tick(1.0 / 60)
	if len(rec.outcomes) != 2 {
		t.Errorf("outcomes after two ticks = %d, want 2", len(rec.outcomes))
	}
}

func TestWorldClickObjectAndEntity(t *testing.T) {
	rec := &recorder{}
	w := loadedWorld(t, rec)
	if err := w.AddEntity(7, EntitySpec{X: 72, Y: 150}); err != nil {
		t.Fatal(err)
	}
	_ = w.Tick(1.0 / 60)

	click := func(wx, wy float64) Outcome {
		t.Helper()
		sx, sy := w.Camera().WorldToScreen(wx, wy)
		w.InjectClick(sx, sy)
		_ = w.Tick(1.0 / 60)
		return rec.outcomes[len(rec.outcomes)-1]
	}

	if o := click(160, 20); o.Kind != OutcomeObject || o.Object.Name != "desk" {
		t.Errorf("desk click = %v", o.Kind)
	}
	if o := click(72, 120); o.Kind != OutcomeCharacter || o.EntityID != 7 {
		t.Errorf("entity click = %v/%d", o.Kind, o.EntityID)
	}
	if o := click(150, 170); o.Kind != OutcomeGround {
		t.Errorf("room click = %v, want ground", o.Kind)
	}
}

func TestWorldClickEntityZeroOverObject(t *testing.T) {
	rec := &recorder{}
	w := loadedWorld(t, rec)
	if err := w.AddEntity(0, EntitySpec{X: 168, Y: 48}); err != nil {
		t.Fatal(err)
	}
	_ = w.Tick(1.0 / 60)
	sx, sy := w.Camera().WorldToScreen(168, 20)
	w.InjectClick(sx, sy)
	_ = w.Tick(1.0 / 60)
	if len(rec.outcomes) != 1 {
		t.Fatalf("outcomes = %d", len(rec.outcomes))
	}
	if o := rec.outcomes[0]; o.Kind != OutcomeCharacter || o.EntityID != 0 {
		t.Errorf("outcome = %v/%d, want character 0 over the desk", o.Kind, o.EntityID)
	}
}

func TestRemoveEntityClearsFollow(t *testing.T) {
	w := loadedWorld(t, nil)
	if err := w.SetFollowTarget(3); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("follow unknown = %v", err)
	}
	_ = w.AddEntity(3, EntitySpec{X: 10, Y: 10})
	if err := w.SetFollowTarget(3); err != nil {
		t.Fatal(err)
	}
	if err := w.RemoveEntity(3); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.Camera().FollowTarget(); ok {
		t.Error("camera still follows removed entity")
	}
	if err := w.RemoveEntity(3); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("second remove = %v", err)
	}
}

func TestWorldTickMovesEntityAndAnimates(t *testing.T) {
	w := loadedWorld(t, nil)
	_ = w.AddEntity(1, EntitySpec{X: 24, Y: 24})
	_ = w.Sprites().FollowPath(1, []Vec2{{X: 24, Y: 120}}, 60)
	for i := 0; i < 30; i++ {
		_ = w.Tick(1.0 / 60)
	}
	pos, _ := w.Sprites().Position(1)
	assertNear(t, "y", pos.Y, 54)
	st, _ := w.Sprites().State(1)
	if st.Animation != AnimWalk || st.Direction != DirDown {
		t.Errorf("state = %+v, want walking down", st)
	}
	if st.Frame == 0 {
		t.Error("walk animation did not advance")
	}
}

func TestWorldCameraFollowsOnLargeMap(t *testing.T) {
	w := newTestWorld(t, DefaultConfig(), nil)
	m := testMap()
	m.Width, m.Height = 100, 100
	if err := w.LoadMap(m); err != nil {
		t.Fatal(err)
	}
	settle(t, w)
	_ = w.AddEntity(1, EntitySpec{X: 2000, Y: 2000})
	_ = w.SetFollowTarget(1)
	for i := 0; i < 200; i++ {
		_ = w.Tick(1.0 / 60)
	}
	cam := w.Camera()
	if !approxEqual(cam.X, 480-2000, 0.01) || !approxEqual(cam.Y, 270-2000, 0.01) {
		t.Errorf("camera = (%v,%v), want about (-1520,-1730)", cam.X, cam.Y)
	}
	if w.worldLayer.X != cam.X || w.worldLayer.Y != cam.Y {
		t.Error("world container not at the camera offset")
	}
}

func TestWorldStreamsInfiniteMap(t *testing.T) {
	w := newTestWorld(t, DefaultConfig(), nil)
	m := testMap()
	m.Width, m.Height = 0, 0
	var chunks []Chunk
	for i := 0; i < 20; i++ {
		c := m.Layers[0].Chunks[0]
		c.X = i * 4
		chunks = append(chunks, c)
	}
	m.Layers = m.Layers[:1]
	m.Layers[0].Chunks = chunks
	m.Objects = nil
	if err := w.LoadMap(m); err != nil {
		t.Fatal(err)
	}
	settle(t, w)

	// 960px view with margin 1 covers far fewer than 20 chunks of 192px.
	n := w.Status().ChunkCount
	if n == 0 || n >= 20 {
		t.Errorf("chunks = %d, want a streamed subset", n)
	}
	w.Camera().ClearBounds()
	w.Camera().SetPosition(-192*15, 0)
	_ = w.Tick(1.0 / 60)
	if _, ok := w.Chunks().Group(ChunkKey{Layer: "ground", X: 0}); ok {
		t.Error("chunk 0 kept after moving away")
	}
	if _, ok := w.Chunks().Group(ChunkKey{Layer: "ground", X: 60}); !ok {
		t.Error("chunk at x=60 not streamed in")
	}
}

func TestDebugStatsResetEveryInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	w := newTestWorld(t, cfg, nil)
	_ = w.LoadMap(testMap())
	_ = w.Tick(1.0 / 60)
	if !strings.Contains(w.overlay.text, "chunks:") {
		t.Errorf("overlay text = %q", w.overlay.text)
	}
	for i := 1; i < debugLogInterval; i++ {
		_ = w.Tick(1.0 / 60)
	}
	if w.debug.ticks != 0 {
		t.Errorf("ticks = %d after interval, want reset", w.debug.ticks)
	}
	_ = w.Tick(1.0 / 60)
	if w.debug.ticks != 1 || w.debug.chunks != w.Chunks().Len() {
		t.Errorf("stats = %+v", *w.debug)
	}
}

func TestWorldDrawAfterLoad(t *testing.T) {
	w := loadedWorld(t, nil)
	_ = w.AddEntity(1, EntitySpec{X: 50, Y: 50})
	_ = w.Tick(1.0 / 60)
	w.Draw(ebiten.NewImage(960, 540))
	if len(w.render.commands) == 0 {
		t.Error("nothing submitted")
	}
}

func TestTestRunnerDrivesWorld(t *testing.T) {
	rec := &recorder{}
	w := loadedWorld(t, rec)
	_ = w.AddEntity(1, EntitySpec{X: 24, Y: 100})
	runner, err := LoadTestScript([]byte(`{"steps": [
		{"action": "click", "x": 500, "y": 300},
		{"action": "wait", "frames": 2},
		{"action": "animate", "entity": 1, "animation": "wave"},
		{"action": "follow", "entity": 1}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	w.SetTestRunner(runner)
	for i := 0; i < 10 && !runner.Done(); i++ {
		_ = w.Tick(1.0 / 60)
	}
	if !runner.Done() {
		t.Fatal("runner not done")
	}
	if len(rec.outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1", len(rec.outcomes))
	}
	st, _ := w.Sprites().State(1)
	if st.Animation != AnimWave {
		t.Errorf("animation = %q, want wave", st.Animation)
	}
	if id, ok := w.Camera().FollowTarget(); !ok || id != 1 {
		t.Error("follow step not applied")
	}
}

func TestTestRunnerWalkAndScroll(t *testing.T) {
	w := loadedWorld(t, nil)
	_ = w.AddEntity(2, EntitySpec{X: 24, Y: 24})
	runner, err := LoadTestScript([]byte(`{"steps": [
		{"action": "walk", "entity": 2, "path": [{"x": 24, "y": 120}], "speed": 60},
		{"action": "scroll", "x": 96, "y": 96, "seconds": 1},
		{"action": "animate", "entity": 99, "animation": "wave"}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	w.SetTestRunner(runner)
	for i := 0; i < 3; i++ {
		_ = w.Tick(1.0 / 60)
	}
	if !runner.Done() {
		t.Error("failing step stopped the script")
	}
	st, _ := w.Sprites().State(2)
	if st.Animation != AnimWalk {
		t.Errorf("animation = %q, want walk", st.Animation)
	}
	if !w.Camera().Scrolling() {
		t.Error("scroll step did not start a scroll")
	}
}

func TestLoadTestScriptErrors(t *testing.T) {
	for name, data := range map[string]string{
		"bad json":       `{`,
		"no steps":       `{"steps": []}`,
		"unknown action": `{"steps": [{"action": "jump"}]}`,
		"walk no path":   `{"steps": [{"action": "walk", "entity": 1, "speed": 60}]}`,
		"walk no speed":  `{"steps": [{"action": "walk", "entity": 1, "path": [{"x": 1, "y": 1}]}]}`,
		"scroll instant": `{"steps": [{"action": "scroll", "x": 1, "y": 1}]}`,
		"animate blank":  `{"steps": [{"action": "animate", "entity": 1}]}`,
	} {
		if _, err := LoadTestScript([]byte(data)); err == nil {
			t.Errorf("%s: no error", name)
		}
	}
}
