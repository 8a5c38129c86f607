package tilestage

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// footprint returns the axis-aligned box covered by the local rectangle
// (0, 0, w, h) under m.
func footprint(m [6]float64, w, h float64) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := transformPoint(m, c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func assertRect(t *testing.T, name string, got, want Rect) {
	t.Helper()
	if !approxEqual(got.X, want.X, epsilon) || !approxEqual(got.Y, want.Y, epsilon) ||
		!approxEqual(got.Width, want.Width, epsilon) || !approxEqual(got.Height, want.Height, epsilon) {
		t.Errorf("%s = %+v, want %+v", name, got, want)
	}
}

func TestLocalTransform(t *testing.T) {
	tests := []struct {
		name  string
		setup func(n *Node)
		want  [6]float64
	}{
		{"identity", func(*Node) {}, identityTransform},
		{"position", func(n *Node) { n.SetPosition(96, 48) }, [6]float64{1, 0, 0, 1, 96, 48}},
		{"feet pivot", func(n *Node) {
			n.SetPivot(24, 96)
			n.SetPosition(200, 300)
		}, [6]float64{1, 0, 0, 1, 176, 204}},
		{"quarter turn", func(n *Node) { n.SetRotation(math.Pi / 2) }, [6]float64{0, 1, -1, 0, 0, 0}},
		{"mirror", func(n *Node) {
			n.SetPivot(24, 24)
			n.SetScale(-1, 1)
		}, [6]float64{-1, 0, 0, 1, 24, -24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewSprite("n", nil)
			tt.setup(n)
			got := computeLocalTransform(n)
			for i := range got {
				if !approxEqual(got[i], tt.want[i], epsilon) {
					t.Fatalf("matrix = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// Every flip combination keeps a square tile on its own grid cell.
func TestOrientationsKeepTileOnCell(t *testing.T) {
	def := &TilesetDef{Name: "town", FirstGID: 1, TileWidth: 48, TileHeight: 48, Columns: 10, TileCount: 100}
	for i, o := range orientationTable {
		n := NewSprite("tile", nil)
		placeTile(n, DecodedTile{GID: 1, Tileset: def, Orientation: o}, 2, 1, 48, 48)
		assertRect(t, "footprint", footprint(computeLocalTransform(n), 48, 48),
			Rect{X: 96, Y: 48, Width: 48, Height: 48})
		if t.Failed() {
			t.Fatalf("orientation %d (%+v) left its cell", i, o)
		}
	}
}

func TestTileWorldPositionThroughChunkAndCamera(t *testing.T) {
	world := NewContainer("world")
	group := NewContainer("chunk")
	tile := NewSprite("tile", nil)
	world.AddChild(group)
	group.AddChild(tile)

	world.SetPosition(-480, -240) // camera offset
	group.SetPosition(16*48, 0)   // chunk (16, 0)
	tile.SetPosition(3*48+24, 24) // cell (3, 0), centered
	tile.SetPivot(24, 24)
	updateWorldTransform(world, identityTransform, 1, false)

	assertRect(t, "screen footprint", footprint(tile.worldTransform, 48, 48),
		Rect{X: 16*48 + 3*48 - 480, Y: -240, Width: 48, Height: 48})

	lx, ly := tile.WorldToLocal(16*48+3*48-480+10, -240+5)
	assertNear(t, "local.x", lx, 10)
	assertNear(t, "local.y", ly, 5)
}

func TestAffineAlgebra(t *testing.T) {
	n := NewSprite("n", nil)
	n.SetPosition(30, -12)
	n.SetScale(2, 3)
	n.SetRotation(math.Pi / 6)
	m := computeLocalTransform(n)

	for i, v := range multiplyAffine(m, invertAffine(m)) {
		if !approxEqual(v, identityTransform[i], epsilon) {
			t.Fatalf("m*inv(m) = %v", multiplyAffine(m, invertAffine(m)))
		}
	}
	if multiplyAffine(identityTransform, m) != m {
		t.Error("identity*m != m")
	}
	if got := invertAffine([6]float64{0, 0, 0, 1, 10, 20}); got != identityTransform {
		t.Errorf("singular inverse = %v, want identity", got)
	}
}

func TestWorldAlphaMultiplies(t *testing.T) {
	layer := NewContainer("roof")
	tile := NewSprite("tile", nil)
	layer.AddChild(tile)
	layer.Alpha = 0.5
	tile.Alpha = 0.5
	updateWorldTransform(layer, identityTransform, 1, false)
	assertNear(t, "tile alpha", tile.worldAlpha, 0.25)
}

func TestWorldTransformDirtyTracking(t *testing.T) {
	world := NewContainer("world")
	entity := NewSprite("entity", nil)
	world.AddChild(entity)
	entity.SetPosition(10, 0)
	updateWorldTransform(world, identityTransform, 1, false)

	// Direct field writes are not seen until the node is marked dirty.
	entity.X = 999
	updateWorldTransform(world, identityTransform, 1, false)
	assertNear(t, "stale tx", entity.worldTransform[4], 10)
	entity.MarkDirty()
	updateWorldTransform(world, identityTransform, 1, false)
	assertNear(t, "fresh tx", entity.worldTransform[4], 999)

	// Moving the camera container refreshes clean children.
	world.SetPosition(-100, 0)
	updateWorldTransform(world, identityTransform, 1, false)
	assertNear(t, "child after camera move", entity.worldTransform[4], 899)
}

func TestSettersMarkDirty(t *testing.T) {
	n := NewContainer("n")
	for name, set := range map[string]func(){
		"SetPosition": func() { n.SetPosition(1, 2) },
		"SetScale":    func() { n.SetScale(-1, 1) },
		"SetRotation": func() { n.SetRotation(math.Pi) },
		"SetPivot":    func() { n.SetPivot(24, 24) },
	} {
		n.transformDirty = false
		set()
		if !n.transformDirty {
			t.Errorf("%s did not mark the node dirty", name)
		}
	}
}

func BenchmarkUpdateWorldTransformChunks(b *testing.B) {
	// 16 chunks of 16x16 tiles.
	world := NewContainer("world")
	for c := 0; c < 16; c++ {
		group := NewContainer("chunk")
		group.SetPosition(float64(c%4)*768, float64(c/4)*768)
		world.AddChild(group)
		for i := 0; i < 256; i++ {
			tile := NewSprite("tile", nil)
			tile.SetPosition(float64(i%16)*48+24, float64(i/16)*48+24)
			group.AddChild(tile)
		}
	}
	updateWorldTransform(world, identityTransform, 1, true)

	b.ReportAllocs()
	b.ResetTimer()
	x := 0.0
	for b.Loop() {
		x--
		world.SetPosition(x, 0)
		updateWorldTransform(world, identityTransform, 1, false)
	}
}
