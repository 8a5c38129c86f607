package tilestage

import (
	"fmt"
	"image"
	"sort"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

// TilesetDef describes one tileset: a contiguous band of global tile ids
// starting at FirstGID, cut from one atlas image. Immutable after load.
type TilesetDef struct {
	Name       string
	FirstGID   uint32
	TileWidth  int
	TileHeight int
	Columns    int
	// TileCount bounds the band. Zero means unbounded (band ends at the next
	// tileset's FirstGID).
	TileCount int
	Spacing   int
	Margin    int
	// ImagePath is the atlas reference, resolved against the asset loader's
	// file system.
	ImagePath string
}

// SourceRect returns the atlas sub-rectangle of the tile with the given
// tileset-local index.
func (d *TilesetDef) SourceRect(local int) image.Rectangle {
	col := local % d.Columns
	row := local / d.Columns
	x := d.Margin + col*(d.TileWidth+d.Spacing)
	y := d.Margin + row*(d.TileHeight+d.Spacing)
	return image.Rect(x, y, x+d.TileWidth, y+d.TileHeight)
}

// textureState is the load state of one cached texture.
type textureState uint8

const (
	textureLoading textureState = iota
	textureReady
	textureFailed
)

type texture struct {
	path  string
	state textureState
	img   *ebiten.Image
}

// TilesetRegistry holds every TilesetDef sorted by FirstGID, the texture
// cache shared by atlases and entity sheets, and a bounded cache of tile
// sub-images keyed by clean GID.
//
// Only the update goroutine mutates the registry.
type TilesetRegistry struct {
	defs     []*TilesetDef
	textures map[string]*texture
	tiles    *ristretto.Cache[uint32, *ebiten.Image]
	log      *logrus.Entry
}

// NewTilesetRegistry creates an empty registry whose tile sub-image cache
// holds at most maxTiles entries.
func NewTilesetRegistry(maxTiles int64, log *logrus.Logger) (*TilesetRegistry, error) {
	if maxTiles <= 0 {
		maxTiles = 1
	}
	if log == nil {
		log = discardLogger()
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, *ebiten.Image]{
		NumCounters: maxTiles * 10,
		MaxCost:     maxTiles,
		BufferItems: 64,

		// Every tile costs 1, so MaxCost counts tiles.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("tilestage: tile cache: %w", err)
	}
	return &TilesetRegistry{
		textures: make(map[string]*texture),
		tiles:    cache,
		log:      log.WithField("component", "tileset"),
	}, nil
}

// Add registers def. Tilesets may be added in any order; FirstGID values
// must be unique.
func (r *TilesetRegistry) Add(def TilesetDef) error {
	if def.FirstGID == 0 {
		return fmt.Errorf("tilestage: tileset %q: firstgid must be >= 1", def.Name)
	}
	if def.Columns <= 0 || def.TileWidth <= 0 || def.TileHeight <= 0 {
		return fmt.Errorf("tilestage: tileset %q: columns and tile size must be positive", def.Name)
	}
	i := sort.Search(len(r.defs), func(i int) bool { return r.defs[i].FirstGID >= def.FirstGID })
	if i < len(r.defs) && r.defs[i].FirstGID == def.FirstGID {
		return fmt.Errorf("tilestage: tileset %q: firstgid %d already used by %q", def.Name, def.FirstGID, r.defs[i].Name)
	}
	d := def
	r.defs = append(r.defs, nil)
	copy(r.defs[i+1:], r.defs[i:])
	r.defs[i] = &d
	return nil
}

// Lookup returns the tileset whose band contains the clean gid: the one with
// the largest FirstGID <= gid, provided the local index is inside TileCount.
func (r *TilesetRegistry) Lookup(gid uint32) (*TilesetDef, bool) {
	if gid == 0 {
		return nil, false
	}
	i := sort.Search(len(r.defs), func(i int) bool { return r.defs[i].FirstGID > gid })
	if i == 0 {
		return nil, false
	}
	def := r.defs[i-1]
	if def.TileCount > 0 && int(gid-def.FirstGID) >= def.TileCount {
		return nil, false
	}
	return def, true
}

// Tilesets returns the registered tilesets in ascending FirstGID order.
// The returned slice MUST NOT be mutated.
func (r *TilesetRegistry) Tilesets() []*TilesetDef {
	return r.defs
}

// requestTexture records path as loading. It reports false if the texture is
// already known (loading, ready or failed).
func (r *TilesetRegistry) requestTexture(path string) bool {
	if _, ok := r.textures[path]; ok {
		return false
	}
	r.textures[path] = &texture{path: path, state: textureLoading}
	return true
}

// setTexture stores a loaded image. Called while draining loader events.
func (r *TilesetRegistry) setTexture(path string, img *ebiten.Image) {
	r.textures[path] = &texture{path: path, state: textureReady, img: img}
}

// failTexture marks path as permanently failed.
func (r *TilesetRegistry) failTexture(path string, err error) {
	r.textures[path] = &texture{path: path, state: textureFailed}
	r.log.WithError(err).WithField("path", path).Warn("texture load failed")
}

// lookupTexture returns the loaded image for path and its state. known is
// false for paths never requested.
func (r *TilesetRegistry) lookupTexture(path string) (img *ebiten.Image, state textureState, known bool) {
	t, ok := r.textures[path]
	if !ok {
		return nil, textureLoading, false
	}
	return t.img, t.state, true
}

// CachedTextures returns the number of successfully loaded textures.
func (r *TilesetRegistry) CachedTextures() int {
	n := 0
	for _, t := range r.textures {
		if t.state == textureReady {
			n++
		}
	}
	return n
}

// tileImage returns the atlas sub-image for a decoded tile, or nil if the
// tileset's atlas is not ready.
func (r *TilesetRegistry) tileImage(dt DecodedTile) *ebiten.Image {
	if img, ok := r.tiles.Get(dt.GID); ok {
		return img
	}
	t, ok := r.textures[dt.Tileset.ImagePath]
	if !ok || t.state != textureReady {
		return nil
	}
	sub := t.img.SubImage(dt.Src).(*ebiten.Image)
	r.tiles.Set(dt.GID, sub, 1)
	return sub
}

// Close releases the tile cache.
func (r *TilesetRegistry) Close() {
	r.tiles.Close()
}
