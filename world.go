package tilestage

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

// World owns every piece of render-side state: the node tree, the tileset
// registry, the chunk manager, entity sprites, the camera and the input
// router. It implements ebiten.Game.
//
// All mutation happens on the update goroutine inside Update; background
// texture loads only post events that Update drains.
type World struct {
	cfg Config
	log *logrus.Logger

	root        *Node
	worldLayer  *Node
	tileLayers  *Node
	entityLayer *Node

	reg     *TilesetRegistry
	loader  *AssetLoader
	chunks  *ChunkManager
	catalog *Catalog
	sprites *SpriteController
	camera  *Camera
	input   *InputRouter
	render  renderer

	initialized bool
	tileW       int
	tileH       int
	streaming   bool

	screenW, screenH int

	screenshotQueue []string
	injectQueue     []PointerEvent
	testRunner      *TestRunner

	debug   *debugStats
	overlay *statsOverlay
}

// NewWorld builds an empty world. Textures are read from fsys. handler
// receives interaction outcomes and may be nil. The world is not usable for
// ticking until LoadMap succeeds.
func NewWorld(cfg Config, fsys fs.FS, log *logrus.Logger, handler OutcomeHandler) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = discardLogger()
	}
	reg, err := NewTilesetRegistry(cfg.Assets.MaxCachedTiles, log)
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:         cfg,
		log:         log,
		root:        NewContainer("root"),
		worldLayer:  NewContainer("world"),
		tileLayers:  NewContainer("tiles"),
		entityLayer: NewContainer("entities"),
		reg:         reg,
		loader:      NewAssetLoader(fsys, cfg.Assets.Workers),
		catalog:     DefaultCatalog(),
		tileW:       cfg.Render.TileSize,
		tileH:       cfg.Render.TileSize,
		screenW:     cfg.Window.Width,
		screenH:     cfg.Window.Height,
	}
	w.root.AddChild(w.worldLayer)
	w.worldLayer.AddChild(w.tileLayers)
	w.worldLayer.AddChild(w.entityLayer)
	// Interactable on the path down to entity sprites.
	w.entityLayer.Interactable = true

	w.camera = newCamera(Rect{Width: float64(cfg.Window.Width), Height: float64(cfg.Window.Height)}, cfg.Camera.Smoothing)
	w.chunks = NewChunkManager(w.tileLayers, reg, w.tileW, w.tileH)
	w.chunks.ensureTexture = w.ensureTexture
	w.sprites = NewSpriteController(w.catalog, w.entityLayer, reg)
	w.sprites.ensureTexture = w.ensureTexture
	w.input = newInputRouter(handler, w.camera, w.entityLayer, w.tileW, log)
	if cfg.Debug {
		w.debug = &debugStats{}
		w.overlay = newStatsOverlay()
	}
	return w, nil
}

// Logger returns the world's logger.
func (w *World) Logger() *logrus.Logger { return w.log }

// Config returns the configuration the world was built with.
func (w *World) Config() Config { return w.cfg }

// Camera returns the world camera.
func (w *World) Camera() *Camera { return w.camera }

// Chunks returns the chunk manager.
func (w *World) Chunks() *ChunkManager { return w.chunks }

// Sprites returns the entity sprite controller.
func (w *World) Sprites() *SpriteController { return w.sprites }

// Input returns the input router.
func (w *World) Input() *InputRouter { return w.input }

// Tilesets returns the tileset registry.
func (w *World) Tilesets() *TilesetRegistry { return w.reg }

// Root returns the root of the node tree.
func (w *World) Root() *Node { return w.root }

// SetCatalog replaces the animation catalog. Entities added earlier keep
// their resolved animations until their next switch.
func (w *World) SetCatalog(c *Catalog) {
	w.catalog = c
	w.sprites.catalog = c
}

// LoadMap registers the map's tilesets, declares its layers in painter
// order, installs its objects and starts loading its atlases. Finite maps
// are materialized immediately (atlases permitting); infinite maps stream
// chunks around the camera each tick.
func (w *World) LoadMap(m *Map) error {
	if err := m.validate(); err != nil {
		return err
	}
	for _, ts := range m.Tilesets {
		if err := w.reg.Add(ts); err != nil {
			return err
		}
		w.ensureTexture(ts.ImagePath)
	}

	w.tileW, w.tileH = m.TileWidth, m.TileHeight
	w.chunks.tileW, w.chunks.tileH = m.TileWidth, m.TileHeight
	w.input.tileSize = float64(m.TileWidth)

	var all []Chunk
	for _, l := range m.Layers {
		w.chunks.DeclareLayer(l.Info)
		for _, c := range l.Chunks {
			c.Layer = l.Info.Name
			all = append(all, c)
		}
	}
	w.input.SetObjects(m.Objects)
	w.camera.SetBounds(m.PixelBounds())

	w.streaming = m.Width == 0 || m.Height == 0
	if w.streaming {
		w.chunks.SetSource(all)
	} else {
		for _, c := range all {
			w.chunks.RenderChunk(c, c.Layer)
		}
	}

	w.initialized = true
	w.log.WithFields(logrus.Fields{
		"tilesets":  len(m.Tilesets),
		"layers":    len(m.Layers),
		"chunks":    len(all),
		"objects":   len(m.Objects),
		"streaming": w.streaming,
	}).Info("map loaded")
	return nil
}

// Initialized reports whether a map has been loaded.
func (w *World) Initialized() bool { return w.initialized }

func (w *World) ensureTexture(path string) {
	if path == "" {
		return
	}
	if w.reg.requestTexture(path) {
		w.loader.request(path)
	}
}

// LoadTexture starts loading an entity sprite sheet ahead of use.
func (w *World) LoadTexture(path string) {
	w.ensureTexture(path)
}

// AddEntity adds an entity sprite. See SpriteController.AddEntity.
func (w *World) AddEntity(id uint32, spec EntitySpec) error {
	if !w.initialized {
		return w.notInitialized("AddEntity")
	}
	w.sprites.AddEntity(id, spec)
	return nil
}

// RemoveEntity removes an entity sprite and its state.
func (w *World) RemoveEntity(id uint32) error {
	if !w.sprites.RemoveEntity(id) {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if t, ok := w.camera.FollowTarget(); ok && t == id {
		w.camera.ClearFollowTarget()
	}
	return nil
}

// SetFollowTarget makes the camera track entity id.
func (w *World) SetFollowTarget(id uint32) error {
	if _, ok := w.sprites.Position(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	w.camera.SetFollowTarget(id)
	return nil
}

func (w *World) notInitialized(op string) error {
	w.log.WithField("op", op).Error("world used before a map was loaded")
	return fmt.Errorf("tilestage: %s: %w", op, ErrNotInitialized)
}

// Update runs one tick: texture events, input, entity movement and
// animation, world transforms, camera, chunk streaming.
func (w *World) Update() error {
	if !w.initialized {
		return w.notInitialized("Update")
	}
	dt := 1.0 / float64(ebiten.TPS())
	return w.tick(dt)
}

// Tick runs one tick with an explicit time step. Used by tests and by
// drivers that own their clock.
func (w *World) Tick(dt float64) error {
	if !w.initialized {
		return w.notInitialized("Tick")
	}
	return w.tick(dt)
}

func (w *World) tick(dt float64) error {
	var t0 time.Time
	if w.debug != nil {
		t0 = time.Now()
	}

	w.loader.drain(w.applyTexture)
	w.chunks.retryPending()

	if w.testRunner != nil {
		w.testRunner.step(w)
	}
	// World transforms must match what was drawn last frame for hit-testing.
	updateWorldTransform(w.root, identityTransform, 1, false)
	w.processInjectedInput()
	if w.input.Live {
		w.input.poll()
	}
	w.input.drain()

	w.sprites.advancePaths(dt)
	w.sprites.UpdateAll(dt)

	w.camera.update(float32(dt), w.sprites.Position)
	w.worldLayer.SetPosition(w.camera.X, w.camera.Y)
	updateWorldTransform(w.root, identityTransform, 1, false)

	if w.streaming {
		w.chunks.Stream(w.camera.VisibleBounds(), w.cfg.Render.ChunkMargin)
		updateWorldTransform(w.root, identityTransform, 1, false)
	}

	if w.debug != nil {
		w.debug.record(time.Since(t0), w)
		w.debug.maybeLog(w)
		w.overlay.update(dt, w)
	}
	return nil
}

// applyTexture consumes one finished load.
func (w *World) applyTexture(path string, img *ebiten.Image, err error) {
	if err != nil {
		w.reg.failTexture(path, err)
	} else {
		w.reg.setTexture(path, img)
		w.log.WithField("path", path).Debug("texture ready")
	}
	w.sprites.textureReady(path)
}

// Draw renders the world. Drawing before a map is loaded is an integration
// error and panics, since ebiten's Draw has no error return.
func (w *World) Draw(screen *ebiten.Image) {
	if !w.initialized {
		panic(w.notInitialized("Draw"))
	}
	w.render.draw(screen, w.root)
	// Screenshots capture the world only.
	w.flushScreenshots(screen)
	if w.overlay != nil {
		w.overlay.draw(screen)
	}
}

// Layout reports the logical canvas size from the configuration.
func (w *World) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.screenW, w.screenH
}

// Close waits for in-flight loads and releases caches.
func (w *World) Close() error {
	err := w.loader.Wait()
	w.reg.Close()
	return err
}

// Run opens the window described by the configuration and runs the world
// until the window closes or Update returns an error.
func Run(w *World) error {
	cfg := w.cfg
	ebiten.SetWindowSize(cfg.Window.Width, cfg.Window.Height)
	ebiten.SetWindowTitle(cfg.Window.Title)
	ebiten.SetTPS(cfg.Render.Quality.TPS())
	w.log.WithFields(logrus.Fields{
		"width":   cfg.Window.Width,
		"height":  cfg.Window.Height,
		"quality": cfg.Render.Quality,
		"tps":     cfg.Render.Quality.TPS(),
	}).Info("starting frame loop")
	return ebiten.RunGame(w)
}
