// Package tilestage renders a tile-based 2D world with [Ebitengine]: chunked
// tile layers decoded from Tiled data, animated character sprites, a
// following camera and pointer hit-testing that turns clicks into
// move/interact outcomes.
//
// # Quick start
//
// Load a map with the tiled subpackage, build a [World] and hand it to
// [Run], which opens the window and drives the frame loop:
//
//	cfg, _ := tilestage.LoadConfig("tilestage.yaml")
//	log, closer := tilestage.NewLogger(cfg.Log)
//	defer closer.Close()
//
//	assets := os.DirFS(cfg.Assets.Dir)
//	m, err := tiled.Load(assets, "town.tmj", tiled.Options{})
//	// ...
//	w, err := tilestage.NewWorld(cfg, assets, log, handler)
//	// ...
//	_ = w.LoadMap(m)
//	_ = w.AddEntity(1, tilestage.EntitySpec{X: 480, Y: 320, Texture: "chars/hero.png"})
//	_ = w.SetFollowTarget(1)
//	_ = tilestage.Run(w)
//
// For full control, call [World.Tick] with your own clock and
// [World.Draw] from your own [ebiten.Game].
//
// # World tree
//
// Everything drawn is a [Node]. The world container holds one container per
// tile layer (in map order, first at the back) followed by the entity
// container. Each tile layer holds chunk groups built by the
// [ChunkManager]; entity sprites are sorted by their feet Y so lower
// characters draw in front. The world container is positioned at the
// [Camera] offset every tick.
//
// # Tiles
//
// Raw cells carry Tiled's flip flags in their top bits. [DecodeCell] strips
// them, finds the owning tileset and maps the flag combination onto a
// rotation and scale through a fixed eight-entry table. Tiles referencing an
// atlas that is still loading are built once it arrives.
//
// # Interaction
//
// Pointer presses are resolved once per tick by the [InputRouter]: the
// topmost character sprite wins, then the first interactive map object, and
// anything else is a ground click snapped to its tile center. Outcomes go
// to an [OutcomeHandler]; the ecs module adapts them onto [Donburi] events.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
package tilestage
