package tilestage

import (
	"image"
	"math"
)

// GID flag bits (Tiled TMX/TMJ convention).
const (
	FlagFlipH uint32 = 1 << 31 // horizontal flip
	FlagFlipV uint32 = 1 << 30 // vertical flip
	FlagFlipD uint32 = 1 << 29 // diagonal flip (anti-diagonal transpose)
	// FlagLegacy is the hexagonal 120° rotation bit. Orthogonal maps never
	// set it on purpose; it is cleared and otherwise ignored.
	FlagLegacy uint32 = 1 << 28

	flagMask = FlagFlipH | FlagFlipV | FlagFlipD | FlagLegacy
)

// CleanGID strips all flag bits from a raw cell value.
func CleanGID(cell uint32) uint32 {
	return cell &^ flagMask
}

// Orientation is the sprite transform that reproduces a tile's flip flags
// when the sprite is anchored at its center.
type Orientation struct {
	Rotation float64 // radians, clockwise on screen
	ScaleX   float64
	ScaleY   float64
}

// orientationTable is indexed by (H << 2) | (V << 1) | D. The flags do not
// commute, so every combination is listed rather than derived.
var orientationTable = [8]Orientation{
	{Rotation: 0, ScaleX: 1, ScaleY: 1},            // none
	{Rotation: math.Pi / 2, ScaleX: 1, ScaleY: -1}, // D
	{Rotation: 0, ScaleX: 1, ScaleY: -1},           // V
	{Rotation: -math.Pi / 2, ScaleX: 1, ScaleY: 1}, // V+D
	{Rotation: 0, ScaleX: -1, ScaleY: 1},           // H
	{Rotation: math.Pi / 2, ScaleX: 1, ScaleY: 1},  // H+D
	{Rotation: math.Pi, ScaleX: 1, ScaleY: 1},      // H+V
	{Rotation: math.Pi / 2, ScaleX: -1, ScaleY: 1}, // H+V+D
}

// OrientationFor returns the table entry for the given flags.
func OrientationFor(h, v, d bool) Orientation {
	idx := 0
	if h {
		idx |= 4
	}
	if v {
		idx |= 2
	}
	if d {
		idx |= 1
	}
	return orientationTable[idx]
}

// misflaggedTileGID is a tile the current town map exports with D+V where
// D+H was authored. Remove patchMisflaggedTile once the map asset is
// re-exported with correct flags.
const misflaggedTileGID = 365

// patchMisflaggedTile corrects the known bad encoding of misflaggedTileGID.
// It is a data fix for one asset, not a decoding rule.
func patchMisflaggedTile(gid uint32, h, v, d bool) (bool, bool, bool) {
	if gid == misflaggedTileGID && d && v && !h {
		return true, false, true
	}
	return h, v, d
}

// DecodedTile is one drawable unit produced from a raw cell.
type DecodedTile struct {
	GID     uint32 // clean gid
	Tileset *TilesetDef
	Src     image.Rectangle // atlas sub-rectangle
	Orientation
}

// DecodeCell converts a raw cell into a drawable unit. It reports false for
// the empty cell (0) and for ids outside every tileset band; the latter is
// logged and treated as transparent.
func DecodeCell(reg *TilesetRegistry, cell uint32) (DecodedTile, bool) {
	if cell == 0 {
		return DecodedTile{}, false
	}
	gid := CleanGID(cell)
	def, ok := reg.Lookup(gid)
	if !ok {
		reg.log.WithField("cell", cell).WithField("gid", gid).Debug("decode skip: gid outside tileset ranges")
		return DecodedTile{}, false
	}

	h := cell&FlagFlipH != 0
	v := cell&FlagFlipV != 0
	d := cell&FlagFlipD != 0
	h, v, d = patchMisflaggedTile(gid, h, v, d)

	return DecodedTile{
		GID:         gid,
		Tileset:     def,
		Src:         def.SourceRect(int(gid - def.FirstGID)),
		Orientation: OrientationFor(h, v, d),
	}, true
}

// placeTile configures a tile sprite for a decoded cell at grid cell
// (col, row) inside a chunk with cellW x cellH map tiles. The sprite is
// anchored at its own center; the position is shifted by half a tile so the
// grid stays top-left based. Tiles taller than the map grid are aligned to
// the bottom of their cell, as Tiled draws them.
func placeTile(n *Node, dt DecodedTile, col, row, cellW, cellH int) {
	tw := float64(dt.Tileset.TileWidth)
	th := float64(dt.Tileset.TileHeight)
	x := float64(col*cellW) + tw/2
	y := float64(row*cellH) + float64(cellH) - th + th/2
	n.SetPivot(tw/2, th/2)
	n.SetPosition(x, y)
	n.SetRotation(dt.Rotation)
	n.SetScale(dt.ScaleX, dt.ScaleY)
}
