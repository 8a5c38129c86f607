package tiled

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/phanxgames/tilestage"
)

// DefaultChunkSize is the chunk edge, in tiles, used to split the layers of
// finite maps.
const DefaultChunkSize = 16

// Options controls conversion into a tilestage.Map.
type Options struct {
	// ChunkSize splits finite layers into chunks of this many tiles per edge.
	// Zero uses DefaultChunkSize.
	ChunkSize int
}

// Load reads the map at name from fsys, resolves external tilesets and
// converts it. Image paths in the result are relative to fsys.
func Load(fsys fs.FS, name string, opts Options) (*tilestage.Map, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("tiled: read %s: %w", name, err)
	}
	mf, err := ParseMap(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, name)
	}
	dir := path.Dir(name)
	for i, ts := range mf.Tilesets {
		if ts.Source == "" {
			mf.Tilesets[i].Image = resolve(dir, ts.Image)
			continue
		}
		src := resolve(dir, ts.Source)
		tsData, err := fs.ReadFile(fsys, src)
		if err != nil {
			return nil, fmt.Errorf("tiled: read tileset %s: %w", src, err)
		}
		ext, err := ParseTileset(tsData)
		if err != nil {
			return nil, fmt.Errorf("%w (%s)", err, src)
		}
		ext.FirstGID = ts.FirstGID
		ext.Image = resolve(path.Dir(src), ext.Image)
		mf.Tilesets[i] = *ext
	}
	return Convert(mf, opts)
}

// resolve joins a Tiled-relative reference onto dir. fs.FS paths never
// start with "./".
func resolve(dir, ref string) string {
	if ref == "" {
		return ""
	}
	return path.Clean(path.Join(dir, ref))
}

// Convert turns a parsed map into a tilestage.Map. Tilesets must already be
// embedded (external sources resolved). Tile layers keep their painter
// order; object layers become clickable objects in layer order.
func Convert(mf *MapFile, opts Options) (*tilestage.Map, error) {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	m := &tilestage.Map{
		TileWidth:  mf.TileWidth,
		TileHeight: mf.TileHeight,
	}
	if !mf.Infinite {
		m.Width, m.Height = mf.Width, mf.Height
	}

	for _, ts := range mf.Tilesets {
		if ts.Source != "" {
			return nil, fmt.Errorf("tiled: tileset %q still references %s", ts.Name, ts.Source)
		}
		columns := ts.Columns
		if columns == 0 && ts.TileWidth > 0 {
			columns = max(1, (ts.ImageWidth-2*ts.Margin+ts.Spacing)/(ts.TileWidth+ts.Spacing))
		}
		m.Tilesets = append(m.Tilesets, tilestage.TilesetDef{
			Name:       ts.Name,
			FirstGID:   ts.FirstGID,
			TileWidth:  ts.TileWidth,
			TileHeight: ts.TileHeight,
			Columns:    columns,
			TileCount:  ts.TileCount,
			Spacing:    ts.Spacing,
			Margin:     ts.Margin,
			ImagePath:  ts.Image,
		})
	}

	var walk func(layers []Layer, hidden bool, opacity float64) error
	walk = func(layers []Layer, hidden bool, opacity float64) error {
		for _, l := range layers {
			lHidden := hidden || !l.Visible
			lOpacity := opacity * l.Opacity
			switch l.Type {
			case "group":
				if err := walk(l.Layers, lHidden, lOpacity); err != nil {
					return err
				}
			case "tilelayer":
				tl, err := convertTileLayer(l, mf.Infinite, size)
				if err != nil {
					return fmt.Errorf("tiled: layer %q: %w", l.Name, err)
				}
				tl.Info.Hidden = lHidden
				tl.Info.Opacity = lOpacity
				m.Layers = append(m.Layers, tl)
			case "objectgroup":
				m.Objects = append(m.Objects, convertObjects(l)...)
			}
		}
		return nil
	}
	if err := walk(mf.Layers, false, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// IsCollisionLayer reports whether a tile layer is non-visual collision
// data: a true "collision" property or a layer named "collision".
func IsCollisionLayer(l Layer) bool {
	return l.Properties.Bool("collision") || strings.EqualFold(l.Name, "collision")
}

func convertTileLayer(l Layer, infinite bool, size int) (tilestage.TileLayer, error) {
	tl := tilestage.TileLayer{
		Info: tilestage.LayerInfo{Name: l.Name, Collision: IsCollisionLayer(l)},
	}
	if infinite || len(l.Chunks) > 0 {
		for _, cd := range l.Chunks {
			cells, err := DecodeData(cd.Data, l.Encoding, l.Compression, cd.Width*cd.Height)
			if err != nil {
				return tl, fmt.Errorf("chunk (%d,%d): %w", cd.X, cd.Y, err)
			}
			tl.Chunks = append(tl.Chunks, tilestage.Chunk{
				Layer: l.Name, X: cd.X, Y: cd.Y, Width: cd.Width, Height: cd.Height, Cells: cells,
			})
		}
		return tl, nil
	}

	cells, err := DecodeData(l.Data, l.Encoding, l.Compression, l.Width*l.Height)
	if err != nil {
		return tl, err
	}
	tl.Chunks = SplitChunks(l.Name, cells, l.X, l.Y, l.Width, l.Height, size)
	return tl, nil
}

// SplitChunks cuts a finite layer's row-major cells into chunks of at most
// size x size tiles. Chunks with no tiles are dropped.
func SplitChunks(layer string, cells []uint32, originX, originY, width, height, size int) []tilestage.Chunk {
	var chunks []tilestage.Chunk
	for cy := 0; cy < height; cy += size {
		for cx := 0; cx < width; cx += size {
			w := min(size, width-cx)
			h := min(size, height-cy)
			part := make([]uint32, 0, w*h)
			empty := true
			for row := cy; row < cy+h; row++ {
				for col := cx; col < cx+w; col++ {
					v := cells[row*width+col]
					if v != 0 {
						empty = false
					}
					part = append(part, v)
				}
			}
			if empty {
				continue
			}
			chunks = append(chunks, tilestage.Chunk{
				Layer: layer, X: originX + cx, Y: originY + cy, Width: w, Height: h, Cells: part,
			})
		}
	}
	return chunks
}

func convertObjects(l Layer) []tilestage.ClickableObject {
	objects := make([]tilestage.ClickableObject, 0, len(l.Objects))
	for _, o := range l.Objects {
		if !o.Visible || o.Point || o.Width <= 0 || o.Height <= 0 {
			continue
		}
		category := o.Class
		if category == "" {
			category = o.Type
		}
		if c, ok := o.Properties.String("category"); ok && c != "" {
			category = c
		}
		y := o.Y
		if o.GID != 0 {
			// Tile objects are anchored bottom-left.
			y -= o.Height
		}
		objects = append(objects, tilestage.ClickableObject{
			ID:         o.ID,
			Name:       o.Name,
			Category:   category,
			X:          o.X,
			Y:          y,
			Width:      o.Width,
			Height:     o.Height,
			Properties: o.Properties.Map(),
		})
	}
	return objects
}
