package tilestage

import "fmt"

// Map is the load-time description of a world: tilesets, tile layers in
// painter order and the clickable objects of the object layer.
type Map struct {
	// Width and Height are in tiles. Zero for infinite maps.
	Width, Height int
	TileWidth     int
	TileHeight    int
	Tilesets      []TilesetDef
	Layers        []TileLayer
	Objects       []ClickableObject
}

// TileLayer is one tile layer and the chunks that make it up.
type TileLayer struct {
	Info   LayerInfo
	Chunks []Chunk
}

// PixelBounds returns the map extent in world pixels. For infinite maps it
// is the union of all chunks.
func (m *Map) PixelBounds() Rect {
	if m.Width > 0 && m.Height > 0 {
		return Rect{Width: float64(m.Width * m.TileWidth), Height: float64(m.Height * m.TileHeight)}
	}
	var minX, minY, maxX, maxY int
	first := true
	for _, l := range m.Layers {
		for _, c := range l.Chunks {
			if first {
				minX, minY, maxX, maxY = c.X, c.Y, c.X+c.Width, c.Y+c.Height
				first = false
				continue
			}
			minX = min(minX, c.X)
			minY = min(minY, c.Y)
			maxX = max(maxX, c.X+c.Width)
			maxY = max(maxY, c.Y+c.Height)
		}
	}
	return Rect{
		X:      float64(minX * m.TileWidth),
		Y:      float64(minY * m.TileHeight),
		Width:  float64((maxX - minX) * m.TileWidth),
		Height: float64((maxY - minY) * m.TileHeight),
	}
}

func (m *Map) validate() error {
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return fmt.Errorf("tilestage: map tile size %dx%d must be positive", m.TileWidth, m.TileHeight)
	}
	seen := make(map[string]bool, len(m.Layers))
	for _, l := range m.Layers {
		if l.Info.Name == "" {
			return fmt.Errorf("tilestage: map has a tile layer without name")
		}
		if seen[l.Info.Name] {
			return fmt.Errorf("tilestage: duplicate tile layer %q", l.Info.Name)
		}
		seen[l.Info.Name] = true
	}
	return nil
}
