// Package tiled reads maps and tilesets saved by the Tiled editor in its
// JSON formats (.tmj / .tsj) and converts them into tilestage.Map values.
//
// Finite and infinite maps are supported, with layer data stored as a plain
// array (csv) or base64 with optional gzip, zlib or zstd compression. Group
// layers are flattened in painter order.
package tiled

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MapFile is the subset of a .tmj document the loader needs.
type MapFile struct {
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	TileWidth   int        `json:"tilewidth"`
	TileHeight  int        `json:"tileheight"`
	Infinite    bool       `json:"infinite"`
	Orientation string     `json:"orientation"`
	Layers      []Layer    `json:"layers"`
	Tilesets    []Tileset  `json:"tilesets"`
	Properties  Properties `json:"properties,omitempty"`
}

// Layer is any Tiled layer. Which fields are set depends on Type.
type Layer struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"` // "tilelayer", "objectgroup", "imagelayer", "group"
	Visible bool    `json:"visible"`
	Opacity float64 `json:"opacity"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`

	Encoding    string          `json:"encoding,omitempty"`    // "csv" (default) or "base64"
	Compression string          `json:"compression,omitempty"` // "", "gzip", "zlib", "zstd"
	Data        json.RawMessage `json:"data,omitempty"`
	Chunks      []ChunkData     `json:"chunks,omitempty"`

	Objects []Object `json:"objects,omitempty"`
	Layers  []Layer  `json:"layers,omitempty"`

	Properties Properties `json:"properties,omitempty"`
}

// ChunkData is one chunk of an infinite map layer. X and Y are in tiles.
type ChunkData struct {
	X      int             `json:"x"`
	Y      int             `json:"y"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Data   json.RawMessage `json:"data"`
}

// Object is an object of an objectgroup layer.
type Object struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type,omitempty"`
	Class   string  `json:"class,omitempty"` // Tiled >= 1.9 renamed type to class
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Visible bool    `json:"visible"`
	GID     uint32  `json:"gid,omitempty"`
	Point   bool    `json:"point,omitempty"`

	Properties Properties `json:"properties,omitempty"`
}

// Tileset is a tileset reference in a map: either embedded or pointing at a
// .tsj file through Source.
type Tileset struct {
	FirstGID    uint32 `json:"firstgid"`
	Source      string `json:"source,omitempty"`
	Name        string `json:"name,omitempty"`
	TileWidth   int    `json:"tilewidth,omitempty"`
	TileHeight  int    `json:"tileheight,omitempty"`
	TileCount   int    `json:"tilecount,omitempty"`
	Columns     int    `json:"columns,omitempty"`
	Spacing     int    `json:"spacing,omitempty"`
	Margin      int    `json:"margin,omitempty"`
	Image       string `json:"image,omitempty"`
	ImageWidth  int    `json:"imagewidth,omitempty"`
	ImageHeight int    `json:"imageheight,omitempty"`
}

// Property is a custom property. Value holds a string, number or bool
// depending on Type.
type Property struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Properties is a list of custom properties with typed lookups.
type Properties []Property

// Get returns the raw value of the named property.
func (p Properties) Get(name string) (any, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return nil, false
}

// String returns the named property formatted as a string.
func (p Properties) String(name string) (string, bool) {
	v, ok := p.Get(name)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// Bool returns the named property as a bool. String values "true" and "1"
// count as true so hand-edited maps work.
func (p Properties) Bool(name string) bool {
	v, ok := p.Get(name)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	}
	return false
}

// Map converts the properties into a plain string map.
func (p Properties) Map() map[string]string {
	if len(p) == 0 {
		return nil
	}
	m := make(map[string]string, len(p))
	for _, prop := range p {
		m[prop.Name], _ = p.String(prop.Name)
	}
	return m
}

// ParseMap decodes a .tmj document.
func ParseMap(data []byte) (*MapFile, error) {
	var m MapFile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("tiled: parse map: %w", err)
	}
	if m.Orientation != "" && m.Orientation != "orthogonal" {
		return nil, fmt.Errorf("tiled: unsupported orientation %q", m.Orientation)
	}
	if m.TileWidth <= 0 || m.TileHeight <= 0 {
		return nil, fmt.Errorf("tiled: map tile size %dx%d must be positive", m.TileWidth, m.TileHeight)
	}
	return &m, nil
}

// ParseTileset decodes a .tsj document. FirstGID is not part of the file
// and must be set by the caller.
func ParseTileset(data []byte) (*Tileset, error) {
	var ts Tileset
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("tiled: parse tileset: %w", err)
	}
	return &ts, nil
}
