package tilestage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Chunk is a rectangular block of raw cells of one tile layer, as supplied
// by the map. X and Y are in tiles. Chunks are never split or merged.
type Chunk struct {
	Layer  string
	X, Y   int
	Width  int
	Height int
	Cells  []uint32 // row-major, len = Width * Height
}

// Key returns the chunk's identity.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{Layer: c.Layer, X: c.X, Y: c.Y}
}

// ChunkKey identifies a materialized chunk group.
type ChunkKey struct {
	Layer string
	X, Y  int
}

// LayerInfo declares a tile layer. Layers are painted in declaration order,
// first declared at the back.
type LayerInfo struct {
	Name string
	// Collision marks a non-visual layer; its chunks are never materialized.
	Collision bool
	Hidden    bool
	Opacity   float64
}

type tileLayer struct {
	info LayerInfo
	node *Node
}

// ChunkManager builds and destroys renderable chunk groups. Each group is a
// container positioned at the chunk origin holding one sprite per non-empty
// cell. Groups are keyed by (layer, x, y) and are always rebuilt wholesale.
type ChunkManager struct {
	reg    *TilesetRegistry
	parent *Node
	tileW  int
	tileH  int

	layers []*tileLayer
	byName map[string]*tileLayer

	groups  map[ChunkKey]*Node
	pending map[ChunkKey]Chunk
	source  map[ChunkKey]Chunk

	// ensureTexture asks for an atlas that is referenced but not yet known.
	ensureTexture func(path string)
	// noAtlas records tilesets without an atlas image, already reported.
	noAtlas map[string]bool

	log *logrus.Entry
}

// NewChunkManager creates a manager whose layer containers are children of
// parent. tileW and tileH are the map grid size.
func NewChunkManager(parent *Node, reg *TilesetRegistry, tileW, tileH int) *ChunkManager {
	return &ChunkManager{
		reg:     reg,
		parent:  parent,
		tileW:   tileW,
		tileH:   tileH,
		byName:  make(map[string]*tileLayer),
		groups:  make(map[ChunkKey]*Node),
		pending: make(map[ChunkKey]Chunk),
		source:  make(map[ChunkKey]Chunk),
		noAtlas: make(map[string]bool),
		log:     reg.log.Logger.WithField("component", "chunks"),
	}
}

// DeclareLayer appends a layer in painter order. Redeclaring a layer updates
// its visibility and opacity but keeps its position.
func (m *ChunkManager) DeclareLayer(info LayerInfo) {
	if info.Opacity == 0 {
		info.Opacity = 1
	}
	if l, ok := m.byName[info.Name]; ok {
		l.info = info
		l.node.Visible = !info.Hidden
		l.node.Alpha = info.Opacity
		l.node.MarkDirty()
		return
	}
	l := &tileLayer{info: info, node: NewContainer("layer:" + info.Name)}
	l.node.Visible = !info.Hidden
	l.node.Alpha = info.Opacity
	if info.Collision {
		l.node.Visible = false
	}
	m.layers = append(m.layers, l)
	m.byName[info.Name] = l
	m.parent.AddChild(l.node)
}

// LayerNode returns the container of a declared layer.
func (m *ChunkManager) LayerNode(name string) (*Node, bool) {
	l, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return l.node, true
}

// RenderChunk materializes c into layer. It is a no-op when the key already
// exists or the layer is a collision layer, which makes overlapping
// visibility requests safe. Undeclared layers are appended on top.
//
// If any tile references an atlas that is still loading, the chunk is held
// back and built by a later tick once the atlas arrives. Tiles of failed
// atlases are omitted. Reports whether a group was built.
func (m *ChunkManager) RenderChunk(c Chunk, layer string) bool {
	c.Layer = layer
	key := c.Key()
	if _, ok := m.groups[key]; ok {
		return false
	}
	l, ok := m.byName[layer]
	if !ok {
		m.DeclareLayer(LayerInfo{Name: layer})
		l = m.byName[layer]
	}
	if l.info.Collision {
		return false
	}
	if c.Width <= 0 || len(c.Cells) != c.Width*c.Height {
		m.log.WithFields(logrus.Fields{"layer": layer, "x": c.X, "y": c.Y, "cells": len(c.Cells)}).
			Warn("chunk size does not match cell data, skipping")
		return false
	}

	decoded := make([]DecodedTile, len(c.Cells))
	present := make([]bool, len(c.Cells))
	for i, cell := range c.Cells {
		dt, ok := DecodeCell(m.reg, cell)
		if !ok {
			continue
		}
		switch m.atlasState(dt.Tileset) {
		case textureLoading:
			m.pending[key] = c
			return false
		case textureFailed:
			continue
		}
		decoded[i] = dt
		present[i] = true
	}
	delete(m.pending, key)

	group := NewContainer(fmt.Sprintf("chunk:%s:%d:%d", layer, c.X, c.Y))
	group.SetPosition(float64(c.X*m.tileW), float64(c.Y*m.tileH))
	for i, dt := range decoded {
		if !present[i] {
			continue
		}
		img := m.reg.tileImage(dt)
		if img == nil {
			continue
		}
		tile := NewSprite("tile", img)
		placeTile(tile, dt, i%c.Width, i/c.Width, m.tileW, m.tileH)
		group.AddChild(tile)
	}
	l.node.AddChild(group)
	m.groups[key] = group
	return true
}

// atlasState reports whether def's atlas can be drawn from. A tileset with
// no atlas image counts as failed, so its tiles are left out.
func (m *ChunkManager) atlasState(def *TilesetDef) textureState {
	if def.ImagePath == "" {
		if !m.noAtlas[def.Name] {
			m.noAtlas[def.Name] = true
			m.log.WithField("tileset", def.Name).Warn("tileset has no atlas image, skipping its tiles")
		}
		return textureFailed
	}
	_, state, known := m.reg.lookupTexture(def.ImagePath)
	if !known {
		if m.ensureTexture != nil {
			m.ensureTexture(def.ImagePath)
		}
		return textureLoading
	}
	return state
}

// RemoveChunk destroys the groups of every layer at chunk coordinate (x, y)
// and drops pending builds for it. Returns the number of groups removed.
func (m *ChunkManager) RemoveChunk(x, y int) int {
	removed := 0
	for _, l := range m.layers {
		key := ChunkKey{Layer: l.info.Name, X: x, Y: y}
		delete(m.pending, key)
		if m.removeKey(key) {
			removed++
		}
	}
	return removed
}

// RemoveLayer destroys every group of one layer.
func (m *ChunkManager) RemoveLayer(name string) {
	for key := range m.groups {
		if key.Layer == name {
			m.removeKey(key)
		}
	}
	for key := range m.pending {
		if key.Layer == name {
			delete(m.pending, key)
		}
	}
}

func (m *ChunkManager) removeKey(key ChunkKey) bool {
	group, ok := m.groups[key]
	if !ok {
		return false
	}
	group.Dispose()
	delete(m.groups, key)
	return true
}

// Group returns the materialized group for key.
func (m *ChunkManager) Group(key ChunkKey) (*Node, bool) {
	g, ok := m.groups[key]
	return g, ok
}

// Len returns the number of materialized groups.
func (m *ChunkManager) Len() int {
	return len(m.groups)
}

// Pending returns the number of chunks waiting on an atlas.
func (m *ChunkManager) Pending() int {
	return len(m.pending)
}

// retryPending rebuilds held-back chunks. Called after texture events have
// been applied for the tick.
func (m *ChunkManager) retryPending() {
	if len(m.pending) == 0 {
		return
	}
	held := make([]Chunk, 0, len(m.pending))
	for _, c := range m.pending {
		held = append(held, c)
	}
	for _, c := range held {
		m.RenderChunk(c, c.Layer)
	}
}

// SetSource replaces the chunks known from map data. Streaming only ever
// materializes chunks present here.
func (m *ChunkManager) SetSource(chunks []Chunk) {
	clear(m.source)
	for _, c := range chunks {
		m.source[c.Key()] = c
	}
}

// Stream materializes source chunks that intersect bounds grown by margin
// chunks and destroys materialized source chunks outside it.
func (m *ChunkManager) Stream(bounds Rect, margin int) {
	for key, c := range m.source {
		cw := float64(c.Width * m.tileW)
		ch := float64(c.Height * m.tileH)
		area := Rect{
			X:      float64(c.X*m.tileW) - float64(margin)*cw,
			Y:      float64(c.Y*m.tileH) - float64(margin)*ch,
			Width:  cw * float64(1+2*margin),
			Height: ch * float64(1+2*margin),
		}
		if area.Intersects(bounds) {
			m.RenderChunk(c, key.Layer)
			continue
		}
		delete(m.pending, key)
		m.removeKey(key)
	}
}
