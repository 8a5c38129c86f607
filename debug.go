package tilestage

import (
	"time"

	"github.com/sirupsen/logrus"
)

// debugLogInterval is the number of ticks between debug stat entries.
const debugLogInterval = 120

// debugStats accumulates per-tick timings. Only populated when the world was
// built with Config.Debug.
type debugStats struct {
	ticks    int
	tickTime time.Duration
	maxTick  time.Duration
	chunks   int
	pending  int
	entities int
	textures int
	cameraX  float64
	cameraY  float64
}

// record adds one tick to the window.
func (d *debugStats) record(elapsed time.Duration, w *World) {
	d.ticks++
	d.tickTime += elapsed
	d.maxTick = max(d.maxTick, elapsed)
	d.chunks = w.chunks.Len()
	d.pending = w.chunks.Pending()
	d.entities = w.sprites.Len()
	d.textures = w.reg.CachedTextures()
	d.cameraX, d.cameraY = w.camera.X, w.camera.Y
}

// maybeLog writes one entry every debugLogInterval ticks and resets the
// window.
func (d *debugStats) maybeLog(w *World) {
	if d.ticks < debugLogInterval {
		return
	}
	for _, layer := range w.tileLayers.children {
		for _, group := range layer.children {
			debugCheckChildCount(w.log, group)
		}
	}
	w.log.WithFields(logrus.Fields{
		"ticks":    d.ticks,
		"avg_tick": d.tickTime / time.Duration(d.ticks),
		"max_tick": d.maxTick,
		"chunks":   d.chunks,
		"pending":  d.pending,
		"entities": d.entities,
		"textures": d.textures,
		"camera_x": d.cameraX,
		"camera_y": d.cameraY,
	}).Debug("tick stats")
	*d = debugStats{}
}

// debugMaxChildCount is the child count above which a container is
// reported. Chunk groups larger than this usually mean a map exported with
// a huge finite layer that should be chunked.
const debugMaxChildCount = 4096

// debugCheckChildCount warns if n has more children than debugMaxChildCount.
func debugCheckChildCount(log *logrus.Logger, n *Node) {
	if len(n.children) > debugMaxChildCount {
		log.WithFields(logrus.Fields{
			"node":      n.Name,
			"children":  len(n.children),
			"threshold": debugMaxChildCount,
		}).Warn("node has many children")
	}
}
