package tilestage

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// overlayRefresh is the number of seconds between overlay redraws.
const overlayRefresh = 0.5

// statsOverlay is the corner readout drawn over the world in debug mode:
// frame rates, chunk and entity counts and the camera offset.
type statsOverlay struct {
	img     *ebiten.Image
	elapsed float64
	text    string
	op      ebiten.DrawImageOptions
}

func newStatsOverlay() *statsOverlay {
	// Wide enough for five DebugPrint lines.
	return &statsOverlay{img: ebiten.NewImage(220, 84), elapsed: overlayRefresh}
}

// update redraws the readout every overlayRefresh seconds.
func (o *statsOverlay) update(dt float64, w *World) {
	o.elapsed += dt
	if o.elapsed < overlayRefresh {
		return
	}
	o.elapsed = 0
	st := w.Status()
	o.text = fmt.Sprintf("FPS: %.1f  TPS: %.1f\nchunks: %d (+%d pending)\nentities: %d\ntextures: %d\ncamera: %.0f, %.0f",
		ebiten.ActualFPS(), ebiten.ActualTPS(),
		st.ChunkCount, st.PendingChunks, st.EntityCount, st.CachedTextures,
		w.camera.X, w.camera.Y)

	o.img.Clear()
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, o.text)
}

// draw blits the readout to the top-left corner of screen.
func (o *statsOverlay) draw(screen *ebiten.Image) {
	o.op.GeoM.Reset()
	o.op.GeoM.Translate(4, 4)
	screen.DrawImage(o.img, &o.op)
}
