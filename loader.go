package tilestage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// loadResult is posted by a background decode and consumed on the update
// goroutine at the start of the next tick.
type loadResult struct {
	path string
	img  image.Image
	err  error
}

const loadResultBuffer = 64

// AssetLoader decodes textures off the update goroutine. Requests are queued
// by the tick, dispatched without blocking, and their results come back as
// events; no tick ever waits on a load.
type AssetLoader struct {
	fsys    fs.FS
	group   *errgroup.Group
	queue   []string
	results chan loadResult
	pending int
}

// NewAssetLoader creates a loader reading from fsys with at most workers
// concurrent decodes.
func NewAssetLoader(fsys fs.FS, workers int) *AssetLoader {
	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}
	return &AssetLoader{
		fsys:    fsys,
		group:   g,
		results: make(chan loadResult, loadResultBuffer),
	}
}

// request queues path for decoding.
func (l *AssetLoader) request(path string) {
	l.queue = append(l.queue, path)
}

// dispatch starts as many queued decodes as the worker limit allows.
func (l *AssetLoader) dispatch() {
	n := 0
	for _, p := range l.queue {
		if !l.group.TryGo(func() error {
			img, err := l.decode(p)
			l.results <- loadResult{path: p, img: img, err: err}
			return nil
		}) {
			break
		}
		l.pending++
		n++
	}
	l.queue = append(l.queue[:0], l.queue[n:]...)
}

// drain hands every finished load to fn without blocking and dispatches
// queued work into freed slots.
func (l *AssetLoader) drain(fn func(path string, img *ebiten.Image, err error)) {
	for {
		select {
		case res := <-l.results:
			l.pending--
			if res.err != nil {
				fn(res.path, nil, res.err)
				continue
			}
			fn(res.path, ebiten.NewImageFromImage(res.img), nil)
		default:
			l.dispatch()
			return
		}
	}
}

// Busy reports whether loads are queued or running.
func (l *AssetLoader) Busy() bool {
	return l.pending > 0 || len(l.queue) > 0
}

// Wait blocks until every dispatched load has finished. It is meant for
// shutdown and tests, never for the tick.
func (l *AssetLoader) Wait() error {
	return l.group.Wait()
}

func (l *AssetLoader) decode(p string) (image.Image, error) {
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("tilestage: read texture %s: %w", p, err)
	}
	img, err := DecodeImage(bytes.NewReader(data), path.Ext(p))
	if err != nil {
		return nil, fmt.Errorf("tilestage: decode texture %s: %w", p, err)
	}
	return img, nil
}

// DecodeImage decodes an atlas or sprite sheet. The format is picked by file
// extension; TGA has no magic number, so sniffing cannot be used.
func DecodeImage(r io.Reader, ext string) (image.Image, error) {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Decode(r)
	case ".jpg", ".jpeg":
		return jpeg.Decode(r)
	case ".webp":
		return webp.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	default:
		img, _, err := image.Decode(r)
		return img, err
	}
}
