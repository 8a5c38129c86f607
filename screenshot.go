package tilestage

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/hajimehoshi/ebiten/v2"
)

// Screenshot queues a labeled capture of the world frame. It is taken at the
// end of the next Draw and written to the configured screenshot directory as
// <timestamp>_<label>.<format>.
func (w *World) Screenshot(label string) {
	w.screenshotQueue = append(w.screenshotQueue, label)
}

// flushScreenshots writes every queued capture of screen.
func (w *World) flushScreenshots(screen *ebiten.Image) {
	if len(w.screenshotQueue) == 0 {
		return
	}
	defer func() { w.screenshotQueue = w.screenshotQueue[:0] }()

	sc := w.cfg.Screenshot
	if err := os.MkdirAll(sc.Dir, 0o755); err != nil {
		w.log.WithError(err).WithField("dir", sc.Dir).Warn("screenshot: cannot create directory")
		return
	}

	img := frameImage(screen)
	stamp := time.Now().Format("20060102_150405")
	for _, label := range w.screenshotQueue {
		path := filepath.Join(sc.Dir, fmt.Sprintf("%s_%s.%s", stamp, sanitizeLabel(label), sc.Format))
		if err := writeScreenshot(path, img, sc.Format); err != nil {
			w.log.WithError(err).Warn("screenshot failed")
			continue
		}
		w.log.WithField("path", path).Info("screenshot written")
	}
}

// frameImage copies screen into a straight-alpha image.
func frameImage(screen *ebiten.Image) *image.NRGBA {
	b := screen.Bounds()
	pix := make([]byte, 4*b.Dx()*b.Dy())
	screen.ReadPixels(pix)
	return unpremultiply(pix, b.Dx(), b.Dy())
}

// unpremultiply converts premultiplied RGBA pixels to NRGBA.
func unpremultiply(pix []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i+3 < len(pix) && i+3 < len(img.Pix); i += 4 {
		r, g, b, a := pix[i], pix[i+1], pix[i+2], pix[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, b, a
	}
	return img
}

func writeScreenshot(path string, img image.Image, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tilestage: create %s: %w", path, err)
	}
	if err := encodeScreenshot(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("tilestage: encode %s: %w", path, err)
	}
	return f.Close()
}

// encodeScreenshot writes img as png or lossless webp.
func encodeScreenshot(dst io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(dst, img)
	case "webp":
		return nativewebp.Encode(dst, img, nil)
	default:
		return fmt.Errorf("unsupported screenshot format %q", format)
	}
}

// sanitizeLabel keeps letters, digits, '-' and '.' and replaces everything
// else with '_'. Blank labels become "unlabeled".
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
