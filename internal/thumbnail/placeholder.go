package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	placeholderQuality = 85
	playIconSize       = 40
	frameMargin        = 60
	frameWidth         = 3
)

var (
	placeholderBackground = color.NRGBA{R: 0x2d, G: 0x37, B: 0x48, A: 0xff}
	placeholderInk        = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	placeholderJPEG = sync.OnceValue(renderPlaceholder)
)

// Placeholder returns the synthetic 480x270 JPEG used when no frame can be
// extracted: a dark slate background with a white play triangle in the
// centre and a thin white frame.
func Placeholder() []byte {
	return bytes.Clone(placeholderJPEG())
}

func renderPlaceholder() []byte {
	img := imaging.New(Width, Height, placeholderBackground)

	cx, cy, half := Width/2, Height/2, playIconSize/2
	fillTriangle(img,
		image.Pt(cx-half, cy-half),
		image.Pt(cx-half, cy+half),
		image.Pt(cx+half, cy),
		placeholderInk)
	strokeRect(img, image.Rect(frameMargin, frameMargin, Width-frameMargin, Height-frameMargin), frameWidth, placeholderInk)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(placeholderQuality)); err != nil {
		// Encoding an in-memory NRGBA into a bytes.Buffer cannot fail.
		panic(err)
	}
	return buf.Bytes()
}

// strokeRect draws a border of the given width inside r.
func strokeRect(img *image.NRGBA, r image.Rectangle, width int, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if x < r.Min.X+width || x >= r.Max.X-width || y < r.Min.Y+width || y >= r.Max.Y-width {
				img.Set(x, y, c)
			}
		}
	}
}

// fillTriangle fills the triangle abc using edge-function tests.
func fillTriangle(img *image.NRGBA, a, b, c image.Point, col color.Color) {
	bounds := image.Rectangle{Min: a, Max: a.Add(image.Pt(1, 1))}.
		Union(image.Rectangle{Min: b, Max: b.Add(image.Pt(1, 1))}).
		Union(image.Rectangle{Min: c, Max: c.Add(image.Pt(1, 1))}).
		Intersect(img.Bounds())

	edge := func(p, q, r image.Point) int {
		return (q.X-p.X)*(r.Y-p.Y) - (q.Y-p.Y)*(r.X-p.X)
	}
	area := edge(a, b, c)
	if area == 0 {
		return
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			p := image.Pt(x, y)
			w0, w1, w2 := edge(b, c, p), edge(c, a, p), edge(a, b, p)
			if area < 0 {
				w0, w1, w2 = -w0, -w1, -w2
			}
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				img.Set(x, y, col)
			}
		}
	}
}
