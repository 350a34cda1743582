// Package blur applies the two anonymization styles, a soft elliptical blur
// and hard block pixelation, destructively to an image canvas.
package blur

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/camden-git/faceblur/geometry"
	"github.com/camden-git/faceblur/region"
)

// Style selects the pixel transform.
type Style string

const (
	// StyleSmooth samples a padded rectangle around the region, blurs it
	// heavily and renders it back through an elliptical clip so no
	// rectangular edge is visible.
	StyleSmooth Style = "smooth"

	// StylePixelate partitions the region into square blocks and flattens
	// each block to its mean color. Irreversible at block granularity; not a
	// cryptographic guarantee.
	StylePixelate Style = "pixelate"
)

const (
	// DefaultEllipseMargin expands the elliptical clip slightly past the box
	// for visual softness.
	DefaultEllipseMargin = 10

	// DefaultSamplePadding expands the source rectangle fed to the blur so
	// the blurred edges pull in surrounding context.
	DefaultSamplePadding = 50

	// DefaultBlurRadius is the Gaussian blur strength for the smooth style.
	DefaultBlurRadius = 30.0

	// DefaultBlockSize is the pixelation grid pitch in pixels.
	DefaultBlockSize = 24
)

// Options holds the tunable parameters of both styles.
type Options struct {
	EllipseMargin int
	SamplePadding int
	BlurRadius    float64
	BlockSize     int
}

// DefaultOptions returns the stock parameters.
func DefaultOptions() Options {
	return Options{
		EllipseMargin: DefaultEllipseMargin,
		SamplePadding: DefaultSamplePadding,
		BlurRadius:    DefaultBlurRadius,
		BlockSize:     DefaultBlockSize,
	}
}

// Target is one region to process: its box and whether the user selected it.
type Target struct {
	Box      geometry.Box
	Selected bool
}

// Targets flattens a region set into the render list, detected faces first
// then manual regions, both in creation order.
func Targets(s *region.Set) []Target {
	out := make([]Target, 0, len(s.Faces)+len(s.Manual))
	for _, f := range s.Faces {
		out = append(out, Target{Box: f.Box, Selected: f.Selected})
	}
	for _, m := range s.Manual {
		out = append(out, Target{Box: m.Box, Selected: m.Selected})
	}
	return out
}

// Apply runs the chosen style over every selected target, mutating the canvas
// in place. Targets are processed sequentially in list order; overlapping
// regions each read the canvas state left by the previous one. Unselected
// targets are left untouched.
func Apply(canvas *image.NRGBA, targets []Target, style Style, opts Options) error {
	if canvas == nil {
		return fmt.Errorf("blur: nil canvas")
	}

	for _, t := range targets {
		if !t.Selected {
			continue
		}
		switch style {
		case StyleSmooth:
			smoothRegion(canvas, t.Box, opts)
		case StylePixelate:
			pixelateRegion(canvas, t.Box, opts.BlockSize)
		default:
			return fmt.Errorf("blur: unknown style %q", style)
		}
	}
	return nil
}

// smoothRegion blurs a padded sample rectangle around the box and composites
// it back inside an ellipse inscribed in the margin-expanded box.
func smoothRegion(canvas *image.NRGBA, box geometry.Box, opts Options) {
	bounds := canvas.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	src := geometry.ClipTo(geometry.Expand(box, opts.SamplePadding), width, height)
	if src.Empty() {
		return
	}

	blurred := imaging.Blur(imaging.Crop(canvas, src.Rect()), opts.BlurRadius)

	// rasterize the elliptical clip in the sample rectangle's local frame
	cx := float64(box.X) + float64(box.W)/2 - float64(src.X)
	cy := float64(box.Y) + float64(box.H)/2 - float64(src.Y)
	rx := float64(box.W)/2 + float64(opts.EllipseMargin)
	ry := float64(box.H)/2 + float64(opts.EllipseMargin)

	dc := gg.NewContext(src.W, src.H)
	dc.DrawEllipse(cx, cy, rx, ry)
	dc.SetRGB(1, 1, 1)
	dc.Fill()
	mask, _ := dc.Image().(*image.RGBA)
	if mask == nil {
		return
	}

	// blend blurred pixels over the canvas wherever the mask covers,
	// weighting by mask alpha so the ellipse edge stays anti-aliased
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			a := mask.Pix[y*mask.Stride+x*4+3]
			if a == 0 {
				continue
			}
			di := canvas.PixOffset(src.X+x, src.Y+y)
			si := blurred.PixOffset(x, y)
			if a == 0xff {
				copy(canvas.Pix[di:di+4], blurred.Pix[si:si+4])
				continue
			}
			alpha := uint32(a)
			for ch := 0; ch < 4; ch++ {
				orig := uint32(canvas.Pix[di+ch])
				blur := uint32(blurred.Pix[si+ch])
				canvas.Pix[di+ch] = uint8((blur*alpha + orig*(255-alpha)) / 255)
			}
		}
	}
}

// pixelateRegion overwrites each grid block of the box with the block's mean
// color. The grid is anchored at the box origin; blocks clipped by the box
// edge average only the pixels present.
func pixelateRegion(canvas *image.NRGBA, box geometry.Box, blockSize int) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	bounds := canvas.Bounds()
	box = geometry.ClipTo(box, bounds.Dx(), bounds.Dy())
	if box.Empty() {
		return
	}

	for by := box.Y; by < box.Y+box.H; by += blockSize {
		for bx := box.X; bx < box.X+box.W; bx += blockSize {
			bw := minInt(blockSize, box.X+box.W-bx)
			bh := minInt(blockSize, box.Y+box.H-by)
			flattenBlock(canvas, bx, by, bw, bh)
		}
	}
}

// flattenBlock replaces a w×h block with its per-channel mean.
func flattenBlock(canvas *image.NRGBA, x, y, w, h int) {
	count := uint32(w * h)
	if count == 0 {
		return
	}

	var sum [4]uint32
	for dy := 0; dy < h; dy++ {
		i := canvas.PixOffset(x, y+dy)
		for dx := 0; dx < w; dx++ {
			sum[0] += uint32(canvas.Pix[i])
			sum[1] += uint32(canvas.Pix[i+1])
			sum[2] += uint32(canvas.Pix[i+2])
			sum[3] += uint32(canvas.Pix[i+3])
			i += 4
		}
	}

	var mean [4]uint8
	for ch := 0; ch < 4; ch++ {
		mean[ch] = uint8((sum[ch] + count/2) / count)
	}

	for dy := 0; dy < h; dy++ {
		i := canvas.PixOffset(x, y+dy)
		for dx := 0; dx < w; dx++ {
			canvas.Pix[i] = mean[0]
			canvas.Pix[i+1] = mean[1]
			canvas.Pix[i+2] = mean[2]
			canvas.Pix[i+3] = mean[3]
			i += 4
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
