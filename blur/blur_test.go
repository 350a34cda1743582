package blur

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/camden-git/faceblur/geometry"
	"github.com/camden-git/faceblur/region"
)

// noisyCanvas builds a deterministic pseudo-random opaque image so blur and
// pixelation visibly change pixel values.
func noisyCanvas(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 0xff
	}
	return img
}

func clone(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

func pixelsEqual(a, b *image.NRGBA, x, y int) bool {
	ai := a.PixOffset(x, y)
	bi := b.PixOffset(x, y)
	for ch := 0; ch < 4; ch++ {
		if a.Pix[ai+ch] != b.Pix[bi+ch] {
			return false
		}
	}
	return true
}

func TestPixelate_BlocksAreUniformAndMean(t *testing.T) {
	canvas := noisyCanvas(200, 200)
	original := clone(canvas)
	box := geometry.Box{X: 50, Y: 50, W: 48, H: 48}

	err := Apply(canvas, []Target{{Box: box, Selected: true}}, StylePixelate, DefaultOptions())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// every pixel within one 24px block shares one color
	for by := 0; by < 2; by++ {
		for bx := 0; bx < 2; bx++ {
			x0 := box.X + bx*24
			y0 := box.Y + by*24

			ref := canvas.NRGBAAt(x0, y0)
			var sum [3]int
			for dy := 0; dy < 24; dy++ {
				for dx := 0; dx < 24; dx++ {
					got := canvas.NRGBAAt(x0+dx, y0+dy)
					if got != ref {
						t.Fatalf("block (%d,%d) not uniform at +(%d,%d): %v != %v", bx, by, dx, dy, got, ref)
					}
					o := original.NRGBAAt(x0+dx, y0+dy)
					sum[0] += int(o.R)
					sum[1] += int(o.G)
					sum[2] += int(o.B)
				}
			}

			// block color equals the mean of the original block within
			// rounding tolerance
			n := 24 * 24
			for ch, got := range []uint8{ref.R, ref.G, ref.B} {
				mean := float64(sum[ch]) / float64(n)
				if diff := float64(got) - mean; diff > 1.0 || diff < -1.0 {
					t.Errorf("block (%d,%d) channel %d = %d, mean %.2f", bx, by, ch, got, mean)
				}
			}
		}
	}
}

func TestPixelate_EndToEndGrid(t *testing.T) {
	// one detected face at {100,100,50,50}, block 24: the box partitions
	// into a 3x3 grid of mostly 24x24, edge-clipped blocks
	canvas := noisyCanvas(300, 300)
	original := clone(canvas)
	box := geometry.Box{X: 100, Y: 100, W: 50, H: 50}

	if err := Apply(canvas, []Target{{Box: box, Selected: true}}, StylePixelate, DefaultOptions()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	widths := []int{24, 24, 2}
	for byi, bh := range widths {
		for bxi, bw := range widths {
			x0 := box.X + bxi*24
			y0 := box.Y + byi*24
			ref := canvas.NRGBAAt(x0, y0)
			for dy := 0; dy < bh; dy++ {
				for dx := 0; dx < bw; dx++ {
					if canvas.NRGBAAt(x0+dx, y0+dy) != ref {
						t.Fatalf("grid block (%d,%d) not uniform", bxi, byi)
					}
				}
			}
		}
	}

	// a pixel well outside the box is bit-identical to the source
	if !pixelsEqual(canvas, original, 10, 10) {
		t.Error("pixel (10,10) outside the box was altered")
	}
	// pixel hugging the box on the outside is untouched too
	if !pixelsEqual(canvas, original, 99, 100) {
		t.Error("pixel adjacent to the box was altered")
	}
}

func TestPixelate_PartialEdgeBlocksUseOnlyPresentPixels(t *testing.T) {
	canvas := noisyCanvas(100, 100)
	original := clone(canvas)
	box := geometry.Box{X: 0, Y: 0, W: 30, H: 30}

	if err := Apply(canvas, []Target{{Box: box, Selected: true}}, StylePixelate, DefaultOptions()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// the 6px-wide edge block must average only its own 6x24 pixels
	var sum int
	for dy := 0; dy < 24; dy++ {
		for dx := 24; dx < 30; dx++ {
			sum += int(original.NRGBAAt(dx, dy).R)
		}
	}
	mean := float64(sum) / float64(6*24)
	got := float64(canvas.NRGBAAt(25, 10).R)
	if diff := got - mean; diff > 1.0 || diff < -1.0 {
		t.Errorf("edge block R = %v, want mean %.2f of present pixels", got, mean)
	}
}

func TestApply_UnselectedRegionsUntouched(t *testing.T) {
	canvas := noisyCanvas(200, 200)
	original := clone(canvas)

	targets := []Target{
		{Box: geometry.Box{X: 20, Y: 20, W: 40, H: 40}, Selected: false},
		{Box: geometry.Box{X: 120, Y: 120, W: 40, H: 40}, Selected: true},
	}

	if err := Apply(canvas, targets, StylePixelate, DefaultOptions()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !pixelsEqual(canvas, original, 30, 30) {
		t.Error("unselected region was altered")
	}
	if pixelsEqual(canvas, original, 130, 130) {
		t.Error("selected region was not altered")
	}
}

func TestSmooth_ChangesInsideEllipseOnly(t *testing.T) {
	canvas := noisyCanvas(300, 300)
	original := clone(canvas)
	box := geometry.Box{X: 100, Y: 100, W: 60, H: 60}
	opts := DefaultOptions()

	if err := Apply(canvas, []Target{{Box: box, Selected: true}}, StyleSmooth, opts); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// the box center lies inside the ellipse and must change on a noisy image
	if pixelsEqual(canvas, original, 130, 130) {
		t.Error("center of smooth-blurred region unchanged")
	}

	// corners of the margin-expanded bounding square lie outside the
	// inscribed ellipse and must be untouched
	margin := opts.EllipseMargin
	for _, p := range []image.Point{
		{box.X - margin, box.Y - margin},
		{box.X + box.W + margin, box.Y + box.H + margin},
	} {
		if !pixelsEqual(canvas, original, p.X, p.Y) {
			t.Errorf("pixel %v outside the ellipse was altered", p)
		}
	}

	// far outside the sample padding nothing may change
	if !pixelsEqual(canvas, original, 10, 10) {
		t.Error("pixel far outside the region was altered")
	}
}

func TestSmooth_RegionAtImageEdge(t *testing.T) {
	canvas := noisyCanvas(120, 120)
	box := geometry.Box{X: 0, Y: 0, W: 50, H: 50}

	// expansion past the canvas must clamp, not panic
	if err := Apply(canvas, []Target{{Box: box, Selected: true}}, StyleSmooth, DefaultOptions()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
}

func TestApply_UnknownStyle(t *testing.T) {
	canvas := noisyCanvas(50, 50)
	err := Apply(canvas, []Target{{Box: geometry.Box{W: 10, H: 10}, Selected: true}}, Style("swirl"), DefaultOptions())
	if err == nil {
		t.Error("unknown style should fail")
	}
}

func TestTargets_OrderAndSelection(t *testing.T) {
	s := region.NewSet(500, 500)
	s.AddFace(&region.Face{Box: geometry.Box{X: 1, Y: 1, W: 10, H: 10}, Selected: true})
	s.AddFace(&region.Face{Box: geometry.Box{X: 2, Y: 2, W: 10, H: 10}})
	m := s.AddManual(geometry.Box{X: 3, Y: 3, W: 30, H: 30})

	targets := Targets(s)
	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3", len(targets))
	}
	if targets[0].Box.X != 1 || targets[1].Box.X != 2 || targets[2].Box.X != 3 {
		t.Errorf("target order wrong: %+v", targets)
	}
	if !targets[0].Selected || targets[1].Selected || !targets[2].Selected {
		t.Errorf("selection flags wrong: %+v", targets)
	}
	_ = m
}

func TestPixelate_SolidColorIsFixpoint(t *testing.T) {
	canvas := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	solid := color.NRGBA{R: 10, G: 200, B: 30, A: 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			canvas.SetNRGBA(x, y, solid)
		}
	}

	box := geometry.Box{X: 10, Y: 10, W: 50, H: 50}
	if err := Apply(canvas, []Target{{Box: box, Selected: true}}, StylePixelate, DefaultOptions()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := canvas.NRGBAAt(30, 30); got != solid {
		t.Errorf("solid color changed by pixelation: %v", got)
	}
}
