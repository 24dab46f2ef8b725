package core

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, v uint8) *Image {
	im := NewImage(w, h)
	for i := range im.Pix {
		im.Pix[i] = v
	}
	return im
}

func TestDissimilarityIdentical(t *testing.T) {
	for _, v := range []uint8{0, 17, 128, 255} {
		a := solid(8, 6, v)
		d, err := Dissimilarity(a, a.Clone())
		if err != nil {
			t.Fatalf("Dissimilarity: %v", err)
		}
		if d != 0 {
			t.Errorf("value %d: expected 0, got %f", v, d)
		}
		for _, th := range []float64{1e-9, 0.1, 1} {
			same, err := IsSame(a, a, th)
			if err != nil || !same {
				t.Errorf("IsSame(a, a, %g) = %v, %v", th, same, err)
			}
		}
	}
}

func TestDissimilarityNormalized(t *testing.T) {
	black := solid(4, 4, 0)
	white := solid(4, 4, 255)
	d, err := Dissimilarity(black, white)
	if err != nil {
		t.Fatalf("Dissimilarity: %v", err)
	}
	if d != 1 {
		t.Errorf("expected 1 for black vs white, got %f", d)
	}
}

func TestIsSameStrictThreshold(t *testing.T) {
	a := solid(2, 2, 0)
	b := solid(2, 2, 255)
	// d == 1.0 exactly
	same, err := IsSame(a, b, 1.0)
	if err != nil {
		t.Fatalf("IsSame: %v", err)
	}
	if same {
		t.Error("distance equal to threshold must not match")
	}
	same, _ = IsSame(a, b, 1.0001)
	if !same {
		t.Error("distance below threshold must match")
	}
}

func TestDissimilarityIncompatibleShape(t *testing.T) {
	_, err := Dissimilarity(solid(4, 4, 0), solid(4, 5, 0))
	if !errors.Is(err, ErrIncompatibleShape) {
		t.Fatalf("expected ErrIncompatibleShape, got %v", err)
	}
	if _, err := IsSame(solid(4, 4, 0), nil, 0.1); !errors.Is(err, ErrIncompatibleShape) {
		t.Fatalf("expected ErrIncompatibleShape for nil, got %v", err)
	}
}

func TestImageRoundTripAndResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 10, B: 30, A: 255})
		}
	}
	im := FromImage(src)
	if im.Width != 10 || im.Height != 10 || im.Pix[0] != 200 || im.Pix[1] != 10 || im.Pix[2] != 30 {
		t.Fatalf("unexpected conversion: %dx%d %v", im.Width, im.Height, im.Pix[:3])
	}
	small, err := im.Resize(5, 4)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if small.Width != 5 || small.Height != 4 || len(small.Pix) != 5*4*3 {
		t.Fatalf("unexpected resized shape %dx%d (%d)", small.Width, small.Height, len(small.Pix))
	}
	if small.Pix[0] != 200 {
		t.Errorf("solid colour should survive scaling, got %d", small.Pix[0])
	}
	if _, err := im.Resize(0, 3); err == nil {
		t.Error("expected error for empty target size")
	}
}
