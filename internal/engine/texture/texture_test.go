package texture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeBase64(t *testing.T) {
	s := encodePNG(t, 8, 4)

	for name, in := range map[string]string{
		"plain":    s,
		"data url": "data:image/png;base64," + s,
	} {
		t.Run(name, func(t *testing.T) {
			img, err := DecodeBase64(in)
			if err != nil {
				t.Fatalf("DecodeBase64: %v", err)
			}
			if img.Bounds() != image.Rect(0, 0, 8, 4) {
				t.Errorf("bounds = %v", img.Bounds())
			}
			if got := img.RGBAAt(0, 0); got.R != 255 || got.A != 255 {
				t.Errorf("pixel = %v, want red", got)
			}
		})
	}
}

func TestDecodeBase64Errors(t *testing.T) {
	if _, err := DecodeBase64("  "); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty: %v", err)
	}
	if _, err := DecodeBase64("!!!"); err == nil {
		t.Error("expected base64 error")
	}
	if _, err := DecodeBase64(base64.StdEncoding.EncodeToString([]byte("not an image"))); err == nil {
		t.Error("expected image decode error")
	}
}

func TestImageToRGBAOffsetOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 14, 12))
	src.SetRGBA(10, 10, color.RGBA{G: 200, A: 255})

	out := ImageToRGBA(src)
	if out.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Fatalf("bounds = %v", out.Bounds())
	}
	if out.RGBAAt(0, 0).G != 200 {
		t.Error("pixel not moved to origin")
	}
}

func TestFit(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	got := Fit(big, 100)
	if got.Bounds() != image.Rect(0, 0, 100, 50) {
		t.Errorf("Fit = %v, want 100x50", got.Bounds())
	}

	tall := image.NewRGBA(image.Rect(0, 0, 300, 600))
	if got := Fit(tall, 100); got.Bounds() != image.Rect(0, 0, 50, 100) {
		t.Errorf("Fit tall = %v, want 50x100", got.Bounds())
	}

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if Fit(small, 100) != small {
		t.Error("small image should be returned as is")
	}
}

func TestTextPanel(t *testing.T) {
	img := TextPanel([]string{"Liver area: 12.0%", "Liver pixels: 31457"}, PanelBackground)
	b := img.Bounds()
	if b.Dx() <= 2*panelPadding || b.Dy() <= 2*panelPadding {
		t.Fatalf("panel too small: %v", b)
	}

	// Some text pixel must differ from the background.
	found := false
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == PanelText {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no text drawn")
	}
}

func TestCompose(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 10, 10))
	top := image.NewRGBA(image.Rect(0, 0, 2, 2))
	top.SetRGBA(0, 0, color.RGBA{B: 255, A: 255})

	out := Compose(base, top, image.Pt(5, 5))
	if out == base {
		t.Fatal("Compose must not modify base")
	}
	if got := out.RGBAAt(5, 5); got.B != 255 {
		t.Errorf("pixel at (5,5) = %v, want blue", got)
	}
	if got := base.RGBAAt(5, 5); got.B != 0 {
		t.Error("base was modified")
	}
}

func TestStack(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 30, 10))
	b := image.NewRGBA(image.Rect(0, 0, 20, 5))

	out := Stack(4, a, nil, b)
	if out.Bounds() != image.Rect(0, 0, 30, 19) {
		t.Errorf("Stack bounds = %v, want 30x19", out.Bounds())
	}
	if got := Stack(4); !got.Bounds().Empty() {
		t.Errorf("empty Stack = %v", got.Bounds())
	}
}
