// Package texture decodes overlay images and prepares them for upload as
// GPU textures.
package texture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG overlays
	_ "image/png"  // PNG overlays
	"strings"

	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned for an empty overlay payload.
var ErrEmptyImage = errors.New("empty image payload")

// MaxTextureSize bounds overlay textures on every supported GPU.
const MaxTextureSize = 4096

// DecodeBase64 decodes a base64 PNG or JPEG, with or without a data URL
// prefix, into RGBA.
func DecodeBase64(s string) (*image.RGBA, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("decoding overlay base64: %w", err)
		}
	}
	return Decode(data)
}

// Decode decodes PNG or JPEG bytes into RGBA.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return ImageToRGBA(img), nil
}

// ImageToRGBA converts any image.Image to *image.RGBA with its origin at (0,0).
func ImageToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Fit scales img down, keeping its aspect ratio, so neither side exceeds
// maxSide. Smaller images are returned unchanged.
func Fit(img *image.RGBA, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Compose returns a copy of base with top drawn over it at pt.
func Compose(base, top *image.RGBA, pt image.Point) *image.RGBA {
	out := image.NewRGBA(base.Bounds())
	draw.Draw(out, out.Bounds(), base, base.Bounds().Min, draw.Src)
	if top != nil {
		r := top.Bounds().Sub(top.Bounds().Min).Add(pt)
		draw.Draw(out, r, top, top.Bounds().Min, draw.Over)
	}
	return out
}

// Stack places images below each other, left aligned, separated by gap
// transparent pixels. Nil images are skipped.
func Stack(gap int, imgs ...*image.RGBA) *image.RGBA {
	w, h, n := 0, 0, 0
	for _, img := range imgs {
		if img == nil {
			continue
		}
		if n > 0 {
			h += gap
		}
		w = max(w, img.Bounds().Dx())
		h += img.Bounds().Dy()
		n++
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	y := 0
	for _, img := range imgs {
		if img == nil {
			continue
		}
		b := img.Bounds()
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
		y += b.Dy() + gap
	}
	return out
}
