package texture

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Panel colors.
var (
	PanelBackground = color.RGBA{R: 24, G: 26, B: 32, A: 230}
	PanelText       = color.RGBA{R: 235, G: 235, B: 235, A: 255}
	PanelShadow     = color.RGBA{A: 255}
	NoticeColor     = color.RGBA{R: 140, G: 30, B: 30, A: 235}
)

const (
	panelPadding = 12
	lineGap      = 6
)

// TextPanel renders lines of text onto a filled panel sized to fit them.
func TextPanel(lines []string, bg color.Color) *image.RGBA {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil() + lineGap

	width := 0
	for _, l := range lines {
		width = max(width, font.MeasureString(face, l).Ceil())
	}
	w := width + 2*panelPadding
	h := len(lines)*lineHeight + 2*panelPadding - lineGap
	if len(lines) == 0 {
		h = 2 * panelPadding
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	shadow := &font.Drawer{Dst: rgba, Src: image.NewUniform(PanelShadow), Face: face}
	text := &font.Drawer{Dst: rgba, Src: image.NewUniform(PanelText), Face: face}
	for i, l := range lines {
		x := panelPadding
		y := panelPadding + i*lineHeight + metrics.Ascent.Ceil()
		shadow.Dot = fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1)}
		shadow.DrawString(l)
		text.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
		text.DrawString(l)
	}
	return rgba
}
