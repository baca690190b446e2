package slide

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// CoverFile is the name of the raster preview written next to a run's slides.
const CoverFile = "cover.png"

// RenderCover rasterizes the title, bullets and footer of doc into a PNG preview at path.
// The preview uses a built-in bitmap face, so it approximates the SVG layout rather than matching it.
func RenderCover(doc Document, path string) error {
	dc := gg.NewContext(Width, Height)

	grad := gg.NewLinearGradient(0, 0, Width, Height)
	grad.AddColorStop(0, color.RGBA{0x1e, 0x1b, 0x4b, 0xff})
	grad.AddColorStop(1, color.RGBA{0x31, 0x2e, 0x81, 0xff})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, Width, Height)
	dc.Fill()

	dc.SetColor(color.RGBA{0x43, 0x38, 0xca, 0xff})
	dc.SetLineWidth(2)
	dc.DrawRoundedRectangle(20, 20, 920, 500, 15)
	dc.Stroke()

	dc.SetColor(color.RGBA{0x43, 0x38, 0xca, 0x4d})
	dc.DrawRoundedRectangle(50, 50, 860, 70, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	for _, text := range doc.Root.FindAll("text") {
		x, y := attrFloat(text, "x"), attrFloat(text, "y")
		switch text.Attr("id") {
		case "title":
			drawScaled(dc, text.Text, x, y, 2.4, 0.5, color.White)
		case "footer":
			drawScaled(dc, text.Text, x, y, 1.2, 0.5, color.RGBA{0x63, 0x66, 0xf1, 0xff})
		default:
			drawScaled(dc, text.Text, x, y, 1.8, 0, color.RGBA{0xe0, 0xe0, 0xe0, 0xff})
		}
	}

	dc.SetColor(color.RGBA{0x81, 0x8c, 0xf8, 0xff})
	for _, dot := range doc.Root.FindAll("circle") {
		dc.DrawCircle(attrFloat(dot, "cx"), attrFloat(dot, "cy"), attrFloat(dot, "r"))
		dc.Fill()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cover dir: %w", err)
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save cover: %w", err)
	}
	return nil
}

func drawScaled(dc *gg.Context, s string, x, y, scale, anchorX float64, c color.Color) {
	dc.Push()
	dc.ScaleAbout(scale, scale, x, y)
	dc.SetColor(c)
	dc.DrawStringAnchored(s, x, y, anchorX, 0)
	dc.Pop()
}

func attrFloat(n Node, name string) float64 {
	var v float64
	_, _ = fmt.Sscanf(n.Attr(name), "%g", &v)
	return v
}
