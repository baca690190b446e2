// Package slide renders lecture segments into fixed-canvas SVG slides.
package slide

import (
	"fmt"
	"strconv"
)

const (
	Width  = 960
	Height = 540

	MaxTitleRunes  = 40
	MaxBulletRunes = 60
	MaxBullets     = 5

	bulletBaseline = 180
	bulletStep     = 55

	FooterBrand = "AetherLearn AI"
)

// Build assembles the slide document for one segment. Extra bullets beyond MaxBullets are dropped.
func Build(title string, bullets []string, index, total int) Document {
	if len(bullets) > MaxBullets {
		bullets = bullets[:MaxBullets]
	}

	content := Node{Name: "g", Attrs: []Attr{{"id", "content"}}}
	for i, bullet := range bullets {
		y := bulletBaseline + bulletStep*i
		content.Children = append(content.Children,
			Node{Name: "circle", Attrs: []Attr{
				{"cx", "80"}, {"cy", itoa(y + 8)}, {"r", "6"}, {"fill", "#818cf8"},
			}},
			Node{Name: "text", Attrs: []Attr{
				{"x", "100"}, {"y", itoa(y + 15)}, {"font-family", "Arial"}, {"font-size", "24"}, {"fill", "#e0e0e0"},
			}, Text: truncateBullet(bullet)},
		)
	}

	root := Node{
		Name: "svg",
		Attrs: []Attr{
			{"width", itoa(Width)}, {"height", itoa(Height)},
			{"viewBox", fmt.Sprintf("0 0 %d %d", Width, Height)},
			{"xmlns", "http://www.w3.org/2000/svg"},
		},
		Children: []Node{
			{Name: "defs", Children: []Node{
				{Name: "linearGradient", Attrs: []Attr{{"id", "bg"}, {"x1", "0%"}, {"y1", "0%"}, {"x2", "100%"}, {"y2", "100%"}},
					Children: []Node{
						{Name: "stop", Attrs: []Attr{{"offset", "0%"}, {"style", "stop-color:#1e1b4b"}}},
						{Name: "stop", Attrs: []Attr{{"offset", "100%"}, {"style", "stop-color:#312e81"}}},
					}},
			}},
			{Name: "rect", Attrs: []Attr{{"width", itoa(Width)}, {"height", itoa(Height)}, {"fill", "url(#bg)"}}},
			{Name: "rect", Attrs: []Attr{
				{"x", "20"}, {"y", "20"}, {"width", "920"}, {"height", "500"}, {"rx", "15"},
				{"fill", "none"}, {"stroke", "#4338ca"}, {"stroke-width", "2"},
			}},
			{Name: "rect", Attrs: []Attr{
				{"x", "50"}, {"y", "50"}, {"width", "860"}, {"height", "70"}, {"rx", "10"},
				{"fill", "#4338ca"}, {"opacity", "0.3"},
			}},
			{Name: "text", Attrs: []Attr{
				{"id", "title"}, {"x", "480"}, {"y", "100"}, {"font-family", "Arial"}, {"font-size", "32"},
				{"font-weight", "bold"}, {"fill", "#ffffff"}, {"text-anchor", "middle"},
			}, Text: truncateRunes(title, MaxTitleRunes)},
			content,
			{Name: "text", Attrs: []Attr{
				{"id", "footer"}, {"x", "480"}, {"y", "510"}, {"font-family", "Arial"}, {"font-size", "16"},
				{"fill", "#6366f1"}, {"text-anchor", "middle"},
			}, Text: Footer(index, total)},
		},
	}
	return Document{Root: root}
}

// Render returns the serialized SVG for one segment. Identical inputs give identical bytes.
func Render(title string, bullets []string, index, total int) []byte {
	return Build(title, bullets, index, total).Bytes()
}

// Footer is the slide stamp, e.g. "AetherLearn AI • Slide 2/5".
func Footer(index, total int) string {
	return fmt.Sprintf("%s • Slide %d/%d", FooterBrand, index, total)
}

func truncateBullet(s string) string {
	r := []rune(s)
	if len(r) > MaxBulletRunes {
		return string(r[:MaxBulletRunes]) + "..."
	}
	return s
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit])
	}
	return s
}

func itoa(v int) string { return strconv.Itoa(v) }
