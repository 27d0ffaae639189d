package assets

import (
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// Fonts holds one parsed typeface. Faces are not safe for concurrent use,
// so every consumer creates its own with NewFace.
type Fonts struct {
	parsed *opentype.Font
	source string
}

// LoadFonts parses the font at path, or the first system font found, and
// falls back to the bundled Go Bold face.
func LoadFonts(path string) *Fonts {
	candidates := []string{path}
	candidates = append(candidates, systemFontPaths()...)

	for _, p := range candidates {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			log.Printf("⚠️ Failed to parse font %s: %v", p, err)
			continue
		}
		log.Printf("✅ Fonts loaded from: %s", p)
		return &Fonts{parsed: parsed, source: p}
	}

	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		// The bundled font is known good
		panic(err)
	}
	return &Fonts{parsed: parsed, source: "gobold"}
}

// NewFace creates a face at the given point size.
func (f *Fonts) NewFace(size float64) font.Face {
	face, err := opentype.NewFace(f.parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Printf("⚠️ Failed to create %.0fpt font face: %v", size, err)
		return nil
	}
	return face
}

// Source names where the typeface came from.
func (f *Fonts) Source() string {
	return f.source
}

func systemFontPaths() []string {
	paths := []string{
		"C:\\Windows\\Fonts\\arialbd.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	}
	matches, _ := filepath.Glob("assets/fonts/*.ttf")
	return append(matches, paths...)
}

// ParseHexColor converts "#rrggbb" or "#rgb" to a color. Malformed input
// yields white.
func ParseHexColor(hex string) color.RGBA {
	white := color.RGBA{255, 255, 255, 255}
	if len(hex) == 0 || hex[0] != '#' {
		return white
	}
	hex = hex[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return white
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return white
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}
