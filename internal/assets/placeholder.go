package assets

import (
	"hash/fnv"
	"image"
	"image/color"
	"strings"
	"unicode"

	"github.com/fogleman/gg"
)

// PlaceholderColor picks a stable background color for a name.
func PlaceholderColor(name string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()

	// Hue from the hash, fixed saturation and lightness for readable white text
	hue := float64(sum%360) / 360
	return hslToRGB(hue, 0.55, 0.45)
}

// Initial returns the uppercase first letter or digit of name, or "?".
func Initial(name string) string {
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r))
		}
	}
	return "?"
}

// Placeholder draws a circular portrait with the name's initial on a
// hashed background color. fonts may be nil.
func Placeholder(name string, size int, fonts *Fonts) image.Image {
	if size <= 0 {
		size = 64
	}
	s := float64(size)
	dc := gg.NewContext(size, size)

	dc.SetColor(PlaceholderColor(name))
	dc.DrawCircle(s/2, s/2, s/2)
	dc.Fill()

	if fonts != nil {
		if face := fonts.NewFace(s * 0.5); face != nil {
			dc.SetFontFace(face)
		}
	}
	dc.SetColor(color.White)
	dc.DrawStringAnchored(Initial(name), s/2, s/2, 0.5, 0.4)
	return dc.Image()
}

func hslToRGB(h, s, l float64) color.RGBA {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	conv := func(t float64) uint8 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 0.5:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*(2.0/3-t)*6
		default:
			v = p
		}
		return uint8(v*255 + 0.5)
	}
	return color.RGBA{conv(h + 1.0/3), conv(h), conv(h - 1.0/3), 255}
}
