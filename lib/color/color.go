// Package color derives the fills and strokes of the preview from catalog category
// colours, which may be written in any CSS colour syntax.
package color

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/csscolorparser"
)

const (
	// Neutral is used for services without a known category.
	Neutral = "#7D8998"
	// Ink is the text colour on light fills.
	Ink = "#232F3E"
	// Paper is the text colour on dark fills.
	Paper = "#FFFFFF"
)

func parse(colorString string) (colorful.Color, error) {
	c, err := csscolorparser.Parse(colorString)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid color %q: %w", colorString, err)
	}
	return colorful.Color{R: c.R, G: c.G, B: c.B}, nil
}

// Normalize returns colorString as a #rrggbb hex string.
func Normalize(colorString string) (string, error) {
	c, err := parse(colorString)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

func Darken(colorString string) (string, error) {
	return shift(colorString, -.1)
}

func shift(colorString string, amount float64) (string, error) {
	c, err := parse(colorString)
	if err != nil {
		return "", err
	}
	h, s, l := c.Hsl()
	return colorful.Hsl(h, s, l+amount).Clamped().Hex(), nil
}

// Tint mixes colorString towards white by amount in Lab space, 0 leaving it unchanged.
func Tint(colorString string, amount float64) (string, error) {
	c, err := parse(colorString)
	if err != nil {
		return "", err
	}
	white := colorful.Color{R: 1, G: 1, B: 1}
	return c.BlendLab(white, amount).Clamped().Hex(), nil
}

func Luminance(colorString string) (float64, error) {
	c, err := csscolorparser.Parse(colorString)
	if err != nil {
		return 0, err
	}

	l := float64(
		float64(0.299)*float64(c.R) +
			float64(0.587)*float64(c.G) +
			float64(0.114)*float64(c.B),
	)
	return l, nil
}

func LuminanceCategory(colorString string) (string, error) {
	l, err := Luminance(colorString)
	if err != nil {
		return "", err
	}

	switch {
	case l >= .88:
		return "bright", nil
	case l >= .55:
		return "normal", nil
	case l >= .30:
		return "dark", nil
	default:
		return "darker", nil
	}
}

// TextOn returns the label colour readable on fill.
func TextOn(fill string) (string, error) {
	cat, err := LuminanceCategory(fill)
	if err != nil {
		return "", err
	}
	switch cat {
	case "dark", "darker":
		return Paper, nil
	}
	return Ink, nil
}
