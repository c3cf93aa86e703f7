// Package barcode renders Code-128 symbols sized for physical print.
//
// Symbols are drawn at a fixed module geometry for the requested resolution
// and then resampled so the final width matches the requested physical width
// exactly. When a payload cannot be encoded the Placeholder renderer produces
// an image of the same dimensions so a label can still be printed.
package barcode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ehr/registry/internal/typeface"
)

const (
	DefaultDPI     = 600
	DefaultWidthCM = 8.0

	moduleWidthMM    = 1.5
	moduleHeightMM   = 40.0
	quietZoneMM      = 12.0
	marginTopMM      = 1.0
	captionGapMM     = 4.0
	marginBottomMM   = 8.0
	captionPt        = 35.0
	placeholderBars  = 40
	placeholderCM    = 1.7
	placeholderRatio = 0.2
)

// EncodeError reports a payload the symbology or renderer rejected.
type EncodeError struct {
	Payload string
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode barcode %q: %v", e.Payload, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Symbol is a rendered barcode ready to be placed on a label.
type Symbol struct {
	// Payload is the text actually encoded (separators removed).
	Payload string
	Image   image.Image
	// Fallback holds the encode failure when Image is a placeholder.
	Fallback error
	// Warnings lists caption font substitutions.
	Warnings []string
}

// Encoder renders Code-128 symbols. The zero value is not usable; call
// NewEncoder.
type Encoder struct {
	caption bool
	fonts   func() *typeface.Set
}

type Option func(*Encoder)

// WithoutCaption suppresses the human-readable text under the bars.
func WithoutCaption() Option {
	return func(e *Encoder) { e.caption = false }
}

// WithFonts sets the typeface loader used for the caption.
func WithFonts(load func() *typeface.Set) Option {
	return func(e *Encoder) { e.fonts = load }
}

func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		caption: true,
		fonts:   func() *typeface.Set { return typeface.Load("", "") },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CleanPayload removes hyphens so a PHN fits the encoded alphabet.
func CleanPayload(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

// PixelsFromCM converts a physical length to a pixel count at dpi.
func PixelsFromCM(cm float64, dpi int) int {
	return int(math.Round(cm / 2.54 * float64(dpi)))
}

func pixelsFromMM(mm float64, dpi int) float64 {
	return mm / 25.4 * float64(dpi)
}

// Encode renders payload as Code-128 scaled to widthCM at dpi.
func (e *Encoder) Encode(payload string, widthCM float64, dpi int) (sym *Symbol, err error) {
	clean := CleanPayload(payload)
	targetW := PixelsFromCM(widthCM, dpi)
	if targetW < 1 || dpi < 1 {
		return nil, &EncodeError{Payload: clean, Err: fmt.Errorf("invalid target %.2fcm at %d dpi", widthCM, dpi)}
	}

	bc, err := code128.Encode(clean)
	if err != nil {
		return nil, &EncodeError{Payload: clean, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			sym, err = nil, &EncodeError{Payload: clean, Err: fmt.Errorf("render: %v", r)}
		}
	}()

	raw, warnings := e.render(bc, dpi)
	return &Symbol{Payload: bc.Content(), Image: ScaleToWidth(raw, targetW), Warnings: warnings}, nil
}

// EncodeOrPlaceholder never fails: an encode error yields a placeholder of
// the target width with the error kept in Symbol.Fallback.
func (e *Encoder) EncodeOrPlaceholder(payload string, widthCM float64, dpi int) *Symbol {
	sym, err := e.Encode(payload, widthCM, dpi)
	if err == nil {
		return sym
	}
	clean := CleanPayload(payload)
	return &Symbol{
		Payload:  clean,
		Image:    Placeholder(clean, PixelsFromCM(widthCM, dpi), PixelsFromCM(placeholderCM, dpi)),
		Fallback: err,
	}
}

func (e *Encoder) render(bc barcode.Barcode, dpi int) (*image.Gray, []string) {
	modules := bc.Bounds().Dx()
	moduleW := pixelsFromMM(moduleWidthMM, dpi)
	quiet := pixelsFromMM(quietZoneMM, dpi)
	top := int(math.Round(pixelsFromMM(marginTopMM, dpi)))
	barsH := int(math.Round(pixelsFromMM(moduleHeightMM, dpi)))

	var face font.Face
	var warnings []string
	captionH := 0
	gap := 0
	if e.caption {
		fonts := e.fonts()
		face = fonts.Face(false, captionPt*float64(dpi)/72)
		defer face.Close()
		for _, w := range fonts.Warnings() {
			warnings = append(warnings, "caption font: "+w)
		}
		captionH = face.Metrics().Height.Ceil()
		gap = int(math.Round(pixelsFromMM(captionGapMM, dpi)))
	}

	width := int(math.Round(2*quiet + float64(modules)*moduleW))
	height := top + barsH + gap + captionH + int(math.Round(pixelsFromMM(marginBottomMM, dpi)))

	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for i := 0; i < modules; i++ {
		if !isDark(bc.At(bc.Bounds().Min.X+i, bc.Bounds().Min.Y)) {
			continue
		}
		x0 := int(math.Round(quiet + float64(i)*moduleW))
		x1 := int(math.Round(quiet + float64(i+1)*moduleW))
		draw.Draw(img, image.Rect(x0, top, x1, top+barsH), image.Black, image.Point{}, draw.Src)
	}

	if face != nil {
		drawCentered(img, face, bc.Content(), top+barsH+gap+face.Metrics().Ascent.Ceil())
	}
	return img, warnings
}

// ScaleToWidth resamples src with a Catmull-Rom kernel so its width is
// exactly width, preserving the aspect ratio.
func ScaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// Placeholder draws a fixed alternating bar pattern with text beneath it. It
// always returns an image of exactly width x height (each clamped to at least
// 1) and never panics, whatever the text.
func Placeholder(text string, width, height int) (img *image.Gray) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	img = image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	defer func() {
		// Drawing is best effort; the blank canvas is still a valid result.
		_ = recover()
	}()

	captionPx := float64(height) * placeholderRatio
	barsBottom := height - int(math.Ceil(captionPx)) - 5
	if barsBottom < 1 {
		barsBottom = height
	}
	barW := float64(width) / placeholderBars
	for i := 0; i < placeholderBars; i += 2 {
		x0 := int(math.Round(float64(i) * barW))
		x1 := int(math.Round(float64(i+1) * barW))
		draw.Draw(img, image.Rect(x0, 0, x1, barsBottom), image.Black, image.Point{}, draw.Src)
	}

	if text == "" || barsBottom == height {
		return img
	}
	face := typeface.Load("", "").Face(false, captionPx)
	defer face.Close()
	drawCentered(img, face, text, height-face.Metrics().Descent.Ceil())
	return img
}

func drawCentered(dst draw.Image, face font.Face, text string, baseline int) {
	w := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P((dst.Bounds().Dx()-w)/2, baseline),
	}
	d.DrawString(text)
}

func isDark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}
